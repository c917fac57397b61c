package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"barecourier/internal/types"
)

// NotificationRepository persists in-app notification records and the email
// outcome tracked on them.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts n. A missing ID is generated and CreatedAt is populated from
// the database clock.
func (r *NotificationRepository) Create(ctx context.Context, n *types.NotificationRecord) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	var emailStatus *string
	if n.EmailStatus != nil {
		s := string(*n.EmailStatus)
		emailStatus = &s
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO notifications
		 (id, user_id, type, title, message, service_id, email_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		n.ID,
		n.RecipientID,
		string(n.Category),
		n.Title,
		n.Message,
		n.ServiceRef,
		emailStatus,
	).Scan(&n.CreatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create notification", err)
	}
	return nil
}

// MarkEmailSent records a successful email attempt.
func (r *NotificationRepository) MarkEmailSent(ctx context.Context, id string, emailID string, sentAt time.Time) error {
	return r.updateEmailStatus(ctx,
		`UPDATE notifications
		 SET email_status = 'sent', email_id = $2, email_sent_at = $3
		 WHERE id = $1`,
		id, nilIfEmpty(emailID), sentAt,
	)
}

// MarkEmailFailed records a failed email attempt.
func (r *NotificationRepository) MarkEmailFailed(ctx context.Context, id string) error {
	return r.updateEmailStatus(ctx,
		`UPDATE notifications SET email_status = 'failed' WHERE id = $1`,
		id,
	)
}

func (r *NotificationRepository) updateEmailStatus(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update email status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}
