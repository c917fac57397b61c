package db

import (
	"context"

	"barecourier/internal/types"
)

// PushSubscriptionRepository manages stored web-push subscriptions.
type PushSubscriptionRepository struct {
	db DBTX
}

// NewPushSubscriptionRepository creates a new PushSubscriptionRepository.
func NewPushSubscriptionRepository(db DBTX) *PushSubscriptionRepository {
	return &PushSubscriptionRepository{db: db}
}

// DeleteForUser removes subscriptions the push service reported as gone. With
// no endpoints every subscription of the user is removed.
func (r *PushSubscriptionRepository) DeleteForUser(ctx context.Context, userID string, endpoints []string) (int64, error) {
	var sql string
	args := []any{userID}
	if len(endpoints) == 0 {
		sql = `DELETE FROM push_subscriptions WHERE user_id = $1`
	} else {
		sql = `DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = ANY($2)`
		args = append(args, endpoints)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete push subscriptions", err)
	}
	return tag.RowsAffected(), nil
}
