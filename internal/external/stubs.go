package external

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// StubPushSender logs push requests instead of sending them. Used when
// APP_ENV=local or IS_TEST_MODE is set.
type StubPushSender struct {
	logger *slog.Logger
}

// NewStubPushSender creates a new StubPushSender.
func NewStubPushSender(logger *slog.Logger) *StubPushSender {
	return &StubPushSender{logger: logger}
}

func (s *StubPushSender) Send(ctx context.Context, msg PushMessage) (PushResult, error) {
	s.logger.InfoContext(ctx, "stub: push Send called",
		"recipient_id", msg.RecipientID,
		"title", msg.Title,
	)
	return PushResult{Sent: 1}, nil
}

// StubEmailSender logs email requests and returns sequential fake ids.
type StubEmailSender struct {
	logger *slog.Logger
	seq    atomic.Int64
}

// NewStubEmailSender creates a new StubEmailSender.
func NewStubEmailSender(logger *slog.Logger) *StubEmailSender {
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) (EmailResult, error) {
	s.logger.InfoContext(ctx, "stub: email Send called",
		"recipient_id", msg.RecipientID,
		"template", msg.TemplateID,
		"subject", msg.Subject,
	)
	return EmailResult{EmailID: fmt.Sprintf("stub-email-%d", s.seq.Add(1))}, nil
}

var (
	_ PushSender  = (*StubPushSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
