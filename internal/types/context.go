package types

import (
	"context"
	"time"
)

type contextKey string

const (
	requestIDKey     contextKey = "request_id"
	deadlineStartKey contextKey = "deadline_start"
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithDeadlineStart records when the enclosing invocation started. Outbound
// retry loops measure their soft wall-clock budget from this instant. Unlike
// context.WithDeadline it never cancels in-flight work.
func WithDeadlineStart(ctx context.Context, start time.Time) context.Context {
	return context.WithValue(ctx, deadlineStartKey, start)
}

// GetDeadlineStart returns the invocation start recorded by WithDeadlineStart.
func GetDeadlineStart(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(deadlineStartKey).(time.Time)
	return t, ok && !t.IsZero()
}
