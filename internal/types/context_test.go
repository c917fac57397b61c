package types

import (
	"context"
	"testing"
	"time"
)

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")
	if got := GetRequestID(ctx); got != "req-42" {
		t.Errorf("GetRequestID() = %q, want req-42", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on empty context = %q, want empty", got)
	}
}

func TestDeadlineStart(t *testing.T) {
	if _, ok := GetDeadlineStart(context.Background()); ok {
		t.Error("expected no deadline start on empty context")
	}

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	got, ok := GetDeadlineStart(WithDeadlineStart(context.Background(), start))
	if !ok || !got.Equal(start) {
		t.Errorf("GetDeadlineStart() = %v, %v", got, ok)
	}

	if _, ok := GetDeadlineStart(WithDeadlineStart(context.Background(), time.Time{})); ok {
		t.Error("zero start should be treated as unset")
	}
}
