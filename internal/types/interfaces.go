package types

import "time"

// Clock is the source of "now" for the quiet-hours gate, the past-due
// detector and the daily summary. Tests pin it to a fixed instant.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock. It always returns UTC; local times are
// derived from the courier's profile timezone.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger is what the dispatcher, resolver and publisher log through. slog
// backs it in production (see NewSlogLogger).
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}
