package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"barecourier/internal/external"
	"barecourier/internal/types"
)

type logEntry struct {
	level string
	msg   string
	args  []any
}

// mockLogger records log calls. Children created by With share the parent's
// entries.
type mockLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	fields  []any
}

func newMockLogger() *mockLogger {
	return &mockLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *mockLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, args: append(append([]any{}, l.fields...), args...)})
}

func (l *mockLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *mockLogger) Error(msg string, args ...any) { l.add("error", msg, args) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *mockLogger) With(args ...any) types.Logger {
	return &mockLogger{mu: l.mu, entries: l.entries, fields: append(append([]any{}, l.fields...), args...)}
}

func (l *mockLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range *l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeProfiles struct {
	profiles map[string]*types.Profile
	err      error
}

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*types.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundProfile, "profile not found", nil)
	}
	return p, nil
}

type fakeNotificationStore struct {
	mu        sync.Mutex
	createErr error
	records   []types.NotificationRecord
	sent      map[string]string
	failed    []string
	seq       int
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{sent: map[string]string{}}
}

func (s *fakeNotificationStore) Create(_ context.Context, n *types.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	n.ID = fmt.Sprintf("notif-%d", s.seq)
	s.records = append(s.records, *n)
	return nil
}

func (s *fakeNotificationStore) MarkEmailSent(_ context.Context, id string, emailID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[id] = emailID
	return nil
}

func (s *fakeNotificationStore) MarkEmailFailed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, id)
	return nil
}

type fakeSubscriptions struct {
	mu      sync.Mutex
	deleted map[string][]string
}

func (f *fakeSubscriptions) DeleteForUser(_ context.Context, userID string, endpoints []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleted == nil {
		f.deleted = map[string][]string{}
	}
	f.deleted[userID] = endpoints
	return 1, nil
}

type fakePush struct {
	mu     sync.Mutex
	result external.PushResult
	err    error
	sent   []external.PushMessage
}

func (f *fakePush) Send(_ context.Context, msg external.PushMessage) (external.PushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.result, f.err
}

func (f *fakePush) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeEmail struct {
	mu   sync.Mutex
	id   string
	err  error
	sent []external.EmailMessage
}

func (f *fakeEmail) Send(_ context.Context, msg external.EmailMessage) (external.EmailResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return external.EmailResult{}, f.err
	}
	return external.EmailResult{EmailID: f.id}, nil
}

func (f *fakeEmail) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type recordingMetrics struct {
	mu         sync.Mutex
	deliveries map[string]int
	runs       [][3]int
}

func (m *recordingMetrics) RecordDelivery(_ context.Context, channel types.Channel, result MetricResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deliveries == nil {
		m.deliveries = map[string]int{}
	}
	m.deliveries[string(channel)+"/"+string(result)]++
}

func (m *recordingMetrics) RecordLatency(context.Context, types.Channel, time.Duration) {}

func (m *recordingMetrics) RecordPastDueRun(_ context.Context, checked, overdue, notified int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, [3]int{checked, overdue, notified})
}
