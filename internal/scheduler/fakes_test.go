package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"barecourier/internal/external"
	"barecourier/internal/notifications/core"
	"barecourier/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// steppingClock returns first on its first call and later on every call after.
type steppingClock struct {
	first, later time.Time
	calls        atomic.Int32
}

func (c *steppingClock) Now() time.Time {
	if c.calls.Add(1) == 1 {
		return c.first
	}
	return c.later
}

type fakeCouriers struct {
	courier *types.CourierProfile
	err     error
}

func (f *fakeCouriers) GetCourier(context.Context) (*types.CourierProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.courier, nil
}

// fakeServiceStore keeps services in memory and implements the claim as a
// compare-and-swap under a mutex, like the single-row UPDATE it stands for.
type fakeServiceStore struct {
	mu       sync.Mutex
	services map[string]*types.Service
	order    []string
	listDay  time.Time
	listErr  error
	claimErr error
	claims   int
}

func newFakeServiceStore(services ...types.Service) *fakeServiceStore {
	s := &fakeServiceStore{services: map[string]*types.Service{}}
	for i := range services {
		svc := services[i]
		s.services[svc.ID] = &svc
		s.order = append(s.order, svc.ID)
	}
	return s
}

func (s *fakeServiceStore) ListPendingDueBy(_ context.Context, day time.Time) ([]types.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listDay = day
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []types.Service
	for _, id := range s.order {
		svc := *s.services[id]
		if svc.Status == types.ServiceStatusPending && !svc.ScheduledDate.After(day) {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (s *fakeServiceStore) ClaimPastDueNotification(_ context.Context, id string, previous *time.Time, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return false, s.claimErr
	}
	svc, ok := s.services[id]
	if !ok || svc.Status != types.ServiceStatusPending {
		return false, nil
	}
	current := svc.LastPastDueNotificationAt
	switch {
	case previous == nil && current != nil,
		previous != nil && (current == nil || !current.Equal(*previous)):
		return false, nil
	}
	claimed := now
	svc.LastPastDueNotificationAt = &claimed
	s.claims++
	return true, nil
}

func (s *fakeServiceStore) last(id string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.services[id].LastPastDueNotificationAt
}

// fakeDispatcher records requests and tracks how many run at once.
type fakeDispatcher struct {
	mu       sync.Mutex
	requests []core.DispatchRequest
	result   core.DispatchResult
	err      error
	delay    time.Duration
	inflight atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{result: core.DispatchResult{InApp: core.ChannelResult{Success: true}}}
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req core.DispatchRequest) (*core.DispatchResult, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	res := f.result
	return &res, nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
	ttl  time.Duration
	err  error
}

func (l *fakeLocker) Acquire(_ context.Context, lockID, workerID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.held == nil {
		l.held = map[string]string{}
	}
	if _, ok := l.held[lockID]; ok {
		return false, nil
	}
	l.held[lockID] = workerID
	l.ttl = ttl
	return true, nil
}

type fakeCounter struct {
	counts types.ServiceCounts
	day    time.Time
}

func (f *fakeCounter) CountForDate(_ context.Context, day time.Time) (types.ServiceCounts, error) {
	f.day = day
	return f.counts, nil
}

// Fakes for running the real dispatcher end to end.

type fakeProfiles struct{ profiles map[string]*types.Profile }

func (f *fakeProfiles) GetByID(_ context.Context, id string) (*types.Profile, error) {
	if p, ok := f.profiles[id]; ok {
		return p, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundProfile, "profile not found", nil)
}

type memNotifications struct {
	mu      sync.Mutex
	records []types.NotificationRecord
}

func (m *memNotifications) Create(_ context.Context, n *types.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = fmt.Sprintf("notif-%d", len(m.records)+1)
	m.records = append(m.records, *n)
	return nil
}

func (m *memNotifications) MarkEmailSent(context.Context, string, string, time.Time) error {
	return nil
}

func (m *memNotifications) MarkEmailFailed(context.Context, string) error {
	return nil
}

type countingPush struct{ calls atomic.Int32 }

func (p *countingPush) Send(context.Context, external.PushMessage) (external.PushResult, error) {
	p.calls.Add(1)
	return external.PushResult{Sent: 1}, nil
}

type countingEmail struct{ calls atomic.Int32 }

func (e *countingEmail) Send(context.Context, external.EmailMessage) (external.EmailResult, error) {
	e.calls.Add(1)
	return external.EmailResult{EmailID: "em"}, nil
}
