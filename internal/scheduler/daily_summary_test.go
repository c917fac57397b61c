package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barecourier/internal/notifications/templates"
	"barecourier/internal/types"
)

func newSummaryJob(courier *types.CourierProfile, locks *fakeLocker, counter *fakeCounter, d *fakeDispatcher) *DailySummaryJob {
	return NewDailySummaryJob(DailySummaryConfig{
		Couriers:   &fakeCouriers{courier: courier},
		Services:   counter,
		Locks:      locks,
		Dispatcher: d,
		Renderer:   templates.MustNewRenderer(),
		Logger:     discardLogger(),
		AppURL:     "https://app.example.com",
		WorkerID:   "worker-a",
	})
}

func TestDailySummaryJob_SendsOncePerDay(t *testing.T) {
	locks := &fakeLocker{}
	counter := &fakeCounter{counts: types.ServiceCounts{Pending: 4, Delivered: 2}}
	d := newFakeDispatcher()
	job := newSummaryJob(testCourier(), locks, counter, d)

	sent, err := job.Run(context.Background(), at(8, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	require.Len(t, d.requests, 1)
	req := d.requests[0]
	assert.Equal(t, types.CategoryDailySummary, req.Category)
	assert.Equal(t, courierID, req.RecipientID)
	assert.Equal(t, DailySummaryTemplate, req.EmailTemplate)
	assert.Equal(t, "https://app.example.com/schedule?date=2026-03-02", req.URL)
	assert.Equal(t, "Your day: 4 pending, 2 delivered", req.Title)
	assert.Nil(t, req.ServiceRef)

	assert.Equal(t, "worker-a", locks.held["daily_summary:2026-03-02"])
	assert.Equal(t, dailySummaryLockTTL, locks.ttl)
	assert.Equal(t, "2026-03-02", counter.day.Format(time.DateOnly))

	// A second trigger the same day is a no-op.
	sent, err = job.Run(context.Background(), at(9, 0))
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, d.requests, 1)

	// The next day gets its own summary.
	sent, err = job.Run(context.Background(), at(24+8, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestDailySummaryJob_Disabled(t *testing.T) {
	courier := testCourier()
	courier.Settings.DailySummaryEnabled = false
	locks := &fakeLocker{}
	d := newFakeDispatcher()

	sent, err := newSummaryJob(courier, locks, &fakeCounter{}, d).Run(context.Background(), at(8, 0))
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, locks.held)
	assert.Zero(t, d.count())
}

func TestDailySummaryJob_SkipsNonWorkingDay(t *testing.T) {
	locks := &fakeLocker{}
	d := newFakeDispatcher()
	sunday := monday.AddDate(0, 0, -1).Add(8 * time.Hour)

	sent, err := newSummaryJob(testCourier(), locks, &fakeCounter{}, d).Run(context.Background(), sunday)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, locks.held)
}

func TestDailySummaryJob_LockError(t *testing.T) {
	locks := &fakeLocker{err: errors.New("db down")}
	d := newFakeDispatcher()

	sent, err := newSummaryJob(testCourier(), locks, &fakeCounter{}, d).Run(context.Background(), at(8, 0))
	require.Error(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, d.count())
}

func TestDailySummaryJob_DispatchRejected(t *testing.T) {
	d := newFakeDispatcher()
	d.err = types.NewAppError(types.ErrCodeValidationMissingField, "title is required", nil)

	sent, err := newSummaryJob(testCourier(), &fakeLocker{}, &fakeCounter{}, d).Run(context.Background(), at(8, 0))
	require.Error(t, err)
	assert.Zero(t, sent)
}

func TestNewDailySummaryJob_DefaultWorkerID(t *testing.T) {
	job := NewDailySummaryJob(DailySummaryConfig{})
	assert.NotEmpty(t, job.cfg.WorkerID)
	assert.NotNil(t, job.cfg.Logger)
}
