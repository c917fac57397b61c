package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCleanupDB struct {
	notificationCutoff time.Time
	lockNow            time.Time
	historyCutoff      time.Time
	counts             [3]int64
	errs               [3]error
}

func (f *fakeCleanupDB) DeleteDismissedNotificationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.notificationCutoff = cutoff
	return f.counts[0], f.errs[0]
}

func (f *fakeCleanupDB) DeleteExpiredJobLocks(_ context.Context, now time.Time) (int64, error) {
	f.lockNow = now
	return f.counts[1], f.errs[1]
}

func (f *fakeCleanupDB) DeleteJobHistoryBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.historyCutoff = cutoff
	return f.counts[2], f.errs[2]
}

func TestCleanupService_Run(t *testing.T) {
	db := &fakeCleanupDB{counts: [3]int64{5, 1, 3}}
	svc := NewCleanupService(db, 0, 0, discardLogger())
	now := at(3, 0)

	total, err := svc.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 9, total)

	assert.Equal(t, now.Add(-DefaultNotificationRetention), db.notificationCutoff)
	assert.Equal(t, now, db.lockNow)
	assert.Equal(t, now.Add(-DefaultJobHistoryRetention), db.historyCutoff)
}

func TestCleanupService_CustomRetention(t *testing.T) {
	db := &fakeCleanupDB{}
	svc := NewCleanupService(db, 7*24*time.Hour, 24*time.Hour, nil)
	now := at(3, 0)

	_, err := svc.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), db.notificationCutoff)
	assert.Equal(t, now.AddDate(0, 0, -1), db.historyCutoff)
}

func TestCleanupService_ContinuesAfterFailure(t *testing.T) {
	db := &fakeCleanupDB{
		counts: [3]int64{0, 2, 4},
		errs:   [3]error{errors.New("lock timeout"), nil, errors.New("disk full")},
	}
	svc := NewCleanupService(db, 0, 0, discardLogger())

	total, err := svc.Run(context.Background(), at(3, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purging notifications")
	assert.Contains(t, err.Error(), "lock timeout")
	assert.Equal(t, 2, total)
	assert.False(t, db.historyCutoff.IsZero(), "later steps still run")
}
