package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barecourier/internal/config"
)

type recordingRunner struct {
	mu        sync.Mutex
	payloads  []JobPayload
	deadlines []bool
}

func (r *recordingRunner) Run(ctx context.Context, payload JobPayload) (RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	_, hasDeadline := ctx.Deadline()
	r.deadlines = append(r.deadlines, hasDeadline)
	return RunResult{Task: payload.Task}, nil
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		PastDueSchedule:      "*/15 * * * *",
		DailySummarySchedule: "0 8 * * *",
		CleanupSchedule:      "30 3 * * *",
		Timezone:             "Europe/Lisbon",
	}
}

func TestCronScheduler_RegistersConfiguredTasks(t *testing.T) {
	c := cron.New()
	s, err := NewCronScheduler(&recordingRunner{}, testSchedulerConfig(), time.Minute, discardLogger(), WithCron(c))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Len(t, c.Entries(), 3)
}

func TestCronScheduler_EmptyScheduleDisablesTask(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.CleanupSchedule = ""
	c := cron.New()
	s, err := NewCronScheduler(&recordingRunner{}, cfg, 0, discardLogger(), WithCron(c))
	require.NoError(t, err)

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Len(t, c.Entries(), 2)
}

func TestCronScheduler_InvalidSpec(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.PastDueSchedule = "every fifteen minutes"
	s, err := NewCronScheduler(&recordingRunner{}, cfg, 0, discardLogger(), WithCron(cron.New()))
	require.NoError(t, err)

	err = s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "past_due")
}

func TestCronScheduler_InvalidTimezone(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.Timezone = "Mars/Olympus"

	_, err := NewCronScheduler(&recordingRunner{}, cfg, 0, discardLogger())
	require.Error(t, err)
}

func TestCronScheduler_JobRunsTask(t *testing.T) {
	runner := &recordingRunner{}
	c := cron.New()
	s, err := NewCronScheduler(runner, testSchedulerConfig(), time.Minute, discardLogger(), WithCron(c))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	<-s.Stop().Done()

	for _, e := range c.Entries() {
		e.Job.Run()
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	tasks := make([]TaskType, 0, len(runner.payloads))
	for _, p := range runner.payloads {
		tasks = append(tasks, p.Task)
		assert.Nil(t, p.ReferenceTime)
	}
	assert.ElementsMatch(t, []TaskType{TaskPastDue, TaskDailySummary, TaskCleanup}, tasks)
	for _, d := range runner.deadlines {
		assert.True(t, d, "scheduled runs must carry a deadline")
	}
}

func TestCronScheduler_RunOnceWithoutTimeout(t *testing.T) {
	runner := &recordingRunner{}
	s, err := NewCronScheduler(runner, testSchedulerConfig(), 0, discardLogger(), WithCron(cron.New()))
	require.NoError(t, err)

	result, err := s.RunOnce(context.Background(), TaskCleanup)
	require.NoError(t, err)
	assert.Equal(t, TaskCleanup, result.Task)
	assert.False(t, runner.deadlines[0])
}
