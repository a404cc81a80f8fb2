package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *countingJob) Name() string {
	return "counting"
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())
	s.Start()
	defer s.Stop()

	job := &countingJob{err: errors.New("ignored")}
	_, err := s.AddJob("@every 1s", job)
	require.NoError(t, err)
	assert.Equal(t, 1, entryCount(s))

	require.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestScheduler_AddJobRejectsBadSpec(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())

	_, err := s.AddJob("not a schedule", &countingJob{})
	assert.Error(t, err)
	assert.Equal(t, 0, entryCount(s))
}

func TestScheduler_ScheduleOnceFiresOnceAndIsRemoved(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())
	s.Start()
	defer s.Stop()

	var runs atomic.Int32
	at := time.Now().Add(50 * time.Millisecond)
	s.ScheduleOnce(at, "once", func() { runs.Add(1) })

	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Next.Equal(at))

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return entryCount(s) == 0 }, time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_ScheduleOnceBeforeStart(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())

	fired := make(chan struct{})
	s.ScheduleOnce(time.Now().Add(20*time.Millisecond), "early", func() { close(fired) })

	s.Start()
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot job did not fire")
	}
}

func TestOnceSchedule_Next(t *testing.T) {
	at := time.Date(2024, 9, 20, 10, 0, 0, 0, time.UTC)
	sched := &onceSchedule{at: at}

	assert.Equal(t, at, sched.Next(time.Now()))
	assert.True(t, sched.Next(time.Now()).IsZero())
	assert.True(t, sched.Next(time.Now()).IsZero())
}

func entryCount(s *Scheduler) int {
	return len(s.cron.Entries())
}
