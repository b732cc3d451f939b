package scheduler

import (
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fgeck/gosnap-homelab/internal/services/events"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newTestScheduler(t *testing.T, job func()) (*Scheduler, *events.Recorder) {
	t.Helper()
	rec := events.NewRecorder()
	s := NewWithUnit(job, rec, testLogger(), time.Second)
	t.Cleanup(func() { <-s.Close().Done() })
	return s, rec
}

func TestStart_EmitsRunningStatus(t *testing.T) {
	s, rec := newTestScheduler(t, func() {})

	require.NoError(t, s.Start(60))

	assert.True(t, s.Running())
	assert.Equal(t, 60, s.Interval())
	assert.Equal(t, []bool{true}, rec.Statuses())
	assert.Equal(t, []string{"Starting auto-backup. Interval: 60 mins."}, rec.Logs())
}

func TestStart_ReplacesExistingEntry(t *testing.T) {
	s, rec := newTestScheduler(t, func() {})

	require.NoError(t, s.Start(60))
	require.NoError(t, s.Start(5))

	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	sched, ok := entries[0].Schedule.(cron.ConstantDelaySchedule)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, sched.Delay)
	assert.Equal(t, []bool{true, true}, rec.Statuses())
}

func TestStart_RejectsNonPositiveInterval(t *testing.T) {
	s, rec := newTestScheduler(t, func() {})

	assert.Error(t, s.Start(0))
	assert.False(t, s.Running())
	assert.Empty(t, rec.Statuses())
}

func TestStop_EmitsStoppedStatus(t *testing.T) {
	s, rec := newTestScheduler(t, func() {})
	require.NoError(t, s.Start(1))

	s.Stop()

	assert.False(t, s.Running())
	assert.Empty(t, s.cron.Entries())
	assert.Equal(t, []bool{true, false}, rec.Statuses())
	assert.Contains(t, rec.Logs(), "Auto-backup stopped.")
}

func TestStop_WhenStoppedIsNoop(t *testing.T) {
	s, rec := newTestScheduler(t, func() {})

	s.Stop()
	s.Stop()

	assert.Empty(t, rec.Statuses())
	assert.Empty(t, rec.Logs())
}

func TestStart_FiresJob(t *testing.T) {
	var fired atomic.Int32
	s, _ := newTestScheduler(t, func() { fired.Add(1) })

	require.NoError(t, s.Start(1))

	assert.Eventually(t, func() bool { return fired.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
}

func TestStop_PreventsFurtherFires(t *testing.T) {
	var fired atomic.Int32
	s, _ := newTestScheduler(t, func() { fired.Add(1) })
	require.NoError(t, s.Start(1))
	s.Stop()

	time.Sleep(1500 * time.Millisecond)

	assert.Equal(t, int32(0), fired.Load())
}

func TestJobPanicIsRecovered(t *testing.T) {
	var fired atomic.Int32
	s, _ := newTestScheduler(t, func() {
		fired.Add(1)
		panic("boom")
	})

	require.NoError(t, s.Start(1))

	assert.Eventually(t, func() bool { return fired.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestClose_StopsRunner(t *testing.T) {
	rec := events.NewRecorder()
	s := NewWithUnit(func() {}, rec, testLogger(), time.Second)
	require.NoError(t, s.Start(1))

	ctx := s.Close()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("close did not finish")
	}
	assert.False(t, s.Running())
}
