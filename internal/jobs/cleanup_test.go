package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeTimers struct {
	openedBefore time.Time
	maxMinutes   int
	note         string
	err          error
}

func (f *fakeTimers) CloseStaleTimers(_ context.Context, openedBefore time.Time, maxMinutes int, note string) (int64, error) {
	f.openedBefore = openedBefore
	f.maxMinutes = maxMinutes
	f.note = note
	return 2, f.err
}

type fakePruner struct {
	before time.Time
	calls  int
}

func (f *fakePruner) PruneBefore(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	f.calls++
	return 0, nil
}

func TestCleanup_CapsStaleTimersAndPrunes(t *testing.T) {
	timers := &fakeTimers{}
	pruner := &fakePruner{}
	job := NewCleanupJob(timers, pruner, time.Minute, 12*time.Hour)
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	job.cleanup()

	assert.Equal(t, now.Add(-12*time.Hour), timers.openedBefore)
	assert.Equal(t, 720, timers.maxMinutes)
	assert.Equal(t, "Closed automatically", timers.note)
	assert.Equal(t, time.Date(2026, 2, 8, 8, 0, 0, 0, time.UTC), pruner.before)
}

func TestCleanup_TimerFailureDoesNotSkipPrune(t *testing.T) {
	pruner := &fakePruner{}
	job := NewCleanupJob(&fakeTimers{err: errors.New("db down")}, pruner, time.Minute, time.Hour)

	job.cleanup()

	assert.Equal(t, 1, pruner.calls)
}

func TestStop_Idempotent(t *testing.T) {
	job := NewCleanupJob(&fakeTimers{}, &fakePruner{}, time.Hour, time.Hour)
	job.Stop()
	assert.NotPanics(t, job.Stop)
}
