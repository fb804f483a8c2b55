package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

type fakeRunner struct {
	mu       sync.Mutex
	triggers []domain.RunTrigger
	err      error
}

func (f *fakeRunner) RunCycle(_ context.Context, trigger domain.RunTrigger) (domain.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	return domain.RunSummary{RunID: "run-1"}, f.err
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.triggers)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(&fakeRunner{}, "every now and then")
	assert.Error(t, s.Start(context.Background()))
}

func TestStartTwiceFails(t *testing.T) {
	s := New(&fakeRunner{}, "@every 1h")
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Error(t, s.Start(context.Background()))
}

func TestScheduledCycleRuns(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, "@every 1s")
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return r.calls() > 0 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, domain.TriggerScheduled, r.triggers[0])
}

func TestTickToleratesBusyCycle(t *testing.T) {
	r := &fakeRunner{err: autopilot.ErrCycleInProgress}
	s := New(r, "@every 1h")
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	s.tick()
	r.err = errors.New("database down")
	s.tick()
	assert.Equal(t, 2, r.calls())
}

func TestTickAfterStopDoesNothing(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, "@every 1h")
	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	s.tick()
	assert.Zero(t, r.calls())
}
