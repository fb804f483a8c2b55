// Package scheduler triggers autopilot cycles on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/pkg/logger"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

// Runner runs one autopilot cycle.
type Runner interface {
	RunCycle(ctx context.Context, trigger domain.RunTrigger) (domain.RunSummary, error)
}

// Scheduler fires scheduled cycles. Ticks that arrive while a cycle is
// still running in this process are skipped; the cycle lock covers
// other processes.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	log     *logger.Logger
}

// New creates a scheduler for a standard cron expression or an
// "@every <duration>" descriptor.
func New(runner Runner, spec string) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		runner: runner,
		spec:   spec,
		log:    logger.With("component", "scheduler"),
	}
}

// Start registers the cycle job and starts the cron loop. Cycles run with
// a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.cron.Start()
	s.log.Info("scheduler: started", "schedule", s.spec)
	return nil
}

// Stop cancels any cycle in flight and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info("scheduler: stopped")
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	summary, err := s.runner.RunCycle(ctx, domain.TriggerScheduled)
	switch {
	case errors.Is(err, autopilot.ErrCycleInProgress):
		s.log.Info("scheduler: cycle already running elsewhere, tick skipped")
	case err != nil:
		s.log.Error("scheduler: cycle failed", "error", err.Error())
	default:
		s.log.Debug("scheduler: cycle done", "run_id", summary.RunID, "failed", summary.Failed)
	}
}
