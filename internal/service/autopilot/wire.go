package autopilot

import (
	"context"
	"time"

	"github.com/eventnexus/autopilot/internal/engine"
)

// Deps are the collaborators a Service is built from. Publisher, Archiver,
// Notifier and Recorder are optional.
type Deps struct {
	Repos     Repositories
	Source    SnapshotSource
	Locks     Locker
	Publisher Publisher
	Archiver  Archiver
	Notifier  Notifier
	Recorder  Recorder
	Clock     func() time.Time
}

// Build wires the executor, rollback manager, opportunity and rule
// services and the orchestrator into one Service. window is the action
// idempotency window.
func Build(d Deps, opts Options, window time.Duration) *Service {
	opts.applyDefaults()

	exec := NewExecutor(d.Repos.Tx, d.Repos.Actions, d.Locks, window, opts.LockTTL).WithRecorder(d.Recorder)
	opps := NewOpportunityService(d.Repos.Opportunities).WithRecorder(d.Recorder)
	rules := NewRuleService(d.Repos.Rules)
	orch := NewOrchestrator(d.Repos, d.Source, exec, opps, rules, d.Locks, opts).WithRecorder(d.Recorder)
	if d.Clock != nil {
		exec.WithClock(d.Clock)
		opps.WithClock(d.Clock)
		orch.WithClock(d.Clock)
	}
	if d.Publisher != nil {
		orch.WithPublisher(d.Publisher)
	}
	if d.Archiver != nil {
		orch.WithArchiver(d.Archiver)
	}
	if d.Notifier != nil {
		orch.WithNotifier(d.Notifier)
	}
	rollback := NewRollbackManager(d.Repos.Tx, d.Repos.Actions, d.Locks, opts.LockTTL).WithRecorder(d.Recorder)

	svc := NewService(d.Repos, orch, rollback, opps, rules)
	svc.thresholds = opts.Thresholds
	return svc
}

// SeedDefaultRules stores the reference policy when the rules table is
// empty and returns how many rules were inserted.
func (s *Service) SeedDefaultRules(ctx context.Context) (int, error) {
	th := s.thresholds
	if th == (engine.Thresholds{}) {
		th = engine.DefaultThresholds()
	}
	return s.rules.SeedDefaults(ctx, th)
}
