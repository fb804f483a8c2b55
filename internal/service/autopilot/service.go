package autopilot

import (
	"context"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/engine"
)

// Service is the operator entry point to the autopilot: the API and the
// CLI call it, never the components directly.
type Service struct {
	repos    Repositories
	orch     *Orchestrator
	rollback *RollbackManager
	opps     *OpportunityService
	rules    *RuleService

	thresholds engine.Thresholds
}

// NewService bundles the autopilot components behind one facade.
func NewService(repos Repositories, orch *Orchestrator, rollback *RollbackManager, opps *OpportunityService, rules *RuleService) *Service {
	return &Service{repos: repos, orch: orch, rollback: rollback, opps: opps, rules: rules}
}

// RunCycle evaluates every active campaign once.
func (s *Service) RunCycle(ctx context.Context, trigger domain.RunTrigger) (domain.RunSummary, error) {
	return s.orch.Run(ctx, trigger)
}

// Rollback reverts an executed action.
func (s *Service) Rollback(ctx context.Context, actionID string) (*domain.AutonomousAction, error) {
	return s.rollback.Rollback(ctx, actionID)
}

// ResolveOpportunity moves an opportunity to a new review status.
func (s *Service) ResolveOpportunity(ctx context.Context, id string, status domain.OpportunityStatus) (*domain.Opportunity, error) {
	return s.opps.Resolve(ctx, id, status)
}

// ToggleRule activates or deactivates a rule.
func (s *Service) ToggleRule(ctx context.Context, id string, active bool) (*domain.AutonomousRule, error) {
	return s.rules.Toggle(ctx, id, active)
}

// Rules lists the autonomous rules.
func (s *Service) Rules(ctx context.Context) ([]domain.AutonomousRule, error) {
	return s.rules.List(ctx)
}

// Actions lists recorded actions.
func (s *Service) Actions(ctx context.Context, f ActionFilter) ([]domain.AutonomousAction, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	return s.repos.Actions.List(ctx, f)
}

// Opportunities lists detected opportunities.
func (s *Service) Opportunities(ctx context.Context, f OpportunityFilter) ([]domain.Opportunity, error) {
	return s.opps.List(ctx, f)
}

// Runs lists recent cycle summaries.
func (s *Service) Runs(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.repos.Runs.Recent(ctx, limit)
}
