package autopilot

import (
	"context"
	"fmt"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/engine"
)

// RuleService manages the autonomous rules. The rules table is the single
// source of truth for what the evaluator checks.
type RuleService struct {
	repo RuleRepository
}

// NewRuleService creates a rule service backed by repo.
func NewRuleService(repo RuleRepository) *RuleService {
	return &RuleService{repo: repo}
}

// List returns all rules, highest priority first.
func (s *RuleService) List(ctx context.Context) ([]domain.AutonomousRule, error) {
	return s.repo.List(ctx)
}

// Toggle activates or deactivates a rule. The change applies from the
// next cycle.
func (s *RuleService) Toggle(ctx context.Context, id string, active bool) (*domain.AutonomousRule, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// SeedDefaults stores the reference policy if no rules exist yet.
func (s *RuleService) SeedDefaults(ctx context.Context, th engine.Thresholds) (int, error) {
	n, err := s.repo.Seed(ctx, engine.DefaultRules(th))
	if err != nil {
		return 0, fmt.Errorf("seed rules: %w", err)
	}
	return n, nil
}

// RuleSet loads the stored rules into an engine rule set. An empty table
// falls back to the reference policy.
func (s *RuleService) RuleSet(ctx context.Context, th engine.Thresholds, platforms []string) (*engine.RuleSet, error) {
	rules, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return engine.NewRuleSet(rules, th, platforms), nil
}
