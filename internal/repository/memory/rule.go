package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

// RuleRepo implements autopilot.RuleRepository.
type RuleRepo struct{ s *Store }

func (r *RuleRepo) List(_ context.Context) ([]domain.AutonomousRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.AutonomousRule, 0, len(r.s.rules))
	for _, rule := range r.s.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *RuleRepo) Get(_ context.Context, id string) (*domain.AutonomousRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rule, ok := r.s.rules[id]
	if !ok {
		return nil, autopilot.ErrNotFound
	}
	return &rule, nil
}

func (r *RuleRepo) SetActive(_ context.Context, id string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rule, ok := r.s.rules[id]
	if !ok {
		return autopilot.ErrNotFound
	}
	rule.Active = active
	rule.UpdatedAt = time.Now().UTC()
	r.s.rules[id] = rule
	return nil
}

func (r *RuleRepo) Seed(_ context.Context, rules []domain.AutonomousRule) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if len(r.s.rules) > 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for _, rule := range rules {
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		rule.CreatedAt = now
		rule.UpdatedAt = now
		r.s.rules[rule.ID] = rule
	}
	return len(rules), nil
}
