package memory

import (
	"context"
	"time"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

// ActionRepo implements autopilot.ActionRepository.
type ActionRepo struct{ s *Store }

func (r *ActionRepo) Get(_ context.Context, id string) (*domain.AutonomousAction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.actions[id]
	if !ok {
		return nil, autopilot.ErrNotFound
	}
	return &a, nil
}

func (r *ActionRepo) List(_ context.Context, f autopilot.ActionFilter) ([]domain.AutonomousAction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.AutonomousAction
	for i := len(r.s.actionOrder) - 1; i >= 0; i-- {
		a := r.s.actions[r.s.actionOrder[i]]
		if f.CampaignID != "" && a.CampaignID != f.CampaignID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r *ActionRepo) Insert(_ context.Context, a *domain.AutonomousAction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.IdempotencyKey != "" {
		if _, taken := r.s.actionKeys[a.IdempotencyKey]; taken {
			return autopilot.ErrDuplicateAction
		}
		r.s.actionKeys[a.IdempotencyKey] = a.ID
	}
	r.s.putAction(*a)
	return nil
}

func (r *ActionRepo) UpdatePayload(_ context.Context, id string, p domain.ActionPayload) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.actions[id]
	if !ok {
		return autopilot.ErrNotFound
	}
	a.Payload = p
	a.UpdatedAt = time.Now().UTC()
	r.s.actions[id] = a
	return nil
}

// putAction stores a, keeping insertion order for listings. Callers hold mu.
func (s *Store) putAction(a domain.AutonomousAction) {
	if _, exists := s.actions[a.ID]; !exists {
		s.actionOrder = append(s.actionOrder, a.ID)
	}
	s.actions[a.ID] = a
}
