package memory

import (
	"context"
	"time"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

// OpportunityRepo implements autopilot.OpportunityRepository.
type OpportunityRepo struct{ s *Store }

func (r *OpportunityRepo) InsertIfAbsent(_ context.Context, o *domain.Opportunity) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailInsertOpportunity != nil {
		if err := r.s.FailInsertOpportunity(*o); err != nil {
			return false, err
		}
	}
	for _, existing := range r.s.opps {
		if existing.CampaignID == o.CampaignID && existing.Type == o.Type && existing.Status == domain.OpportunityOpen {
			return false, nil
		}
	}
	r.s.opps[o.ID] = *o
	r.s.oppOrder = append(r.s.oppOrder, o.ID)
	return true, nil
}

func (r *OpportunityRepo) Get(_ context.Context, id string) (*domain.Opportunity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.opps[id]
	if !ok {
		return nil, autopilot.ErrNotFound
	}
	return &o, nil
}

func (r *OpportunityRepo) List(_ context.Context, f autopilot.OpportunityFilter) ([]domain.Opportunity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Opportunity
	for i := len(r.s.oppOrder) - 1; i >= 0; i-- {
		o := r.s.opps[r.s.oppOrder[i]]
		if f.CampaignID != "" && o.CampaignID != f.CampaignID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (r *OpportunityRepo) UpdateStatus(_ context.Context, id string, from, to domain.OpportunityStatus, resolvedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.opps[id]
	if !ok {
		return autopilot.ErrNotFound
	}
	if o.Status != from {
		return autopilot.ErrInvalidTransition
	}
	o.Status = to
	o.ResolvedAt = resolvedAt
	o.UpdatedAt = time.Now().UTC()
	r.s.opps[id] = o
	return nil
}
