package memory

import (
	"context"
	"sort"
	"time"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

// CampaignRepo implements autopilot.CampaignRepository.
type CampaignRepo struct{ s *Store }

func (r *CampaignRepo) ListActive(_ context.Context) ([]domain.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Campaign
	for _, c := range r.s.campaigns {
		if c.Status == domain.CampaignActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *CampaignRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, autopilot.ErrCampaignNotFound
	}
	return &c, nil
}

func (r *CampaignRepo) MarkEvaluated(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return autopilot.ErrCampaignNotFound
	}
	c.LastEvaluatedAt = &at
	r.s.campaigns[id] = c
	return nil
}
