package memory

import (
	"context"

	"github.com/eventnexus/autopilot/internal/domain"
)

// SnapshotRepo implements autopilot.SnapshotRepository.
type SnapshotRepo struct{ s *Store }

func (r *SnapshotRepo) Save(_ context.Context, snap domain.PerformanceSnapshot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.snapshots[snap.CampaignID] = append(r.s.snapshots[snap.CampaignID], snap)
	return nil
}

func (r *SnapshotRepo) Recent(_ context.Context, campaignID string, n int) ([]domain.PerformanceSnapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := r.s.snapshots[campaignID]
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return append([]domain.PerformanceSnapshot(nil), all...), nil
}

// RunRepo implements autopilot.RunRepository.
type RunRepo struct{ s *Store }

func (r *RunRepo) Save(_ context.Context, sum domain.RunSummary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.runs = append(r.s.runs, sum)
	return nil
}

func (r *RunRepo) Recent(_ context.Context, limit int) ([]domain.RunSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.RunSummary
	for i := len(r.s.runs) - 1; i >= 0; i-- {
		out = append(out, r.s.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
