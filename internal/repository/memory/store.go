// Package memory implements the autopilot repositories in process memory.
// It backs the service tests and the server when no DATABASE_URL is set.
package memory

import (
	"context"
	"sync"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/metrics"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

type counterRow struct {
	totals   domain.Counters
	segments []domain.SegmentCounters
}

// Store holds every autopilot table. All repositories returned by a Store
// share its data and its lock.
type Store struct {
	mu sync.Mutex

	campaigns   map[string]domain.Campaign
	actions     map[string]domain.AutonomousAction
	actionOrder []string
	actionKeys  map[string]string // idempotency key -> action id
	opps        map[string]domain.Opportunity
	oppOrder    []string
	rules       map[string]domain.AutonomousRule
	snapshots   map[string][]domain.PerformanceSnapshot
	runs        []domain.RunSummary
	counters    map[string]counterRow

	// FailUpdateCampaign, when set, is consulted before every transactional
	// campaign update. A non-nil return aborts the transaction.
	FailUpdateCampaign func(campaignID string) error
	// FailInsertOpportunity, when set, is consulted before every insert.
	FailInsertOpportunity func(o domain.Opportunity) error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		campaigns:  make(map[string]domain.Campaign),
		actions:    make(map[string]domain.AutonomousAction),
		actionKeys: make(map[string]string),
		opps:       make(map[string]domain.Opportunity),
		rules:      make(map[string]domain.AutonomousRule),
		snapshots:  make(map[string][]domain.PerformanceSnapshot),
		counters:   make(map[string]counterRow),
	}
}

// Repositories returns every repository view of the store.
func (s *Store) Repositories() autopilot.Repositories {
	return autopilot.Repositories{
		Campaigns:     &CampaignRepo{s: s},
		Actions:       &ActionRepo{s: s},
		Opportunities: &OpportunityRepo{s: s},
		Rules:         &RuleRepo{s: s},
		Snapshots:     &SnapshotRepo{s: s},
		Runs:          &RunRepo{s: s},
		Tx:            s,
	}
}

// PutCampaign inserts or replaces a campaign.
func (s *Store) PutCampaign(c domain.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = c
}

// DeleteCampaign removes a campaign.
func (s *Store) DeleteCampaign(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.campaigns, id)
}

// Campaign returns a copy of a stored campaign.
func (s *Store) Campaign(id string) (domain.Campaign, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	return c, ok
}

// SetCounters records the raw performance totals for a campaign.
func (s *Store) SetCounters(campaignID string, c domain.Counters, segments ...domain.SegmentCounters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[campaignID] = counterRow{totals: c, segments: segments}
}

// Counters implements metrics.Source.
func (s *Store) Counters(_ context.Context, campaignID string) (domain.Counters, []domain.SegmentCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.counters[campaignID]
	if !ok {
		return domain.Counters{}, nil, metrics.ErrNoData
	}
	return row.totals, append([]domain.SegmentCounters(nil), row.segments...), nil
}
