package autopilot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eventnexus/autopilot/internal/domain"
)

// OpportunityService persists detected opportunities and moves them
// through their review lifecycle.
type OpportunityService struct {
	repo OpportunityRepository
	rec  Recorder
	now  func() time.Time
}

// NewOpportunityService creates an opportunity service backed by repo.
func NewOpportunityService(repo OpportunityRepository) *OpportunityService {
	return &OpportunityService{repo: repo, rec: nopRecorder{}, now: time.Now}
}

// WithRecorder sets the telemetry sink.
func (s *OpportunityService) WithRecorder(r Recorder) *OpportunityService {
	if r != nil {
		s.rec = r
	}
	return s
}

// WithClock overrides the time source.
func (s *OpportunityService) WithClock(now func() time.Time) *OpportunityService {
	s.now = now
	return s
}

// Record stores a freshly detected opportunity as open. It is a no-op when
// the campaign already has an open opportunity of the same type.
func (s *OpportunityService) Record(ctx context.Context, o domain.Opportunity) (bool, error) {
	now := s.now().UTC()
	o.ID = uuid.New().String()
	o.Status = domain.OpportunityOpen
	o.CreatedAt = now
	o.UpdatedAt = now
	o.ResolvedAt = nil

	inserted, err := s.repo.InsertIfAbsent(ctx, &o)
	if err != nil {
		return false, fmt.Errorf("record %s opportunity: %w", o.Type, err)
	}
	if inserted {
		s.rec.OpportunityRecorded(o.Type, o.Severity)
	}
	return inserted, nil
}

// Resolve moves opportunity id to status. Resolved and dismissed are final.
func (s *OpportunityService) Resolve(ctx context.Context, id string, status domain.OpportunityStatus) (*domain.Opportunity, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, status)
	}

	now := s.now().UTC()
	var resolvedAt *time.Time
	if status.IsTerminal() {
		resolvedAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, id, o.Status, status, resolvedAt); err != nil {
		return nil, err
	}
	o.Status = status
	o.UpdatedAt = now
	o.ResolvedAt = resolvedAt
	return o, nil
}

// List returns opportunities matching f, newest first.
func (s *OpportunityService) List(ctx context.Context, f OpportunityFilter) ([]domain.Opportunity, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	return s.repo.List(ctx, f)
}
