package autopilot

import (
	"context"
	"time"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/pkg/distlock"
)

// CampaignRepository reads campaigns. Status and budget are only written
// through a Tx.
type CampaignRepository interface {
	// ListActive returns every campaign in active status.
	ListActive(ctx context.Context) ([]domain.Campaign, error)

	// Get returns ErrCampaignNotFound if the campaign doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// MarkEvaluated stamps last_evaluated_at. It does not bump the version.
	MarkEvaluated(ctx context.Context, id string, at time.Time) error
}

// ActionRepository reads the action audit log and appends records that
// never touch a campaign.
type ActionRepository interface {
	// Get returns ErrNotFound if the action doesn't exist.
	Get(ctx context.Context, id string) (*domain.AutonomousAction, error)

	// List returns actions newest first.
	List(ctx context.Context, f ActionFilter) ([]domain.AutonomousAction, error)

	// Insert appends a record outside any transaction. Used for failed
	// actions, which carry no idempotency key.
	Insert(ctx context.Context, a *domain.AutonomousAction) error

	// UpdatePayload replaces an action's payload without changing its status.
	UpdatePayload(ctx context.Context, id string, p domain.ActionPayload) error
}

// OpportunityRepository persists detected opportunities.
type OpportunityRepository interface {
	// InsertIfAbsent stores o unless an open opportunity with the same
	// campaign and type exists. Reports whether a row was inserted.
	InsertIfAbsent(ctx context.Context, o *domain.Opportunity) (bool, error)

	// Get returns ErrNotFound if the opportunity doesn't exist.
	Get(ctx context.Context, id string) (*domain.Opportunity, error)

	// List returns opportunities newest first.
	List(ctx context.Context, f OpportunityFilter) ([]domain.Opportunity, error)

	// UpdateStatus moves an opportunity from one status to another. It
	// returns ErrInvalidTransition if the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to domain.OpportunityStatus, resolvedAt *time.Time) error
}

// RuleRepository stores the autonomous rules that drive evaluation.
type RuleRepository interface {
	// List returns all rules ordered by priority, highest first.
	List(ctx context.Context) ([]domain.AutonomousRule, error)

	// Get returns ErrNotFound if the rule doesn't exist.
	Get(ctx context.Context, id string) (*domain.AutonomousRule, error)

	// SetActive toggles a rule. Returns ErrNotFound for unknown ids.
	SetActive(ctx context.Context, id string, active bool) error

	// Seed inserts rules only when no rule exists yet and returns how many
	// were inserted.
	Seed(ctx context.Context, rules []domain.AutonomousRule) (int, error)
}

// SnapshotRepository keeps the snapshot history the detector reads trends from.
type SnapshotRepository interface {
	Save(ctx context.Context, s domain.PerformanceSnapshot) error

	// Recent returns up to n snapshots for a campaign, oldest first.
	Recent(ctx context.Context, campaignID string, n int) ([]domain.PerformanceSnapshot, error)
}

// RunRepository keeps the history of cycle summaries.
type RunRepository interface {
	Save(ctx context.Context, s domain.RunSummary) error

	// Recent returns up to limit summaries, newest first.
	Recent(ctx context.Context, limit int) ([]domain.RunSummary, error)
}

// Transactor runs fn in a single storage transaction. If fn returns an
// error nothing it wrote is kept.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of writes that must commit together: the campaign
// mutation and its action record.
type Tx interface {
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)

	// UpdateCampaign applies state and bumps the version. It returns
	// ErrConflict if the stored version differs from expectedVersion and
	// ErrCampaignNotFound if the campaign is gone.
	UpdateCampaign(ctx context.Context, id string, expectedVersion int64, state domain.CampaignState) error

	// InsertAction returns ErrDuplicateAction when the idempotency key is
	// already taken.
	InsertAction(ctx context.Context, a *domain.AutonomousAction) error

	GetAction(ctx context.Context, id string) (*domain.AutonomousAction, error)

	// UpdateActionStatus moves an action from one status to another and
	// returns ErrInvalidTransition if the stored status is no longer from.
	UpdateActionStatus(ctx context.Context, id string, from, to domain.ActionStatus) error
}

// Repositories bundles the storage the autopilot needs.
type Repositories struct {
	Campaigns     CampaignRepository
	Actions       ActionRepository
	Opportunities OpportunityRepository
	Rules         RuleRepository
	Snapshots     SnapshotRepository
	Runs          RunRepository
	Tx            Transactor
}

// Locker hands out named locks. *distlock.Locker satisfies it.
type Locker interface {
	Lock(key string, ttl time.Duration) distlock.DistLock
}

// SnapshotSource produces the current snapshot of a campaign.
// *metrics.Aggregator satisfies it.
type SnapshotSource interface {
	Aggregate(ctx context.Context, campaignID string) (domain.PerformanceSnapshot, error)
}

// ActionFilter controls action listings.
type ActionFilter struct {
	CampaignID string
	Status     domain.ActionStatus
	Limit      int
}

// OpportunityFilter controls opportunity listings.
type OpportunityFilter struct {
	CampaignID string
	Status     domain.OpportunityStatus
	Limit      int
}

// DefaultListLimit caps listings that don't set a limit.
const DefaultListLimit = 50
