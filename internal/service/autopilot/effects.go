package autopilot

import (
	"context"

	"github.com/eventnexus/autopilot/internal/domain"
)

// Effect is an external side effect the executor committed to but did not
// perform. The orchestrator hands effects to adapters after the commit.
type Effect interface {
	effect()
}

// PublishEffect asks for a campaign to be cross-posted to social platforms.
type PublishEffect struct {
	ActionID  string
	Campaign  domain.Campaign
	Snapshot  domain.PerformanceSnapshot
	Platforms []string
}

func (PublishEffect) effect() {}

// Publisher posts campaign content to social platforms. It reports one
// result per platform and never fails as a whole.
type Publisher interface {
	Publish(ctx context.Context, c domain.Campaign, snap domain.PerformanceSnapshot, platforms []string) []domain.PostResult
}

// Archiver stores finished run summaries outside the database.
type Archiver interface {
	Archive(ctx context.Context, s domain.RunSummary) error
}

// Notifier alerts operators about runs that had failures.
type Notifier interface {
	NotifyRun(ctx context.Context, s domain.RunSummary) error
}

// Recorder receives operational counters.
type Recorder interface {
	CycleFinished(s domain.RunSummary)
	ActionRecorded(t domain.ActionType, status domain.ActionStatus)
	OpportunityRecorded(t domain.OpportunityType, sev domain.Severity)
	RollbackApplied(t domain.ActionType)
}

type nopRecorder struct{}

func (nopRecorder) CycleFinished(domain.RunSummary)                             {}
func (nopRecorder) ActionRecorded(domain.ActionType, domain.ActionStatus)       {}
func (nopRecorder) OpportunityRecorded(domain.OpportunityType, domain.Severity) {}
func (nopRecorder) RollbackApplied(domain.ActionType)                           {}
