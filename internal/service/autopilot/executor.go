package autopilot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/engine"
	"github.com/eventnexus/autopilot/internal/pkg/logger"
)

// CampaignLockKey returns the lock name that serializes writes to one campaign.
func CampaignLockKey(campaignID string) string {
	return "autopilot:campaign:" + campaignID
}

// IdempotencyKey identifies an action of type t on a campaign within the
// cycle window that starts at windowStart.
func IdempotencyKey(campaignID string, t domain.ActionType, windowStart time.Time) string {
	return fmt.Sprintf("%s:%s:%d", campaignID, t, windowStart.Unix())
}

// Result is the outcome of executing one recommendation.
type Result struct {
	// Action is the record written: executed on success, failed on error,
	// nil when skipped.
	Action     *domain.AutonomousAction
	Skipped    bool
	SkipReason string
	Effects    []Effect
}

// Executor applies recommendations to campaigns. Each execution is one
// transaction: the action record and the campaign mutation commit together
// or not at all.
type Executor struct {
	tx      Transactor
	actions ActionRepository
	locks   Locker
	window  time.Duration
	lockTTL time.Duration
	rec     Recorder
	now     func() time.Time
	log     *logger.Logger
}

// NewExecutor creates an executor. window is the idempotency window: a
// second action of the same type on the same campaign inside it is skipped.
func NewExecutor(tx Transactor, actions ActionRepository, locks Locker, window, lockTTL time.Duration) *Executor {
	if window <= 0 {
		window = time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	return &Executor{
		tx:      tx,
		actions: actions,
		locks:   locks,
		window:  window,
		lockTTL: lockTTL,
		rec:     nopRecorder{},
		now:     time.Now,
		log:     logger.With("component", "executor"),
	}
}

// WithRecorder sets the telemetry sink.
func (e *Executor) WithRecorder(r Recorder) *Executor {
	if r != nil {
		e.rec = r
	}
	return e
}

// WithClock overrides the time source.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Execute applies rec to campaign c as it was when evaluated. snap is the
// snapshot the decision was made on and is passed through to effects.
//
// A held campaign lock or an action already recorded in this window is
// reported as Skipped with a nil error. Any other failure leaves the
// campaign unchanged, writes a failed action record and returns the error.
func (e *Executor) Execute(ctx context.Context, runID string, c domain.Campaign, snap domain.PerformanceSnapshot, rec engine.Recommendation) (Result, error) {
	lock := e.locks.Lock(CampaignLockKey(c.ID), e.lockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("acquire campaign lock: %w", err)
	}
	if !acquired {
		e.log.Info("autopilot: campaign locked, skipping", "campaign_id", c.ID, "action_type", rec.Type)
		return Result{Skipped: true, SkipReason: ErrCampaignLocked.Error()}, nil
	}
	defer lock.Release(context.WithoutCancel(ctx))

	now := e.now().UTC()
	action := &domain.AutonomousAction{
		ID:             uuid.New().String(),
		CampaignID:     c.ID,
		RunID:          runID,
		Type:           rec.Type,
		Reason:         rec.Reason,
		Confidence:     rec.Confidence,
		Status:         domain.ActionExecuted,
		Payload:        rec.Payload,
		IdempotencyKey: IdempotencyKey(c.ID, rec.Type, now.Truncate(e.window)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = e.tx.InTx(ctx, func(tx Tx) error {
		current, err := tx.GetCampaign(ctx, c.ID)
		if err != nil {
			return err
		}
		action.Snapshot = current.State()
		if err := tx.InsertAction(ctx, action); err != nil {
			return err
		}
		if !rec.Type.MutatesCampaign() {
			return nil
		}
		// Compare against the version the decision was made on, not the
		// one just read, so a campaign changed mid-cycle is never acted on.
		return tx.UpdateCampaign(ctx, c.ID, c.Version, rec.Target)
	})

	switch {
	case err == nil:
		e.rec.ActionRecorded(action.Type, action.Status)
		e.log.Info("autopilot: action executed",
			"campaign_id", c.ID, "action_id", action.ID, "action_type", action.Type, "confidence", action.Confidence)
		return Result{Action: action, Effects: effectsFor(action, c, snap)}, nil

	case errors.Is(err, ErrDuplicateAction):
		e.log.Info("autopilot: action already recorded this window", "campaign_id", c.ID, "action_type", rec.Type)
		return Result{Skipped: true, SkipReason: ErrDuplicateAction.Error()}, nil
	}

	failed := e.recordFailure(ctx, action, err)
	return Result{Action: failed}, fmt.Errorf("execute %s on %s: %w", rec.Type, c.ID, err)
}

// recordFailure writes the failed action outside the rolled-back
// transaction. It carries no idempotency key so a later cycle may retry.
func (e *Executor) recordFailure(ctx context.Context, attempted *domain.AutonomousAction, cause error) *domain.AutonomousAction {
	failed := *attempted
	failed.ID = uuid.New().String()
	failed.Status = domain.ActionFailed
	failed.IdempotencyKey = ""
	failed.Error = cause.Error()

	e.log.Warn("autopilot: action failed",
		"campaign_id", failed.CampaignID, "action_type", failed.Type, "error", cause.Error())

	if err := e.actions.Insert(context.WithoutCancel(ctx), &failed); err != nil {
		e.log.Error("autopilot: could not record failed action",
			"campaign_id", failed.CampaignID, "action_type", failed.Type, "error", err.Error())
		return &failed
	}
	e.rec.ActionRecorded(failed.Type, failed.Status)
	return &failed
}

func effectsFor(a *domain.AutonomousAction, c domain.Campaign, snap domain.PerformanceSnapshot) []Effect {
	if a.Payload.Kind != domain.PayloadCrossPost || a.Payload.CrossPost == nil {
		return nil
	}
	return []Effect{PublishEffect{
		ActionID:  a.ID,
		Campaign:  c,
		Snapshot:  snap,
		Platforms: append([]string(nil), a.Payload.CrossPost.Platforms...),
	}}
}
