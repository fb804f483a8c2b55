package autopilot

import (
	"context"
	"errors"
	"time"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/pkg/logger"
)

// RollbackManager restores the campaign state an executed action captured.
// Rollback is operator-triggered only.
type RollbackManager struct {
	tx      Transactor
	actions ActionRepository
	locks   Locker
	lockTTL time.Duration
	rec     Recorder
	log     *logger.Logger
}

// NewRollbackManager creates a rollback manager.
func NewRollbackManager(tx Transactor, actions ActionRepository, locks Locker, lockTTL time.Duration) *RollbackManager {
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	return &RollbackManager{
		tx:      tx,
		actions: actions,
		locks:   locks,
		lockTTL: lockTTL,
		rec:     nopRecorder{},
		log:     logger.With("component", "rollback"),
	}
}

// WithRecorder sets the telemetry sink.
func (m *RollbackManager) WithRecorder(r Recorder) *RollbackManager {
	if r != nil {
		m.rec = r
	}
	return m
}

// Rollback reverts action id and returns it in rolled_back status.
//
// Every failure is a *RollbackError. Rolling back an action that is not
// executed, including one already rolled back, fails with
// ErrActionNotExecuted. Any action whose campaign no longer exists fails
// with ErrCampaignMissing. A cross-post cannot be unpublished, so rolling
// one back only closes the record.
func (m *RollbackManager) Rollback(ctx context.Context, id string) (*domain.AutonomousAction, error) {
	a, err := m.actions.Get(ctx, id)
	if err != nil {
		return nil, &RollbackError{ActionID: id, Err: err}
	}

	lock := m.locks.Lock(CampaignLockKey(a.CampaignID), m.lockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, &RollbackError{ActionID: id, Err: err}
	}
	if !acquired {
		return nil, &RollbackError{ActionID: id, Err: ErrCampaignLocked}
	}
	defer lock.Release(context.WithoutCancel(ctx))

	var out *domain.AutonomousAction
	err = m.tx.InTx(ctx, func(tx Tx) error {
		current, err := tx.GetAction(ctx, id)
		if err != nil {
			return &RollbackError{ActionID: id, Err: err}
		}
		if current.Status != domain.ActionExecuted {
			return &RollbackError{ActionID: id, Status: current.Status, Err: ErrActionNotExecuted}
		}

		c, err := tx.GetCampaign(ctx, current.CampaignID)
		if errors.Is(err, ErrCampaignNotFound) {
			return &RollbackError{ActionID: id, Status: current.Status, Err: ErrCampaignMissing}
		}
		if err != nil {
			return &RollbackError{ActionID: id, Status: current.Status, Err: err}
		}
		if current.Type.MutatesCampaign() {
			if err := tx.UpdateCampaign(ctx, c.ID, c.Version, current.Snapshot); err != nil {
				return &RollbackError{ActionID: id, Status: current.Status, Err: err}
			}
		}

		if err := tx.UpdateActionStatus(ctx, id, domain.ActionExecuted, domain.ActionRolledBack); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				err = ErrActionNotExecuted
			}
			return &RollbackError{ActionID: id, Status: current.Status, Err: err}
		}
		current.Status = domain.ActionRolledBack
		out = current
		return nil
	})
	if err != nil {
		var rbErr *RollbackError
		if !errors.As(err, &rbErr) {
			err = &RollbackError{ActionID: id, Err: err}
		}
		m.log.Warn("autopilot: rollback refused", "action_id", id, "error", err.Error())
		return nil, err
	}

	m.rec.RollbackApplied(out.Type)
	m.log.Info("autopilot: action rolled back",
		"action_id", id, "campaign_id", out.CampaignID, "action_type", out.Type,
		"restored_status", out.Snapshot.Status, "restored_budget", out.Snapshot.DailyBudget)
	return out, nil
}
