package autopilot

import (
	"errors"
	"fmt"

	"github.com/eventnexus/autopilot/internal/domain"
)

// Sentinel errors for the autopilot service layer.
var (
	ErrNotFound          = errors.New("not found")
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("unknown status")
	ErrConflict          = errors.New("campaign changed since it was evaluated")
	ErrDuplicateAction   = errors.New("action already recorded for this window")
	ErrCycleInProgress   = errors.New("an autopilot cycle is already running")
	ErrCampaignLocked    = errors.New("campaign is locked by another operation")
	ErrActionNotExecuted = errors.New("action is not in executed status")
	ErrCampaignMissing   = errors.New("campaign referenced by action no longer exists")
)

// RollbackError is returned for every rollback that could not be applied.
// It unwraps to one of ErrNotFound, ErrActionNotExecuted, ErrCampaignMissing
// or ErrCampaignLocked, or to the underlying storage error.
type RollbackError struct {
	ActionID string
	Status   domain.ActionStatus
	Err      error
}

func (e *RollbackError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("rollback %s (status %s): %v", e.ActionID, e.Status, e.Err)
	}
	return fmt.Sprintf("rollback %s: %v", e.ActionID, e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }
