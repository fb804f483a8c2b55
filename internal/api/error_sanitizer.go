package api

import (
	"errors"
	"net/http"

	"github.com/eventnexus/autopilot/internal/pkg/httputil"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

// Machine-readable error codes returned alongside 4xx responses.
const (
	codeNotFound         = "not_found"
	codeCycleRunning     = "cycle_in_progress"
	codeNotExecuted      = "action_not_executed"
	codeCampaignLocked   = "campaign_locked"
	codeCampaignMissing  = "campaign_missing"
	codeInvalidStatus    = "invalid_status"
	codeInvalidTransition = "invalid_transition"
	codeConflict         = "conflict"
)

// respondServiceError maps autopilot errors onto HTTP statuses. Anything
// unrecognised is logged and answered with a generic 500 so storage
// details never reach the client.
func respondServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		httputil.InternalError(w, err)
		return
	}
	httputil.ErrorCode(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, autopilot.ErrNotFound), errors.Is(err, autopilot.ErrCampaignNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, autopilot.ErrCycleInProgress):
		return http.StatusConflict, codeCycleRunning
	case errors.Is(err, autopilot.ErrActionNotExecuted):
		return http.StatusConflict, codeNotExecuted
	case errors.Is(err, autopilot.ErrCampaignLocked):
		return http.StatusConflict, codeCampaignLocked
	case errors.Is(err, autopilot.ErrConflict):
		return http.StatusConflict, codeConflict
	case errors.Is(err, autopilot.ErrInvalidTransition):
		return http.StatusConflict, codeInvalidTransition
	case errors.Is(err, autopilot.ErrCampaignMissing):
		return http.StatusUnprocessableEntity, codeCampaignMissing
	case errors.Is(err, autopilot.ErrInvalidStatus):
		return http.StatusBadRequest, codeInvalidStatus
	}
	return http.StatusInternalServerError, ""
}
