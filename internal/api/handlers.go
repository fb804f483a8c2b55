package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/pkg/httputil"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

const maxListLimit = 200

// Handlers serves the autopilot operator endpoints.
type Handlers struct {
	svc *autopilot.Service
}

// NewHandlers creates handlers over svc.
func NewHandlers(svc *autopilot.Service) *Handlers {
	return &Handlers{svc: svc}
}

// RunCycle runs a manual cycle and returns its summary.
//
//	POST /api/autopilot/runs
func (h *Handlers) RunCycle(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.RunCycle(r.Context(), domain.TriggerManual)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, summary)
}

// ListRuns returns recent cycle summaries, newest first.
//
//	GET /api/autopilot/runs?limit=
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.svc.Runs(r.Context(), listLimit(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"runs": orEmpty(runs)})
}

// ListActions returns recorded actions, newest first.
//
//	GET /api/autopilot/actions?campaign_id=&status=&limit=
func (h *Handlers) ListActions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.ActionStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		httputil.ErrorCode(w, http.StatusBadRequest, codeInvalidStatus, "unknown action status "+string(status))
		return
	}
	actions, err := h.svc.Actions(r.Context(), autopilot.ActionFilter{
		CampaignID: q.Get("campaign_id"),
		Status:     status,
		Limit:      listLimit(r),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"actions": orEmpty(actions)})
}

// Rollback reverts an executed action.
//
//	POST /api/autopilot/actions/{id}/rollback
func (h *Handlers) Rollback(w http.ResponseWriter, r *http.Request) {
	action, err := h.svc.Rollback(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, action)
}

// ListOpportunities returns detected opportunities, newest first.
//
//	GET /api/autopilot/opportunities?campaign_id=&status=&limit=
func (h *Handlers) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.OpportunityStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		httputil.ErrorCode(w, http.StatusBadRequest, codeInvalidStatus, "unknown opportunity status "+string(status))
		return
	}
	opps, err := h.svc.Opportunities(r.Context(), autopilot.OpportunityFilter{
		CampaignID: q.Get("campaign_id"),
		Status:     status,
		Limit:      listLimit(r),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"opportunities": orEmpty(opps)})
}

type resolveRequest struct {
	Status domain.OpportunityStatus `json:"status"`
}

// ResolveOpportunity moves an opportunity through its review lifecycle.
//
//	PATCH /api/autopilot/opportunities/{id}  {"status": "resolved"}
func (h *Handlers) ResolveOpportunity(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	opp, err := h.svc.ResolveOpportunity(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, opp)
}

// ListRules returns every autonomous rule, highest priority first.
//
//	GET /api/autopilot/rules
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.Rules(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"rules": orEmpty(rules)})
}

type toggleRequest struct {
	Active *bool `json:"active"`
}

// ToggleRule switches a rule on or off from the next cycle.
//
//	PATCH /api/autopilot/rules/{id}  {"active": false}
func (h *Handlers) ToggleRule(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		httputil.BadRequest(w, "active is required")
		return
	}
	rule, err := h.svc.ToggleRule(r.Context(), chi.URLParam(r, "id"), *req.Active)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, rule)
}

func listLimit(r *http.Request) int {
	limit := httputil.QueryInt(r, "limit", autopilot.DefaultListLimit)
	if limit == 0 {
		limit = autopilot.DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}

// orEmpty keeps empty lists serialised as [] rather than null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
