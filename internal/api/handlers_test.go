package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventnexus/autopilot/internal/config"
	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/engine"
	"github.com/eventnexus/autopilot/internal/metrics"
	"github.com/eventnexus/autopilot/internal/pkg/distlock"
	"github.com/eventnexus/autopilot/internal/repository/memory"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
	"github.com/eventnexus/autopilot/internal/telemetry"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type testAPI struct {
	store   *memory.Store
	handler http.Handler
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	rec := telemetry.New(nil)
	svc := autopilot.Build(autopilot.Deps{
		Repos:    store.Repositories(),
		Source:   metrics.NewAggregator(store).WithClock(clock),
		Locks:    distlock.NewLocker(nil, nil),
		Recorder: rec,
		Clock:    clock,
	}, autopilot.Options{Concurrency: 2, Thresholds: engine.DefaultThresholds()}, time.Hour)
	_, err := svc.SeedDefaultRules(context.Background())
	require.NoError(t, err)

	srv := NewServer(config.ServerConfig{Port: 0}, svc, NewHealthChecker(nil, nil, nil, ""), rec.Handler())
	return &testAPI{store: store, handler: srv.Handler()}
}

func (a *testAPI) addCampaign(id string, c *domain.Counters) {
	started := testNow.Add(-72 * time.Hour)
	a.store.PutCampaign(domain.Campaign{
		ID: id, Name: "Campaign " + id, Status: domain.CampaignActive,
		DailyBudget: 100, Version: 1, StartedAt: &started,
	})
	if c != nil {
		a.store.SetCounters(id, *c)
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var loser = domain.Counters{Impressions: 10000, Clicks: 50, Spend: 75, Revenue: 50}

// =============================================================================
// RUNS
// =============================================================================

func TestRunCycleEndpoint(t *testing.T) {
	a := setupTestAPI(t)
	a.addCampaign("c-1", &loser)

	rec := a.do(t, http.MethodPost, "/api/autopilot/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decode[domain.RunSummary](t, rec)
	assert.Equal(t, 1, sum.CampaignsEvaluated)
	assert.Equal(t, 1, sum.CampaignsPaused)
	assert.Equal(t, domain.TriggerManual, sum.Trigger)

	rec = a.do(t, http.MethodGet, "/api/autopilot/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[struct {
		Runs []domain.RunSummary `json:"runs"`
	}](t, rec)
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, sum.RunID, runs.Runs[0].RunID)
}

func TestRunCycleWhileAnotherRuns(t *testing.T) {
	a := setupTestAPI(t)
	lock := distlock.NewLocker(nil, nil).Lock(autopilot.CycleLockKey, time.Minute)
	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	defer lock.Release(context.Background())

	rec := a.do(t, http.MethodPost, "/api/autopilot/runs", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeCycleRunning, decode[errorBody](t, rec).Code)
}

// =============================================================================
// ACTIONS AND ROLLBACK
// =============================================================================

func TestListActionsAndRollback(t *testing.T) {
	a := setupTestAPI(t)
	a.addCampaign("c-1", &loser)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/autopilot/runs", nil).Code)

	rec := a.do(t, http.MethodGet, "/api/autopilot/actions?campaign_id=c-1&status=executed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Actions []domain.AutonomousAction `json:"actions"`
	}](t, rec)
	require.Len(t, list.Actions, 1)
	id := list.Actions[0].ID
	assert.Equal(t, domain.ActionAutoPause, list.Actions[0].Type)

	rec = a.do(t, http.MethodPost, "/api/autopilot/actions/"+id+"/rollback", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.ActionRolledBack, decode[domain.AutonomousAction](t, rec).Status)

	c, ok := a.store.Campaign("c-1")
	require.True(t, ok)
	assert.Equal(t, domain.CampaignActive, c.Status)

	rec = a.do(t, http.MethodPost, "/api/autopilot/actions/"+id+"/rollback", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeNotExecuted, decode[errorBody](t, rec).Code)
}

func TestRollbackErrors(t *testing.T) {
	a := setupTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/autopilot/actions/nope/rollback", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	a.addCampaign("c-2", &loser)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/autopilot/runs", nil).Code)
	list := decode[struct {
		Actions []domain.AutonomousAction `json:"actions"`
	}](t, a.do(t, http.MethodGet, "/api/autopilot/actions?campaign_id=c-2", nil))
	require.Len(t, list.Actions, 1)

	a.store.DeleteCampaign("c-2")
	rec = a.do(t, http.MethodPost, "/api/autopilot/actions/"+list.Actions[0].ID+"/rollback", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, codeCampaignMissing, decode[errorBody](t, rec).Code)
}

func TestListActionsRejectsUnknownStatus(t *testing.T) {
	a := setupTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/autopilot/actions?status=exploded", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListActionsEmptyIsArray(t *testing.T) {
	a := setupTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/autopilot/actions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"actions":[]}`, rec.Body.String())
}

// =============================================================================
// OPPORTUNITIES
// =============================================================================

func TestResolveOpportunity(t *testing.T) {
	a := setupTestAPI(t)
	a.addCampaign("c-3", nil) // running for 72h with no impressions
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/autopilot/runs", nil).Code)

	rec := a.do(t, http.MethodGet, "/api/autopilot/opportunities?status=open", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Opportunities []domain.Opportunity `json:"opportunities"`
	}](t, rec)
	require.Len(t, list.Opportunities, 1)
	opp := list.Opportunities[0]
	assert.Equal(t, domain.OpportunityUnderDelivery, opp.Type)

	path := "/api/autopilot/opportunities/" + opp.ID
	rec = a.do(t, http.MethodPatch, path, map[string]string{"status": "resolved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resolved := decode[domain.Opportunity](t, rec)
	assert.Equal(t, domain.OpportunityResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	rec = a.do(t, http.MethodPatch, path, map[string]string{"status": "in_progress"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeInvalidTransition, decode[errorBody](t, rec).Code)

	rec = a.do(t, http.MethodPatch, path, map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPatch, "/api/autopilot/opportunities/missing", map[string]string{"status": "resolved"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// RULES
// =============================================================================

func TestToggleRule(t *testing.T) {
	a := setupTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/autopilot/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Rules []domain.AutonomousRule `json:"rules"`
	}](t, rec)
	require.NotEmpty(t, list.Rules)
	rule := list.Rules[0]
	require.True(t, rule.Active)

	path := "/api/autopilot/rules/" + rule.ID
	rec = a.do(t, http.MethodPatch, path, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPatch, path, map[string]any{"active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[domain.AutonomousRule](t, rec).Active)

	rec = a.do(t, http.MethodPatch, "/api/autopilot/rules/missing", map[string]any{"active": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// HEALTH AND METRICS
// =============================================================================

func TestHealthWithoutDependencies(t *testing.T) {
	a := setupTestAPI(t)

	rec := a.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[HealthStatus](t, rec)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "not configured", status.Checks["database"].Message)

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health/ready", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	a := setupTestAPI(t)
	a.addCampaign("c-1", &loser)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/autopilot/runs", nil).Code)

	rec := a.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `autopilot_cycles_total{result="ok",trigger="manual"} 1`)
}

func TestDetermineOverallStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]ComponentCheck
		want   string
	}{
		{"all up", map[string]ComponentCheck{"database": {Status: "up"}, "redis": {Status: "up"}}, "healthy"},
		{"db down", map[string]ComponentCheck{"database": {Status: "down", Message: "ping failed"}}, "unhealthy"},
		{"redis down", map[string]ComponentCheck{"database": {Status: "up"}, "redis": {Status: "down", Message: "ping failed"}}, "degraded"},
		{"cycles degraded", map[string]ComponentCheck{"cycles": {Status: "degraded"}}, "degraded"},
		{"unconfigured", map[string]ComponentCheck{"database": {Status: "down", Message: "not configured"}}, "healthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineOverallStatus(tt.checks))
		})
	}
}
