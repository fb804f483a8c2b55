package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/metrics"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

var ctx = context.Background()

func seedCampaign(s *Store) {
	s.PutCampaign(domain.Campaign{ID: "c-1", Status: domain.CampaignActive, DailyBudget: 100, Version: 3})
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestInTxCommits(t *testing.T) {
	s := NewStore()
	seedCampaign(s)

	err := s.InTx(ctx, func(tx autopilot.Tx) error {
		if err := tx.UpdateCampaign(ctx, "c-1", 3, domain.CampaignState{Status: domain.CampaignPaused, DailyBudget: 100}); err != nil {
			return err
		}
		return tx.InsertAction(ctx, &domain.AutonomousAction{ID: "a-1", CampaignID: "c-1", Status: domain.ActionExecuted, IdempotencyKey: "k-1"})
	})
	require.NoError(t, err)

	c, _ := s.Campaign("c-1")
	assert.Equal(t, domain.CampaignPaused, c.Status)
	assert.Equal(t, int64(4), c.Version)

	a, err := s.Repositories().Actions.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionExecuted, a.Status)
}

func TestInTxDiscardsOnError(t *testing.T) {
	s := NewStore()
	seedCampaign(s)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx autopilot.Tx) error {
		require.NoError(t, tx.InsertAction(ctx, &domain.AutonomousAction{ID: "a-1", CampaignID: "c-1", IdempotencyKey: "k-1"}))
		require.NoError(t, tx.UpdateCampaign(ctx, "c-1", 3, domain.CampaignState{Status: domain.CampaignPaused}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	c, _ := s.Campaign("c-1")
	assert.Equal(t, domain.CampaignActive, c.Status)
	_, err = s.Repositories().Actions.Get(ctx, "a-1")
	assert.ErrorIs(t, err, autopilot.ErrNotFound)

	// The key was never committed, so it is still free.
	err = s.InTx(ctx, func(tx autopilot.Tx) error {
		return tx.InsertAction(ctx, &domain.AutonomousAction{ID: "a-2", IdempotencyKey: "k-1"})
	})
	assert.NoError(t, err)
}

func TestInTxDuplicateKey(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.InTx(ctx, func(tx autopilot.Tx) error {
		return tx.InsertAction(ctx, &domain.AutonomousAction{ID: "a-1", IdempotencyKey: "k-1"})
	}))

	err := s.InTx(ctx, func(tx autopilot.Tx) error {
		return tx.InsertAction(ctx, &domain.AutonomousAction{ID: "a-2", IdempotencyKey: "k-1"})
	})
	assert.ErrorIs(t, err, autopilot.ErrDuplicateAction)

	// Failed actions carry no key and never collide.
	err = s.InTx(ctx, func(tx autopilot.Tx) error {
		if err := tx.InsertAction(ctx, &domain.AutonomousAction{ID: "a-3"}); err != nil {
			return err
		}
		return tx.InsertAction(ctx, &domain.AutonomousAction{ID: "a-4"})
	})
	assert.NoError(t, err)
}

func TestInTxVersionConflict(t *testing.T) {
	s := NewStore()
	seedCampaign(s)

	err := s.InTx(ctx, func(tx autopilot.Tx) error {
		return tx.UpdateCampaign(ctx, "c-1", 2, domain.CampaignState{Status: domain.CampaignPaused})
	})
	assert.ErrorIs(t, err, autopilot.ErrConflict)

	err = s.InTx(ctx, func(tx autopilot.Tx) error {
		return tx.UpdateCampaign(ctx, "missing", 1, domain.CampaignState{})
	})
	assert.ErrorIs(t, err, autopilot.ErrCampaignNotFound)
}

func TestInTxStatusTransition(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.InTx(ctx, func(tx autopilot.Tx) error {
		return tx.InsertAction(ctx, &domain.AutonomousAction{ID: "a-1", Status: domain.ActionExecuted})
	}))

	err := s.InTx(ctx, func(tx autopilot.Tx) error {
		return tx.UpdateActionStatus(ctx, "a-1", domain.ActionPending, domain.ActionExecuted)
	})
	assert.ErrorIs(t, err, autopilot.ErrInvalidTransition)

	err = s.InTx(ctx, func(tx autopilot.Tx) error {
		return tx.UpdateActionStatus(ctx, "a-1", domain.ActionExecuted, domain.ActionRolledBack)
	})
	require.NoError(t, err)

	a, err := s.Repositories().Actions.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionRolledBack, a.Status)
}

func TestInTxCanceledContext(t *testing.T) {
	s := NewStore()
	cctx, cancel := context.WithCancel(ctx)
	cancel()

	called := false
	err := s.InTx(cctx, func(autopilot.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

// =============================================================================
// OPPORTUNITIES AND RULES
// =============================================================================

func TestOpportunityDedupOnlyWhileOpen(t *testing.T) {
	s := NewStore()
	repo := s.Repositories().Opportunities
	opp := func(id string) *domain.Opportunity {
		return &domain.Opportunity{ID: id, CampaignID: "c-1", Type: domain.OpportunityUnderDelivery, Status: domain.OpportunityOpen}
	}

	ok, err := repo.InsertIfAbsent(ctx, opp("o-1"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.InsertIfAbsent(ctx, opp("o-2"))
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now()
	require.NoError(t, repo.UpdateStatus(ctx, "o-1", domain.OpportunityOpen, domain.OpportunityDismissed, &now))

	ok, err = repo.InsertIfAbsent(ctx, opp("o-3"))
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := repo.List(ctx, autopilot.OpportunityFilter{CampaignID: "c-1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "o-3", list[0].ID)
}

func TestOpportunityUpdateStatusRace(t *testing.T) {
	s := NewStore()
	repo := s.Repositories().Opportunities
	_, err := repo.InsertIfAbsent(ctx, &domain.Opportunity{ID: "o-1", Status: domain.OpportunityOpen})
	require.NoError(t, err)

	err = repo.UpdateStatus(ctx, "o-1", domain.OpportunityInProgress, domain.OpportunityResolved, nil)
	assert.ErrorIs(t, err, autopilot.ErrInvalidTransition)
}

func TestRuleSeedOnlyWhenEmpty(t *testing.T) {
	s := NewStore()
	repo := s.Repositories().Rules
	rules := []domain.AutonomousRule{
		{Name: "low", Type: domain.RuleUnderDelivery, Priority: 1, Active: true},
		{Name: "high", Type: domain.RuleAutoPause, Priority: 9, Active: true},
	}

	n, err := repo.Seed(ctx, rules)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.Seed(ctx, rules)
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "high", list[0].Name)
	assert.NotEmpty(t, list[0].ID)

	assert.ErrorIs(t, repo.SetActive(ctx, "missing", false), autopilot.ErrNotFound)
}

// =============================================================================
// HISTORY AND COUNTERS
// =============================================================================

func TestSnapshotsOldestFirst(t *testing.T) {
	s := NewStore()
	repo := s.Repositories().Snapshots
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Save(ctx, domain.PerformanceSnapshot{CampaignID: "c-1", CapturedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	got, err := repo.Recent(ctx, "c-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base.Add(2*time.Hour), got[0].CapturedAt)
	assert.Equal(t, base.Add(3*time.Hour), got[1].CapturedAt)
}

func TestRunsNewestFirst(t *testing.T) {
	s := NewStore()
	repo := s.Repositories().Runs
	require.NoError(t, repo.Save(ctx, domain.RunSummary{RunID: "r-1"}))
	require.NoError(t, repo.Save(ctx, domain.RunSummary{RunID: "r-2"}))

	got, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r-2", got[0].RunID)
}

func TestCountersWithoutData(t *testing.T) {
	s := NewStore()

	_, _, err := s.Counters(ctx, "c-1")
	assert.ErrorIs(t, err, metrics.ErrNoData)

	s.SetCounters("c-1", domain.Counters{Impressions: 10})
	c, _, err := s.Counters(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), c.Impressions)
}
