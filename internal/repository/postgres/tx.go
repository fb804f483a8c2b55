package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

// Transactor implements autopilot.Transactor with a database transaction.
type Transactor struct{ db *sql.DB }

// NewTransactor creates a Postgres transactor.
func NewTransactor(db *sql.DB) *Transactor { return &Transactor{db: db} }

// InTx runs fn in a transaction, committing only if fn returns nil.
func (t *Transactor) InTx(ctx context.Context, fn func(tx autopilot.Tx) error) error {
	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct{ tx *sql.Tx }

func (t *pgTx) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(t.tx.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, autopilot.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (t *pgTx) UpdateCampaign(ctx context.Context, id string, expectedVersion int64, state domain.CampaignState) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $1, daily_budget = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`, state.Status, state.DailyBudget, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists bool
	if err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check campaign: %w", err)
	}
	if !exists {
		return autopilot.ErrCampaignNotFound
	}
	return autopilot.ErrConflict
}

func (t *pgTx) InsertAction(ctx context.Context, a *domain.AutonomousAction) error {
	return insertAction(ctx, t.tx, a)
}

func (t *pgTx) GetAction(ctx context.Context, id string) (*domain.AutonomousAction, error) {
	return getAction(ctx, t.tx, id, true)
}

func (t *pgTx) UpdateActionStatus(ctx context.Context, id string, from, to domain.ActionStatus) error {
	if !from.CanTransitionTo(to) {
		return autopilot.ErrInvalidTransition
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE autonomous_actions SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("update action status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return autopilot.ErrInvalidTransition
	}
	return nil
}
