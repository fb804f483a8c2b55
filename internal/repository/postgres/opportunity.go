package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

const opportunityColumns = `id, campaign_id, opportunity_type, severity, description, suggested_action,
	confidence, status, created_at, updated_at, resolved_at`

func scanOpportunity(row rowScanner) (*domain.Opportunity, error) {
	var (
		o        domain.Opportunity
		resolved sql.NullTime
	)
	if err := row.Scan(
		&o.ID, &o.CampaignID, &o.Type, &o.Severity, &o.Description, &o.SuggestedAction,
		&o.Confidence, &o.Status, &o.CreatedAt, &o.UpdatedAt, &resolved,
	); err != nil {
		return nil, err
	}
	if resolved.Valid {
		o.ResolvedAt = &resolved.Time
	}
	return &o, nil
}

// OpportunityRepo implements autopilot.OpportunityRepository against PostgreSQL.
type OpportunityRepo struct{ db *sql.DB }

// NewOpportunityRepo creates a Postgres-backed opportunity repository.
func NewOpportunityRepo(db *sql.DB) *OpportunityRepo { return &OpportunityRepo{db: db} }

// InsertIfAbsent relies on the partial unique index over open
// (campaign_id, opportunity_type) rows.
func (r *OpportunityRepo) InsertIfAbsent(ctx context.Context, o *domain.Opportunity) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO optimization_opportunities
			(id, campaign_id, opportunity_type, severity, description, suggested_action,
			 confidence, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (campaign_id, opportunity_type) WHERE status = 'open' DO NOTHING
	`, o.ID, o.CampaignID, o.Type, o.Severity, o.Description, o.SuggestedAction,
		o.Confidence, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("insert opportunity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert opportunity: %w", err)
	}
	return n > 0, nil
}

func (r *OpportunityRepo) Get(ctx context.Context, id string) (*domain.Opportunity, error) {
	o, err := scanOpportunity(r.db.QueryRowContext(ctx,
		`SELECT `+opportunityColumns+` FROM optimization_opportunities WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, autopilot.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return o, nil
}

func (r *OpportunityRepo) List(ctx context.Context, f autopilot.OpportunityFilter) ([]domain.Opportunity, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = autopilot.DefaultListLimit
	}

	q := `SELECT ` + opportunityColumns + ` FROM optimization_opportunities WHERE 1=1`
	args := []any{}
	idx := 1
	if f.CampaignID != "" {
		q += fmt.Sprintf(" AND campaign_id = $%d", idx)
		args = append(args, f.CampaignID)
		idx++
	}
	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *OpportunityRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OpportunityStatus, resolvedAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE optimization_opportunities
		SET status = $1, resolved_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, to, resolvedAt, id, from)
	if err != nil {
		return fmt.Errorf("update opportunity status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return autopilot.ErrInvalidTransition
	}
	return nil
}
