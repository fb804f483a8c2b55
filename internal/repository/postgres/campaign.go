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

const campaignColumns = `id, organization_id, name, COALESCE(tracking_id,''), COALESCE(landing_url,''),
	status, daily_budget, version, started_at, last_evaluated_at, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*domain.Campaign, error) {
	var (
		c                  domain.Campaign
		started, evaluated sql.NullTime
	)
	if err := row.Scan(
		&c.ID, &c.OrganizationID, &c.Name, &c.TrackingID, &c.LandingURL,
		&c.Status, &c.DailyBudget, &c.Version, &started, &evaluated, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if started.Valid {
		c.StartedAt = &started.Time
	}
	if evaluated.Valid {
		c.LastEvaluatedAt = &evaluated.Time
	}
	return &c, nil
}

// CampaignRepo implements autopilot.CampaignRepository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE status = 'active'
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, autopilot.ErrCampaignNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) MarkEvaluated(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET last_evaluated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("mark evaluated: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return autopilot.ErrCampaignNotFound
	}
	return nil
}
