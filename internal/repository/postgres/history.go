package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/eventnexus/autopilot/internal/domain"
)

// SnapshotRepo implements autopilot.SnapshotRepository against PostgreSQL.
type SnapshotRepo struct{ db *sql.DB }

// NewSnapshotRepo creates a Postgres-backed snapshot repository.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

func (r *SnapshotRepo) Save(ctx context.Context, s domain.PerformanceSnapshot) error {
	segments, err := json.Marshal(s.Segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	c := s.Counters
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO campaign_performance_snapshots
			(campaign_id, impressions, clicks, conversions, spend, revenue,
			 ctr, conversion_rate, roi, segments, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, s.CampaignID, c.Impressions, c.Clicks, c.Conversions, c.Spend, c.Revenue,
		s.CTR, s.ConversionRate, s.ROI, segments, s.CapturedAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Recent reads newest first and reverses so callers get oldest first.
func (r *SnapshotRepo) Recent(ctx context.Context, campaignID string, n int) ([]domain.PerformanceSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT campaign_id, impressions, clicks, conversions, spend, revenue,
		       ctr, conversion_rate, roi, segments, captured_at
		FROM campaign_performance_snapshots
		WHERE campaign_id = $1
		ORDER BY captured_at DESC
		LIMIT $2
	`, campaignID, n)
	if err != nil {
		return nil, fmt.Errorf("recent snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.PerformanceSnapshot
	for rows.Next() {
		var (
			s        domain.PerformanceSnapshot
			segments []byte
		)
		c := &s.Counters
		if err := rows.Scan(&s.CampaignID, &c.Impressions, &c.Clicks, &c.Conversions, &c.Spend, &c.Revenue,
			&s.CTR, &s.ConversionRate, &s.ROI, &segments, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if len(segments) > 0 {
			if err := json.Unmarshal(segments, &s.Segments); err != nil {
				return nil, fmt.Errorf("decode segments: %w", err)
			}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// RunRepo implements autopilot.RunRepository against PostgreSQL.
type RunRepo struct{ db *sql.DB }

// NewRunRepo creates a Postgres-backed run history repository.
func NewRunRepo(db *sql.DB) *RunRepo { return &RunRepo{db: db} }

func (r *RunRepo) Save(ctx context.Context, s domain.RunSummary) error {
	failures, err := json.Marshal(s.Failures)
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO autopilot_runs
			(id, trigger, started_at, finished_at, campaigns_evaluated, campaigns_paused,
			 campaigns_scaled, campaigns_posted, opportunities_detected, no_data, no_action,
			 skipped, failed, failures, timed_out)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			campaigns_evaluated = EXCLUDED.campaigns_evaluated,
			campaigns_paused = EXCLUDED.campaigns_paused,
			campaigns_scaled = EXCLUDED.campaigns_scaled,
			campaigns_posted = EXCLUDED.campaigns_posted,
			opportunities_detected = EXCLUDED.opportunities_detected,
			no_data = EXCLUDED.no_data,
			no_action = EXCLUDED.no_action,
			skipped = EXCLUDED.skipped,
			failed = EXCLUDED.failed,
			failures = EXCLUDED.failures,
			timed_out = EXCLUDED.timed_out
	`, s.RunID, s.Trigger, s.StartedAt, s.FinishedAt, s.CampaignsEvaluated, s.CampaignsPaused,
		s.CampaignsScaled, s.CampaignsPosted, s.OpportunitiesDetected, s.NoData, s.NoAction,
		s.Skipped, s.Failed, failures, s.TimedOut)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (r *RunRepo) Recent(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trigger, started_at, finished_at, campaigns_evaluated, campaigns_paused,
		       campaigns_scaled, campaigns_posted, opportunities_detected, no_data, no_action,
		       skipped, failed, failures, timed_out
		FROM autopilot_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var out []domain.RunSummary
	for rows.Next() {
		var (
			s        domain.RunSummary
			finished sql.NullTime
			failures []byte
		)
		if err := rows.Scan(&s.RunID, &s.Trigger, &s.StartedAt, &finished, &s.CampaignsEvaluated, &s.CampaignsPaused,
			&s.CampaignsScaled, &s.CampaignsPosted, &s.OpportunitiesDetected, &s.NoData, &s.NoAction,
			&s.Skipped, &s.Failed, &failures, &s.TimedOut); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			s.FinishedAt = finished.Time
		}
		if len(failures) > 0 {
			if err := json.Unmarshal(failures, &s.Failures); err != nil {
				return nil, fmt.Errorf("decode failures: %w", err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
