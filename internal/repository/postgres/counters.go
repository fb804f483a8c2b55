package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/metrics"
)

// CounterSource implements metrics.Source over the campaign_performance
// tables.
type CounterSource struct{ db *sql.DB }

// NewCounterSource creates a Postgres-backed counter source.
func NewCounterSource(db *sql.DB) *CounterSource { return &CounterSource{db: db} }

func (s *CounterSource) Counters(ctx context.Context, campaignID string) (domain.Counters, []domain.SegmentCounters, error) {
	var c domain.Counters
	err := s.db.QueryRowContext(ctx, `
		SELECT impressions, clicks, conversions, spend, revenue
		FROM campaign_performance
		WHERE campaign_id = $1
	`, campaignID).Scan(&c.Impressions, &c.Clicks, &c.Conversions, &c.Spend, &c.Revenue)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Counters{}, nil, metrics.ErrNoData
	}
	if err != nil {
		return domain.Counters{}, nil, fmt.Errorf("read counters: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT segment, impressions, clicks, conversions, spend, revenue
		FROM campaign_segment_performance
		WHERE campaign_id = $1
		ORDER BY segment
	`, campaignID)
	if err != nil {
		return domain.Counters{}, nil, fmt.Errorf("read segment counters: %w", err)
	}
	defer rows.Close()

	var segs []domain.SegmentCounters
	for rows.Next() {
		var sc domain.SegmentCounters
		if err := rows.Scan(&sc.Segment, &sc.Impressions, &sc.Clicks, &sc.Conversions, &sc.Spend, &sc.Revenue); err != nil {
			return domain.Counters{}, nil, fmt.Errorf("scan segment counters: %w", err)
		}
		segs = append(segs, sc)
	}
	return c, segs, rows.Err()
}
