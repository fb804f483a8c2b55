// Package metrics turns raw campaign counters into performance snapshots.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventnexus/autopilot/internal/domain"
)

// ErrNoData is returned by a Source when no counters have been recorded
// for a campaign yet.
var ErrNoData = errors.New("no performance data recorded")

// Source reads the raw counters for a campaign. Segments may be empty.
type Source interface {
	Counters(ctx context.Context, campaignID string) (domain.Counters, []domain.SegmentCounters, error)
}

// Aggregator derives PerformanceSnapshots from a Source. It never writes.
type Aggregator struct {
	src Source
	now func() time.Time
}

// NewAggregator creates an aggregator reading from src.
func NewAggregator(src Source) *Aggregator {
	return &Aggregator{src: src, now: time.Now}
}

// WithClock overrides the capture timestamp source.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Aggregate returns the current snapshot for one campaign. A campaign with
// no recorded counters yields an empty snapshot rather than an error, so
// the evaluator can report it as missing data.
func (a *Aggregator) Aggregate(ctx context.Context, campaignID string) (domain.PerformanceSnapshot, error) {
	c, segs, err := a.src.Counters(ctx, campaignID)
	if errors.Is(err, ErrNoData) {
		return domain.NewSnapshot(campaignID, domain.Counters{}, nil, a.now().UTC()), nil
	}
	if err != nil {
		return domain.PerformanceSnapshot{}, fmt.Errorf("read counters for %s: %w", campaignID, err)
	}
	return domain.NewSnapshot(campaignID, c, segs, a.now().UTC()), nil
}

// AggregateAll snapshots every campaign in ids. Campaigns whose counters
// cannot be read are reported in the error map and left out of the result.
func (a *Aggregator) AggregateAll(ctx context.Context, ids []string) (map[string]domain.PerformanceSnapshot, map[string]error) {
	out := make(map[string]domain.PerformanceSnapshot, len(ids))
	var errs map[string]error
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		snap, err := a.Aggregate(ctx, id)
		if err != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[id] = err
			continue
		}
		out[id] = snap
	}
	return out, errs
}
