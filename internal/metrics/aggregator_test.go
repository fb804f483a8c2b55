package metrics_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/metrics"
)

type stubSource map[string]domain.Counters

func (s stubSource) Counters(_ context.Context, id string) (domain.Counters, []domain.SegmentCounters, error) {
	if id == "broken" {
		return domain.Counters{}, nil, errors.New("connection reset")
	}
	c, ok := s[id]
	if !ok {
		return domain.Counters{}, nil, metrics.ErrNoData
	}
	return c, nil, nil
}

var fixed = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newAggregator(src metrics.Source) *metrics.Aggregator {
	return metrics.NewAggregator(src).WithClock(func() time.Time { return fixed })
}

func TestAggregateDerivesRatios(t *testing.T) {
	agg := newAggregator(stubSource{"c-1": {Impressions: 5000, Clicks: 150, Conversions: 12, Spend: 100, Revenue: 500}})

	snap, err := agg.Aggregate(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", snap.CampaignID)
	assert.InDelta(t, 0.03, snap.CTR, 1e-9)
	assert.InDelta(t, 0.08, snap.ConversionRate, 1e-9)
	assert.InDelta(t, 4.0, snap.ROI, 1e-9)
	assert.Equal(t, fixed, snap.CapturedAt)
	assert.True(t, snap.Complete())
}

func TestAggregateZeroDenominators(t *testing.T) {
	agg := newAggregator(stubSource{"c-1": {}})

	snap, err := agg.Aggregate(context.Background(), "c-1")
	require.NoError(t, err)
	for _, v := range []float64{snap.CTR, snap.ConversionRate, snap.ROI} {
		assert.False(t, math.IsNaN(v))
		assert.Zero(t, v)
	}
	assert.False(t, snap.Complete())
}

func TestAggregateMissingCountersIsEmptySnapshot(t *testing.T) {
	snap, err := newAggregator(stubSource{}).Aggregate(context.Background(), "c-9")
	require.NoError(t, err)
	assert.Equal(t, "c-9", snap.CampaignID)
	assert.False(t, snap.Complete())
}

func TestAggregateAllCollectsErrors(t *testing.T) {
	agg := newAggregator(stubSource{"a": {Impressions: 10}, "b": {Impressions: 20}})

	snaps, errs := agg.AggregateAll(context.Background(), []string{"a", "broken", "b"})
	assert.Len(t, snaps, 2)
	require.Contains(t, errs, "broken")
	assert.Contains(t, errs["broken"].Error(), "connection reset")
}
