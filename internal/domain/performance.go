package domain

import "time"

// Counters are the raw performance totals recorded for a campaign.
type Counters struct {
	Impressions int64   `json:"impressions" db:"impressions"`
	Clicks      int64   `json:"clicks" db:"clicks"`
	Conversions int64   `json:"conversions" db:"conversions"`
	Spend       float64 `json:"spend" db:"spend"`
	Revenue     float64 `json:"revenue" db:"revenue"`
}

// SegmentCounters are counters broken down by audience segment.
type SegmentCounters struct {
	Segment string `json:"segment" db:"segment"`
	Counters
}

// SegmentSnapshot is a segment's counters plus its derived ratios.
type SegmentSnapshot struct {
	Segment        string   `json:"segment"`
	Counters       Counters `json:"counters"`
	CTR            float64  `json:"ctr"`
	ConversionRate float64  `json:"conversion_rate"`
}

// PerformanceSnapshot is the point-in-time aggregate of a campaign's
// counters with CTR, conversion rate and ROI derived from them.
type PerformanceSnapshot struct {
	CampaignID     string            `json:"campaign_id" db:"campaign_id"`
	Counters       Counters          `json:"counters"`
	CTR            float64           `json:"ctr" db:"ctr"`
	ConversionRate float64           `json:"conversion_rate" db:"conversion_rate"`
	ROI            float64           `json:"roi" db:"roi"`
	Segments       []SegmentSnapshot `json:"segments,omitempty"`
	CapturedAt     time.Time         `json:"captured_at" db:"captured_at"`
}

// NewSnapshot derives a snapshot from raw counters. Every ratio is zero
// when its denominator is zero.
func NewSnapshot(campaignID string, c Counters, segments []SegmentCounters, at time.Time) PerformanceSnapshot {
	s := PerformanceSnapshot{
		CampaignID:     campaignID,
		Counters:       c,
		CTR:            ratio(float64(c.Clicks), float64(c.Impressions)),
		ConversionRate: ratio(float64(c.Conversions), float64(c.Clicks)),
		ROI:            ratio(c.Revenue-c.Spend, c.Spend),
		CapturedAt:     at,
	}
	for _, seg := range segments {
		s.Segments = append(s.Segments, SegmentSnapshot{
			Segment:        seg.Segment,
			Counters:       seg.Counters,
			CTR:            ratio(float64(seg.Clicks), float64(seg.Impressions)),
			ConversionRate: ratio(float64(seg.Conversions), float64(seg.Clicks)),
		})
	}
	return s
}

// Complete reports whether the snapshot carries enough data to act on.
// A campaign with no impressions yet, or with corrupt negative counters,
// is incomplete.
func (s PerformanceSnapshot) Complete() bool {
	c := s.Counters
	if c.Impressions <= 0 {
		return false
	}
	return c.Clicks >= 0 && c.Conversions >= 0 && c.Spend >= 0 && c.Revenue >= 0
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
