package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/eventnexus/autopilot/internal/domain"
)

// Detector flags soft signals for human review. It never recommends a
// state change and performs no I/O.
type Detector struct {
	rules *RuleSet
}

// NewDetector creates a detector for the given rules.
func NewDetector(rules *RuleSet) *Detector {
	return &Detector{rules: rules}
}

// Detect scans the current snapshot and its history for opportunities.
// history must be in chronological order and must not include snap.
// Returned opportunities carry no ID or status; the caller persists them.
func (d *Detector) Detect(snap domain.PerformanceSnapshot, history []domain.PerformanceSnapshot, c domain.Campaign, now time.Time) []domain.Opportunity {
	var out []domain.Opportunity
	if o, ok := d.creativeFatigue(snap, history); ok {
		out = append(out, o)
	}
	if o, ok := d.audienceMismatch(snap); ok {
		out = append(out, o)
	}
	if o, ok := d.underDelivery(snap, c, now); ok {
		out = append(out, o)
	}
	for i := range out {
		out[i].CampaignID = c.ID
	}
	return out
}

func (d *Detector) creativeFatigue(snap domain.PerformanceSnapshot, history []domain.PerformanceSnapshot) (domain.Opportunity, bool) {
	if !d.rules.Active(domain.RuleCreativeFatigue) || !snap.Complete() {
		return domain.Opportunity{}, false
	}
	p := d.rules.Params(domain.RuleCreativeFatigue)

	var series []float64
	for _, h := range history {
		if h.Complete() {
			series = append(series, h.CTR)
		}
	}
	series = append(series, snap.CTR)
	if len(series) < minFatigueSnapshots || int64(len(series)) < p.MinSnapshots {
		return domain.Opportunity{}, false
	}

	current := series[len(series)-1]
	previous := series[len(series)-2]
	peak := 0.0
	for _, v := range series[:len(series)-1] {
		peak = math.Max(peak, v)
	}
	if peak <= 0 || current > previous {
		return domain.Opportunity{}, false
	}
	drop := (peak - current) / peak
	if drop < p.DropRatio {
		return domain.Opportunity{}, false
	}

	intensity := drop / p.DropRatio
	return domain.Opportunity{
		Type:     domain.OpportunityCreativeFatigue,
		Severity: severityFor(intensity),
		Description: fmt.Sprintf("CTR fell %.0f%% from a peak of %.2f%% to %.2f%% over the last %d snapshots",
			drop*100, peak*100, current*100, len(series)),
		SuggestedAction: "Refresh the ad creative or rotate in a new variant",
		Confidence:      Confidence(intensity-1, float64(len(series))/float64(p.MinSnapshots)),
	}, true
}

func (d *Detector) audienceMismatch(snap domain.PerformanceSnapshot) (domain.Opportunity, bool) {
	if !d.rules.Active(domain.RuleAudienceMismatch) || !snap.Complete() {
		return domain.Opportunity{}, false
	}
	p := d.rules.Params(domain.RuleAudienceMismatch)

	if snap.CTR > 0 {
		var worst *domain.SegmentSnapshot
		for i := range snap.Segments {
			seg := &snap.Segments[i]
			if seg.Counters.Impressions < p.MinImpressions {
				continue
			}
			if seg.CTR >= p.SegmentRatio*snap.CTR {
				continue
			}
			if worst == nil || seg.CTR < worst.CTR {
				worst = seg
			}
		}
		if worst != nil {
			ratio := worst.CTR / snap.CTR
			intensity := p.SegmentRatio / math.Max(ratio, 0.05)
			return domain.Opportunity{
				Type:     domain.OpportunityAudienceMismatch,
				Severity: severityFor(intensity),
				Description: fmt.Sprintf("Segment %q has a %.2f%% CTR, %.0f%% of the campaign average %.2f%%",
					worst.Segment, worst.CTR*100, ratio*100, snap.CTR*100),
				SuggestedAction: fmt.Sprintf("Narrow targeting to exclude or re-message the %q segment", worst.Segment),
				Confidence:      Confidence(intensity-1, sampleRatio(float64(worst.Counters.Impressions), float64(p.MinImpressions))),
			}, true
		}
	}

	clicks := snap.Counters.Clicks
	if clicks < p.MinClicks || snap.ConversionRate >= p.ConvRateBelow {
		return domain.Opportunity{}, false
	}
	intensity := p.ConvRateBelow / math.Max(snap.ConversionRate, p.ConvRateBelow/4)
	return domain.Opportunity{
		Type:     domain.OpportunityAudienceMismatch,
		Severity: severityFor(intensity),
		Description: fmt.Sprintf("%d clicks produced a %.2f%% conversion rate; the audience engages but does not buy",
			clicks, snap.ConversionRate*100),
		SuggestedAction: "Review the landing page and offer against the targeted audience",
		Confidence:      Confidence(intensity-1, sampleRatio(float64(clicks), float64(p.MinClicks))),
	}, true
}

func (d *Detector) underDelivery(snap domain.PerformanceSnapshot, c domain.Campaign, now time.Time) (domain.Opportunity, bool) {
	if !d.rules.Active(domain.RuleUnderDelivery) || c.Status != domain.CampaignActive {
		return domain.Opportunity{}, false
	}
	p := d.rules.Params(domain.RuleUnderDelivery)
	hours := c.HoursRunning(now)
	impressions := snap.Counters.Impressions
	if impressions < 0 {
		impressions = 0
	}
	if hours < p.MinHoursRunning || impressions >= p.MinImpressions {
		return domain.Opportunity{}, false
	}

	timeFactor := hours / p.MinHoursRunning
	fill := float64(impressions) / float64(p.MinImpressions)
	intensity := timeFactor * (2 - fill)
	return domain.Opportunity{
		Type:     domain.OpportunityUnderDelivery,
		Severity: severityFor(intensity),
		Description: fmt.Sprintf("Only %d impressions after %.0f hours live",
			impressions, hours),
		SuggestedAction: "Check bids, budget pacing and targeting breadth",
		Confidence:      Confidence(intensity-1, timeFactor),
	}, true
}

// severityFor bands an intensity (1 = just past the threshold) into a
// severity.
func severityFor(intensity float64) domain.Severity {
	switch {
	case intensity >= 3:
		return domain.SeverityCritical
	case intensity >= 2:
		return domain.SeverityHigh
	case intensity >= 1.5:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
