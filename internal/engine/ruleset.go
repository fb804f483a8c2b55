package engine

import (
	"sort"

	"github.com/eventnexus/autopilot/internal/domain"
)

// Thresholds is the reference policy. A RuleSet fills any rule parameter
// left at zero from these values.
type Thresholds struct {
	PauseROIBelow         float64
	PauseMinSpend         float64
	ScaleUpROIAtLeast     float64
	ScaleUpMinConversions int64
	ScaleUpPercent        float64
	ScaleDownROIBelow     float64
	ScaleDownMinSpend     float64
	ScaleDownPercent      float64
	PostCTRAbove          float64
	PostMinImpressions    int64

	FatigueDropRatio      float64
	FatigueMinSnapshots   int64
	MismatchRatio         float64
	MismatchMinImpression int64
	MismatchMinClicks     int64
	MismatchConvRateBelow float64
	UnderDeliveryHours    float64
	UnderDeliveryMinImpr  int64

	// MaxDailyBudget caps scale-ups. Zero means no cap.
	MaxDailyBudget float64
}

// minFatigueSnapshots is the shortest CTR series a fatigue check can
// compare: the current value and the one before it.
const minFatigueSnapshots = 2

// DefaultThresholds returns the reference policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PauseROIBelow:         1.0,
		PauseMinSpend:         50,
		ScaleUpROIAtLeast:     3.0,
		ScaleUpMinConversions: 10,
		ScaleUpPercent:        20,
		ScaleDownROIBelow:     1.5,
		ScaleDownMinSpend:     100,
		ScaleDownPercent:      20,
		PostCTRAbove:          0.02,
		PostMinImpressions:    1000,

		FatigueDropRatio:      0.20,
		FatigueMinSnapshots:   3,
		MismatchRatio:         0.5,
		MismatchMinImpression: 1000,
		MismatchMinClicks:     100,
		MismatchConvRateBelow: 0.01,
		UnderDeliveryHours:    24,
		UnderDeliveryMinImpr:  100,
	}
}

// DefaultRules returns the rule rows that reproduce the reference policy.
// Scale-down ships inactive; operators opt in.
func DefaultRules(th Thresholds) []domain.AutonomousRule {
	return []domain.AutonomousRule{
		{Name: "Pause unprofitable campaigns", Type: domain.RuleAutoPause, Priority: 100, Active: true,
			Params: domain.RuleParams{ROIBelow: th.PauseROIBelow, MinSpend: th.PauseMinSpend}},
		{Name: "Scale up proven winners", Type: domain.RuleAutoScaleUp, Priority: 90, Active: true,
			Params: domain.RuleParams{ROIAtLeast: th.ScaleUpROIAtLeast, MinConversions: th.ScaleUpMinConversions, BudgetPercent: th.ScaleUpPercent}},
		{Name: "Scale down marginal campaigns", Type: domain.RuleAutoScaleDown, Priority: 80, Active: false,
			Params: domain.RuleParams{ROIBelow: th.ScaleDownROIBelow, MinSpend: th.ScaleDownMinSpend, BudgetPercent: th.ScaleDownPercent}},
		{Name: "Cross-post high CTR creative", Type: domain.RuleAutoPost, Priority: 50, Active: true,
			Params: domain.RuleParams{CTRAbove: th.PostCTRAbove, MinImpressions: th.PostMinImpressions}},
		{Name: "Flag creative fatigue", Type: domain.RuleCreativeFatigue, Priority: 40, Active: true,
			Params: domain.RuleParams{DropRatio: th.FatigueDropRatio, MinSnapshots: th.FatigueMinSnapshots}},
		{Name: "Flag audience mismatch", Type: domain.RuleAudienceMismatch, Priority: 30, Active: true,
			Params: domain.RuleParams{SegmentRatio: th.MismatchRatio, MinImpressions: th.MismatchMinImpression,
				MinClicks: th.MismatchMinClicks, ConvRateBelow: th.MismatchConvRateBelow}},
		{Name: "Flag under-delivery", Type: domain.RuleUnderDelivery, Priority: 20, Active: true,
			Params: domain.RuleParams{MinHoursRunning: th.UnderDeliveryHours, MinImpressions: th.UnderDeliveryMinImpr}},
	}
}

// RuleSet is the resolved, immutable policy for one cycle. It is built
// from the stored rules so toggling a rule changes evaluation.
type RuleSet struct {
	th        Thresholds
	active    map[domain.RuleType]domain.RuleParams
	platforms []string
}

// NewRuleSet resolves rules against th. When rules is empty the reference
// defaults apply. Otherwise only active rules take part; if a type appears
// more than once the highest priority row wins.
func NewRuleSet(rules []domain.AutonomousRule, th Thresholds, platforms []string) *RuleSet {
	if len(rules) == 0 {
		rules = DefaultRules(th)
	}
	sorted := append([]domain.AutonomousRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	rs := &RuleSet{
		th:        th,
		active:    make(map[domain.RuleType]domain.RuleParams),
		platforms: append([]string(nil), platforms...),
	}
	seen := make(map[domain.RuleType]bool)
	for _, r := range sorted {
		if seen[r.Type] {
			continue
		}
		seen[r.Type] = true
		if r.Active {
			rs.active[r.Type] = r.Params
		}
	}
	return rs
}

// Active reports whether the rule of type t takes part in evaluation.
func (rs *RuleSet) Active(t domain.RuleType) bool {
	_, ok := rs.active[t]
	return ok
}

// Platforms returns the social platforms auto-post targets.
func (rs *RuleSet) Platforms() []string {
	return append([]string(nil), rs.platforms...)
}

// Params returns the effective parameters of rule t with zero fields
// filled from the reference policy.
func (rs *RuleSet) Params(t domain.RuleType) domain.RuleParams {
	p := rs.active[t]
	th := rs.th
	switch t {
	case domain.RuleAutoPause:
		p.ROIBelow = or(p.ROIBelow, th.PauseROIBelow)
		p.MinSpend = or(p.MinSpend, th.PauseMinSpend)
	case domain.RuleAutoScaleUp:
		p.ROIAtLeast = or(p.ROIAtLeast, th.ScaleUpROIAtLeast)
		p.MinConversions = orInt(p.MinConversions, th.ScaleUpMinConversions)
		p.BudgetPercent = or(p.BudgetPercent, th.ScaleUpPercent)
	case domain.RuleAutoScaleDown:
		p.ROIBelow = or(p.ROIBelow, th.ScaleDownROIBelow)
		p.MinSpend = or(p.MinSpend, th.ScaleDownMinSpend)
		p.BudgetPercent = or(p.BudgetPercent, th.ScaleDownPercent)
	case domain.RuleAutoPost:
		p.CTRAbove = or(p.CTRAbove, th.PostCTRAbove)
		p.MinImpressions = orInt(p.MinImpressions, th.PostMinImpressions)
	case domain.RuleCreativeFatigue:
		p.DropRatio = or(p.DropRatio, th.FatigueDropRatio)
		p.MinSnapshots = max(orInt(p.MinSnapshots, th.FatigueMinSnapshots), minFatigueSnapshots)
	case domain.RuleAudienceMismatch:
		p.SegmentRatio = or(p.SegmentRatio, th.MismatchRatio)
		p.MinImpressions = orInt(p.MinImpressions, th.MismatchMinImpression)
		p.MinClicks = orInt(p.MinClicks, th.MismatchMinClicks)
		p.ConvRateBelow = or(p.ConvRateBelow, th.MismatchConvRateBelow)
	case domain.RuleUnderDelivery:
		p.MinHoursRunning = or(p.MinHoursRunning, th.UnderDeliveryHours)
		p.MinImpressions = orInt(p.MinImpressions, th.UnderDeliveryMinImpr)
	}
	return p
}

// MaxDailyBudget returns the scale-up ceiling, zero for none.
func (rs *RuleSet) MaxDailyBudget() float64 { return rs.th.MaxDailyBudget }

func or(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orInt(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}
