package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/eventnexus/autopilot/internal/domain"
)

// Outcome classifies what the evaluator concluded for a campaign.
type Outcome string

const (
	// OutcomeNoData means the snapshot was missing or incomplete, so no
	// decision was possible.
	OutcomeNoData Outcome = "no_data"
	// OutcomeNoAction means the campaign was evaluated and nothing qualified.
	OutcomeNoAction Outcome = "no_action"
	// OutcomeRecommend means at least one action is recommended.
	OutcomeRecommend Outcome = "recommend"
)

// Recommendation is one action the evaluator wants executed. Target is
// the campaign state after the action; for promotions it equals the
// current state.
type Recommendation struct {
	Type       domain.ActionType    `json:"action_type"`
	Rule       domain.RuleType      `json:"rule_type"`
	Reason     string               `json:"reason"`
	Confidence int                  `json:"confidence"`
	Target     domain.CampaignState `json:"target"`
	Payload    domain.ActionPayload `json:"payload"`
}

// Decision is the evaluator's verdict for one campaign.
//
// Primary holds at most one state-changing action (pause, scale up or
// scale down). Promotion holds the auto-post recommendation, which never
// accompanies a pause.
type Decision struct {
	CampaignID string          `json:"campaign_id"`
	Outcome    Outcome         `json:"outcome"`
	Reason     string          `json:"reason"`
	Primary    *Recommendation `json:"primary,omitempty"`
	Promotion  *Recommendation `json:"promotion,omitempty"`
}

// Recommendations returns the decision's actions, primary first.
func (d Decision) Recommendations() []Recommendation {
	var out []Recommendation
	if d.Primary != nil {
		out = append(out, *d.Primary)
	}
	if d.Promotion != nil {
		out = append(out, *d.Promotion)
	}
	return out
}

// Evaluator applies a RuleSet to performance snapshots. It performs no I/O.
type Evaluator struct {
	rules *RuleSet
}

// NewEvaluator creates an evaluator for the given rules.
func NewEvaluator(rules *RuleSet) *Evaluator {
	return &Evaluator{rules: rules}
}

// Rules returns the evaluator's rule set.
func (e *Evaluator) Rules() *RuleSet { return e.rules }

// Evaluate decides what to do with campaign c given its snapshot.
//
// Pause wins over every other action, including auto-post. Scale-up wins
// over scale-down. An incomplete snapshot yields OutcomeNoData.
func (e *Evaluator) Evaluate(snap domain.PerformanceSnapshot, c domain.Campaign, now time.Time) Decision {
	d := Decision{CampaignID: c.ID}

	if !snap.Complete() {
		d.Outcome = OutcomeNoData
		if snap.Counters.Impressions <= 0 {
			d.Reason = "no impressions recorded yet"
		} else {
			d.Reason = "snapshot has negative counters"
		}
		return d
	}
	if c.Status != domain.CampaignActive {
		d.Outcome = OutcomeNoAction
		d.Reason = fmt.Sprintf("campaign is %s", c.Status)
		return d
	}

	hours := c.HoursRunning(now)
	state := c.State()

	if rec, ok := e.pause(snap, state, hours); ok {
		d.Outcome = OutcomeRecommend
		d.Reason = rec.Reason
		d.Primary = rec
		return d
	}

	if rec, ok := e.scaleUp(snap, state, hours); ok {
		d.Primary = rec
	} else if rec, ok := e.scaleDown(snap, state, hours); ok {
		d.Primary = rec
	}
	if rec, ok := e.promote(snap, state); ok {
		d.Promotion = rec
	}

	if d.Primary == nil && d.Promotion == nil {
		d.Outcome = OutcomeNoAction
		d.Reason = fmt.Sprintf("no rule qualified (roi=%.2f spend=%.2f conversions=%d ctr=%.4f)",
			snap.ROI, snap.Counters.Spend, snap.Counters.Conversions, snap.CTR)
		return d
	}

	d.Outcome = OutcomeRecommend
	var reasons []string
	for _, r := range d.Recommendations() {
		reasons = append(reasons, r.Reason)
	}
	d.Reason = strings.Join(reasons, "; ")
	return d
}

func (e *Evaluator) pause(snap domain.PerformanceSnapshot, state domain.CampaignState, hours float64) (*Recommendation, bool) {
	if !e.rules.Active(domain.RuleAutoPause) {
		return nil, false
	}
	p := e.rules.Params(domain.RuleAutoPause)
	spend := snap.Counters.Spend
	if snap.ROI >= p.ROIBelow || spend < p.MinSpend || hours < p.MinHoursRunning {
		return nil, false
	}

	conf := Confidence(-relativeMargin(snap.ROI, p.ROIBelow), sampleRatio(spend, p.MinSpend))
	target := state
	target.Status = domain.CampaignPaused
	return &Recommendation{
		Type:       domain.ActionAutoPause,
		Rule:       domain.RuleAutoPause,
		Reason:     fmt.Sprintf("ROI %.2f below %.2f after $%.2f spend", snap.ROI, p.ROIBelow, spend),
		Confidence: conf,
		Target:     target,
		Payload: domain.ActionPayload{Kind: domain.PayloadPause, Pause: &domain.PausePayload{
			PreviousStatus: state.Status,
			ROI:            snap.ROI,
			Spend:          spend,
		}},
	}, true
}

func (e *Evaluator) scaleUp(snap domain.PerformanceSnapshot, state domain.CampaignState, hours float64) (*Recommendation, bool) {
	if !e.rules.Active(domain.RuleAutoScaleUp) {
		return nil, false
	}
	p := e.rules.Params(domain.RuleAutoScaleUp)
	conv := snap.Counters.Conversions
	if snap.ROI < p.ROIAtLeast || conv < p.MinConversions || hours < p.MinHoursRunning {
		return nil, false
	}

	newBudget := roundCents(state.DailyBudget * (1 + p.BudgetPercent/100))
	if ceiling := e.rules.MaxDailyBudget(); ceiling > 0 && newBudget > ceiling {
		newBudget = ceiling
	}
	if newBudget <= state.DailyBudget {
		return nil, false
	}

	conf := Confidence(relativeMargin(snap.ROI, p.ROIAtLeast), sampleRatio(float64(conv), float64(p.MinConversions)))
	target := state
	target.DailyBudget = newBudget
	return &Recommendation{
		Type:       domain.ActionAutoScaleUp,
		Rule:       domain.RuleAutoScaleUp,
		Reason:     fmt.Sprintf("ROI %.2f at or above %.2f with %d conversions", snap.ROI, p.ROIAtLeast, conv),
		Confidence: conf,
		Target:     target,
		Payload: domain.ActionPayload{Kind: domain.PayloadBudgetChange, Budget: &domain.BudgetChangePayload{
			OldBudget: state.DailyBudget,
			NewBudget: newBudget,
			Percent:   p.BudgetPercent,
			ROI:       snap.ROI,
		}},
	}, true
}

func (e *Evaluator) scaleDown(snap domain.PerformanceSnapshot, state domain.CampaignState, hours float64) (*Recommendation, bool) {
	if !e.rules.Active(domain.RuleAutoScaleDown) {
		return nil, false
	}
	p := e.rules.Params(domain.RuleAutoScaleDown)
	spend := snap.Counters.Spend
	if snap.ROI >= p.ROIBelow || spend < p.MinSpend || hours < p.MinHoursRunning {
		return nil, false
	}

	newBudget := roundCents(state.DailyBudget * (1 - p.BudgetPercent/100))
	if newBudget < 0 {
		newBudget = 0
	}
	if newBudget >= state.DailyBudget {
		return nil, false
	}

	conf := Confidence(-relativeMargin(snap.ROI, p.ROIBelow), sampleRatio(spend, p.MinSpend))
	target := state
	target.DailyBudget = newBudget
	return &Recommendation{
		Type:       domain.ActionAutoScaleDown,
		Rule:       domain.RuleAutoScaleDown,
		Reason:     fmt.Sprintf("ROI %.2f below %.2f after $%.2f spend", snap.ROI, p.ROIBelow, spend),
		Confidence: conf,
		Target:     target,
		Payload: domain.ActionPayload{Kind: domain.PayloadBudgetChange, Budget: &domain.BudgetChangePayload{
			OldBudget: state.DailyBudget,
			NewBudget: newBudget,
			Percent:   -p.BudgetPercent,
			ROI:       snap.ROI,
		}},
	}, true
}

func (e *Evaluator) promote(snap domain.PerformanceSnapshot, state domain.CampaignState) (*Recommendation, bool) {
	if !e.rules.Active(domain.RuleAutoPost) {
		return nil, false
	}
	// With no platforms configured the promotion is still recorded; it
	// just has nowhere to be published.
	platforms := e.rules.Platforms()
	p := e.rules.Params(domain.RuleAutoPost)
	if snap.CTR <= p.CTRAbove {
		return nil, false
	}

	conf := Confidence(relativeMargin(snap.CTR, p.CTRAbove), sampleRatio(float64(snap.Counters.Impressions), float64(p.MinImpressions)))
	return &Recommendation{
		Type:       domain.ActionOptimizationApplied,
		Rule:       domain.RuleAutoPost,
		Reason:     fmt.Sprintf("CTR %.2f%% above %.2f%%, cross-posting", snap.CTR*100, p.CTRAbove*100),
		Confidence: conf,
		Target:     state,
		Payload: domain.ActionPayload{Kind: domain.PayloadCrossPost, CrossPost: &domain.CrossPostPayload{
			Platforms: platforms,
			CTR:       snap.CTR,
		}},
	}, true
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
