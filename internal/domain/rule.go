package domain

import "time"

// RuleType identifies which evaluator or detector check a rule controls.
type RuleType string

const (
	RuleAutoPause        RuleType = "auto_pause"
	RuleAutoScaleUp      RuleType = "auto_scale_up"
	RuleAutoScaleDown    RuleType = "auto_scale_down"
	RuleAutoPost         RuleType = "auto_post"
	RuleCreativeFatigue  RuleType = "creative_fatigue"
	RuleAudienceMismatch RuleType = "audience_mismatch"
	RuleUnderDelivery    RuleType = "under_delivery"
)

// RuleParams holds the thresholds of a rule. A zero field means the
// reference default for that rule applies.
type RuleParams struct {
	ROIBelow        float64 `json:"roi_below,omitempty"`
	ROIAtLeast      float64 `json:"roi_at_least,omitempty"`
	MinSpend        float64 `json:"min_spend,omitempty"`
	MinConversions  int64   `json:"min_conversions,omitempty"`
	MinImpressions  int64   `json:"min_impressions,omitempty"`
	MinClicks       int64   `json:"min_clicks,omitempty"`
	CTRAbove        float64 `json:"ctr_above,omitempty"`
	BudgetPercent   float64 `json:"budget_percent,omitempty"`
	DropRatio       float64 `json:"drop_ratio,omitempty"`
	MinSnapshots    int64   `json:"min_snapshots,omitempty"`
	SegmentRatio    float64 `json:"segment_ratio,omitempty"`
	ConvRateBelow   float64 `json:"conversion_rate_below,omitempty"`
	MinHoursRunning float64 `json:"min_hours_running,omitempty"`
}

// AutonomousRule is an operator-toggleable unit of autopilot policy.
// Only active rules take part in evaluation.
type AutonomousRule struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Type      RuleType   `json:"rule_type" db:"rule_type"`
	Priority  int        `json:"priority" db:"priority"`
	Active    bool       `json:"is_active" db:"is_active"`
	Params    RuleParams `json:"params" db:"params"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}
