package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventnexus/autopilot/internal/domain"
)

func TestRuleSetEmptyUsesDefaults(t *testing.T) {
	rs := NewRuleSet(nil, DefaultThresholds(), nil)

	assert.True(t, rs.Active(domain.RuleAutoPause))
	assert.True(t, rs.Active(domain.RuleAutoScaleUp))
	assert.False(t, rs.Active(domain.RuleAutoScaleDown))
	assert.Equal(t, 1.0, rs.Params(domain.RuleAutoPause).ROIBelow)
}

func TestRuleSetOnlyActiveRules(t *testing.T) {
	rules := DefaultRules(DefaultThresholds())
	for i := range rules {
		if rules[i].Type == domain.RuleAutoPost {
			rules[i].Active = false
		}
	}

	rs := NewRuleSet(rules, DefaultThresholds(), []string{"twitter"})

	assert.False(t, rs.Active(domain.RuleAutoPost))
	assert.True(t, rs.Active(domain.RuleAutoPause))
	assert.Equal(t, []string{"twitter"}, rs.Platforms())
}

func TestRuleSetHighestPriorityWins(t *testing.T) {
	rules := []domain.AutonomousRule{
		{Type: domain.RuleAutoPause, Priority: 10, Active: true, Params: domain.RuleParams{ROIBelow: 0.5}},
		{Type: domain.RuleAutoPause, Priority: 20, Active: false, Params: domain.RuleParams{ROIBelow: 0.9}},
	}

	rs := NewRuleSet(rules, DefaultThresholds(), nil)

	assert.False(t, rs.Active(domain.RuleAutoPause))
}

func TestRuleSetParamsFillZeroFields(t *testing.T) {
	rules := []domain.AutonomousRule{
		{Type: domain.RuleAutoScaleUp, Priority: 1, Active: true, Params: domain.RuleParams{BudgetPercent: 50}},
	}
	th := DefaultThresholds()
	th.MaxDailyBudget = 400

	rs := NewRuleSet(rules, th, nil)
	p := rs.Params(domain.RuleAutoScaleUp)

	assert.Equal(t, 50.0, p.BudgetPercent)
	assert.Equal(t, th.ScaleUpROIAtLeast, p.ROIAtLeast)
	assert.Equal(t, th.ScaleUpMinConversions, p.MinConversions)
	assert.Equal(t, 400.0, rs.MaxDailyBudget())
}

func TestRuleSetPlatformsAreCopied(t *testing.T) {
	platforms := []string{"facebook"}
	rs := NewRuleSet(nil, DefaultThresholds(), platforms)

	platforms[0] = "changed"
	got := rs.Platforms()
	got[0] = "also changed"

	assert.Equal(t, []string{"facebook"}, rs.Platforms())
}

// =============================================================================
// CONFIDENCE
// =============================================================================

func TestConfidenceThinSampleCap(t *testing.T) {
	assert.Equal(t, thinSampleCap, Confidence(10, 1.5))
	assert.Greater(t, Confidence(10, 2), thinSampleCap)
}
