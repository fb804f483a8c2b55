package domain

import "time"

// RunTrigger records what started an autopilot cycle.
type RunTrigger string

const (
	TriggerManual    RunTrigger = "manual"
	TriggerScheduled RunTrigger = "scheduled"
)

// CampaignFailure describes one campaign that errored during a cycle.
type CampaignFailure struct {
	CampaignID string `json:"campaign_id"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

// RunSummary aggregates the outcome of one autopilot cycle. Failed and
// Failures separate "nothing qualified" from "campaigns errored".
type RunSummary struct {
	RunID      string     `json:"run_id" db:"id"`
	Trigger    RunTrigger `json:"trigger" db:"trigger"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt time.Time  `json:"finished_at" db:"finished_at"`

	CampaignsEvaluated    int `json:"campaigns_evaluated" db:"campaigns_evaluated"`
	CampaignsPaused       int `json:"campaigns_paused" db:"campaigns_paused"`
	CampaignsScaled       int `json:"campaigns_scaled" db:"campaigns_scaled"`
	CampaignsPosted       int `json:"campaigns_posted" db:"campaigns_posted"`
	OpportunitiesDetected int `json:"opportunities_detected" db:"opportunities_detected"`

	NoData   int `json:"no_data" db:"no_data"`
	NoAction int `json:"no_action" db:"no_action"`
	Skipped  int `json:"skipped" db:"skipped"`
	Failed   int `json:"failed" db:"failed"`

	Failures []CampaignFailure `json:"failures,omitempty" db:"failures"`
	TimedOut bool              `json:"timed_out" db:"timed_out"`
}

// Actions returns the number of actions the cycle executed.
func (s RunSummary) Actions() int {
	return s.CampaignsPaused + s.CampaignsScaled + s.CampaignsPosted
}

// Duration returns the wall-clock time the cycle took.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
