package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// Valid reports whether s is a known campaign status.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignActive, CampaignPaused, CampaignCompleted:
		return true
	}
	return false
}

// Campaign represents a marketing campaign evaluated by the autopilot.
type Campaign struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organization_id" db:"organization_id"`
	Name           string         `json:"name" db:"name"`
	TrackingID     string         `json:"tracking_id" db:"tracking_id"`
	LandingURL     string         `json:"landing_url" db:"landing_url"`
	Status         CampaignStatus `json:"status" db:"status"`
	DailyBudget    float64        `json:"daily_budget" db:"daily_budget"`

	// Version is bumped on every status or budget mutation and is used as
	// the compare-and-swap token for autopilot writes.
	Version int64 `json:"version" db:"version"`

	StartedAt       *time.Time `json:"started_at" db:"started_at"`
	LastEvaluatedAt *time.Time `json:"last_evaluated_at" db:"last_evaluated_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted
}

// State returns the mutable part of the campaign that autopilot actions
// change and rollbacks restore.
func (c *Campaign) State() CampaignState {
	return CampaignState{Status: c.Status, DailyBudget: c.DailyBudget}
}

// HoursRunning returns how long the campaign has been live at now.
// Campaigns that never started report zero.
func (c *Campaign) HoursRunning(now time.Time) float64 {
	if c.StartedAt == nil || now.Before(*c.StartedAt) {
		return 0
	}
	return now.Sub(*c.StartedAt).Hours()
}

// CampaignState is the pre-action snapshot stored on every autonomous
// action so the action can be rolled back.
type CampaignState struct {
	Status      CampaignStatus `json:"status"`
	DailyBudget float64        `json:"daily_budget"`
}
