package domain

import "time"

// OpportunityType enumerates the soft signals the detector flags.
type OpportunityType string

const (
	OpportunityCreativeFatigue  OpportunityType = "creative_fatigue"
	OpportunityAudienceMismatch OpportunityType = "audience_mismatch"
	OpportunityUnderDelivery    OpportunityType = "under_delivery"
)

// Severity grades how urgently an opportunity needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// OpportunityStatus enumerates the review lifecycle of an opportunity.
type OpportunityStatus string

const (
	OpportunityOpen       OpportunityStatus = "open"
	OpportunityInProgress OpportunityStatus = "in_progress"
	OpportunityResolved   OpportunityStatus = "resolved"
	OpportunityDismissed  OpportunityStatus = "dismissed"
)

// Valid reports whether s is a known opportunity status.
func (s OpportunityStatus) Valid() bool {
	switch s {
	case OpportunityOpen, OpportunityInProgress, OpportunityResolved, OpportunityDismissed:
		return true
	}
	return false
}

// CanTransitionTo reports whether an opportunity may move from s to next.
func (s OpportunityStatus) CanTransitionTo(next OpportunityStatus) bool {
	switch s {
	case OpportunityOpen:
		return next == OpportunityInProgress || next == OpportunityResolved || next == OpportunityDismissed
	case OpportunityInProgress:
		return next == OpportunityResolved || next == OpportunityDismissed
	}
	return false
}

// IsTerminal returns true once the opportunity has been closed out.
func (s OpportunityStatus) IsTerminal() bool {
	return s == OpportunityResolved || s == OpportunityDismissed
}

// Opportunity is a detected signal left for a human to act on.
type Opportunity struct {
	ID              string            `json:"id" db:"id"`
	CampaignID      string            `json:"campaign_id" db:"campaign_id"`
	Type            OpportunityType   `json:"opportunity_type" db:"opportunity_type"`
	Severity        Severity          `json:"severity" db:"severity"`
	Description     string            `json:"description" db:"description"`
	SuggestedAction string            `json:"suggested_action" db:"suggested_action"`
	Confidence      int               `json:"confidence" db:"confidence"`
	Status          OpportunityStatus `json:"status" db:"status"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty" db:"resolved_at"`
}
