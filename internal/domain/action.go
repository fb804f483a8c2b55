package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType enumerates the autonomous actions the autopilot can take.
type ActionType string

const (
	ActionAutoPause           ActionType = "auto_pause"
	ActionAutoScaleUp         ActionType = "auto_scale_up"
	ActionAutoScaleDown       ActionType = "auto_scale_down"
	ActionOptimizationApplied ActionType = "optimization_applied"
)

// MutatesCampaign reports whether executing the action changes the
// campaign's status or budget.
func (t ActionType) MutatesCampaign() bool {
	switch t {
	case ActionAutoPause, ActionAutoScaleUp, ActionAutoScaleDown:
		return true
	}
	return false
}

// ActionStatus enumerates the lifecycle of an autonomous action.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionExecuted   ActionStatus = "executed"
	ActionRolledBack ActionStatus = "rolled_back"
	ActionFailed     ActionStatus = "failed"
)

// Valid reports whether s is a known action status.
func (s ActionStatus) Valid() bool {
	switch s {
	case ActionPending, ActionExecuted, ActionRolledBack, ActionFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether an action may move from s to next.
// Statuses only move forward (pending -> executed -> rolled_back) or
// sideways to failed; nothing returns to pending.
func (s ActionStatus) CanTransitionTo(next ActionStatus) bool {
	switch s {
	case ActionPending:
		return next == ActionExecuted || next == ActionFailed
	case ActionExecuted:
		return next == ActionRolledBack || next == ActionFailed
	}
	return false
}

// AutonomousAction is the audit record of a decision the autopilot took.
type AutonomousAction struct {
	ID         string        `json:"id" db:"id"`
	CampaignID string        `json:"campaign_id" db:"campaign_id"`
	RunID      string        `json:"run_id" db:"run_id"`
	Type       ActionType    `json:"action_type" db:"action_type"`
	Reason     string        `json:"reason" db:"reason"`
	Confidence int           `json:"confidence" db:"confidence"`
	Status     ActionStatus  `json:"status" db:"status"`
	Snapshot   CampaignState `json:"snapshot" db:"snapshot"`
	Payload    ActionPayload `json:"payload" db:"payload"`

	// IdempotencyKey is unique per campaign, action type and cycle window.
	// Failed actions carry no key so a later cycle may retry.
	IdempotencyKey string `json:"idempotency_key,omitempty" db:"idempotency_key"`
	Error          string `json:"error,omitempty" db:"error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PayloadKind tags the variant held by an ActionPayload.
type PayloadKind string

const (
	PayloadPause        PayloadKind = "pause"
	PayloadBudgetChange PayloadKind = "budget_change"
	PayloadCrossPost    PayloadKind = "cross_post"
	PayloadUnstructured PayloadKind = "unstructured"
)

// PausePayload describes an auto_pause action.
type PausePayload struct {
	PreviousStatus CampaignStatus `json:"previous_status"`
	ROI            float64        `json:"roi"`
	Spend          float64        `json:"spend"`
}

// BudgetChangePayload describes an auto_scale_up or auto_scale_down action.
type BudgetChangePayload struct {
	OldBudget float64 `json:"old_budget"`
	NewBudget float64 `json:"new_budget"`
	Percent   float64 `json:"percent"`
	ROI       float64 `json:"roi"`
}

// CrossPostPayload describes an auto-post promotion and, once the social
// adapter has run, the outcome per platform.
type CrossPostPayload struct {
	Platforms []string     `json:"platforms"`
	CTR       float64      `json:"ctr"`
	Results   []PostResult `json:"results,omitempty"`
}

// PostResult is the outcome of publishing to one social platform.
type PostResult struct {
	Platform string    `json:"platform"`
	Success  bool      `json:"success"`
	PostID   string    `json:"post_id,omitempty"`
	Content  string    `json:"content,omitempty"`
	Error    string    `json:"error,omitempty"`
	PostedAt time.Time `json:"posted_at"`
}

// ActionPayload is a tagged union of the per-type action details. Exactly
// one variant field is set, matching Kind. Unknown kinds read from storage
// are kept verbatim in Raw under PayloadUnstructured.
type ActionPayload struct {
	Kind      PayloadKind
	Pause     *PausePayload
	Budget    *BudgetChangePayload
	CrossPost *CrossPostPayload
	Raw       json.RawMessage
}

type payloadEnvelope struct {
	Kind PayloadKind     `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes the payload as {"kind": ..., "data": ...}.
func (p ActionPayload) MarshalJSON() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch p.Kind {
	case PayloadPause:
		data, err = json.Marshal(p.Pause)
	case PayloadBudgetChange:
		data, err = json.Marshal(p.Budget)
	case PayloadCrossPost:
		data, err = json.Marshal(p.CrossPost)
	case PayloadUnstructured:
		return rawOrNull(p.Raw), nil
	case "":
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unknown payload kind %q", p.Kind)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(payloadEnvelope{Kind: p.Kind, Data: data})
}

// UnmarshalJSON decodes a tagged payload. Documents whose kind is not
// recognised become PayloadUnstructured.
func (p *ActionPayload) UnmarshalJSON(b []byte) error {
	*p = ActionPayload{}
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	var env payloadEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		p.Kind = PayloadUnstructured
		p.Raw = append(json.RawMessage(nil), b...)
		return nil
	}
	switch env.Kind {
	case PayloadPause:
		p.Pause = &PausePayload{}
		return p.decode(env, p.Pause)
	case PayloadBudgetChange:
		p.Budget = &BudgetChangePayload{}
		return p.decode(env, p.Budget)
	case PayloadCrossPost:
		p.CrossPost = &CrossPostPayload{}
		return p.decode(env, p.CrossPost)
	default:
		p.Kind = PayloadUnstructured
		p.Raw = append(json.RawMessage(nil), b...)
		return nil
	}
}

func (p *ActionPayload) decode(env payloadEnvelope, dst any) error {
	p.Kind = env.Kind
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	return nil
}

func rawOrNull(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
