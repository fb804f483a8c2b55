package memory

import (
	"context"
	"time"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

// InTx implements autopilot.Transactor. Writes are staged and applied only
// if fn succeeds. The store lock is held for the whole transaction, so fn
// must use tx rather than the store's repositories.
func (s *Store) InTx(ctx context.Context, fn func(tx autopilot.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{
		s:         s,
		campaigns: make(map[string]domain.Campaign),
		actions:   make(map[string]domain.AutonomousAction),
		keys:      make(map[string]string),
	}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.commit()
	return nil
}

type tx struct {
	s         *Store
	campaigns map[string]domain.Campaign
	actions   map[string]domain.AutonomousAction
	inserted  []string
	keys      map[string]string
}

func (t *tx) GetCampaign(_ context.Context, id string) (*domain.Campaign, error) {
	if c, ok := t.campaigns[id]; ok {
		return &c, nil
	}
	c, ok := t.s.campaigns[id]
	if !ok {
		return nil, autopilot.ErrCampaignNotFound
	}
	return &c, nil
}

func (t *tx) UpdateCampaign(ctx context.Context, id string, expectedVersion int64, state domain.CampaignState) error {
	c, err := t.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if c.Version != expectedVersion {
		return autopilot.ErrConflict
	}
	if t.s.FailUpdateCampaign != nil {
		if err := t.s.FailUpdateCampaign(id); err != nil {
			return err
		}
	}
	c.Status = state.Status
	c.DailyBudget = state.DailyBudget
	c.Version++
	c.UpdatedAt = time.Now().UTC()
	t.campaigns[id] = *c
	return nil
}

func (t *tx) InsertAction(_ context.Context, a *domain.AutonomousAction) error {
	if a.IdempotencyKey != "" {
		if _, taken := t.s.actionKeys[a.IdempotencyKey]; taken {
			return autopilot.ErrDuplicateAction
		}
		if _, taken := t.keys[a.IdempotencyKey]; taken {
			return autopilot.ErrDuplicateAction
		}
		t.keys[a.IdempotencyKey] = a.ID
	}
	t.actions[a.ID] = *a
	t.inserted = append(t.inserted, a.ID)
	return nil
}

func (t *tx) GetAction(_ context.Context, id string) (*domain.AutonomousAction, error) {
	if a, ok := t.actions[id]; ok {
		return &a, nil
	}
	a, ok := t.s.actions[id]
	if !ok {
		return nil, autopilot.ErrNotFound
	}
	return &a, nil
}

func (t *tx) UpdateActionStatus(ctx context.Context, id string, from, to domain.ActionStatus) error {
	a, err := t.GetAction(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != from || !from.CanTransitionTo(to) {
		return autopilot.ErrInvalidTransition
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	t.actions[id] = *a
	return nil
}

// commit applies staged writes. The caller holds the store lock.
func (t *tx) commit() {
	for id, c := range t.campaigns {
		t.s.campaigns[id] = c
	}
	for _, id := range t.inserted {
		t.s.actionOrder = append(t.s.actionOrder, id)
	}
	for id, a := range t.actions {
		t.s.actions[id] = a
	}
	for key, id := range t.keys {
		t.s.actionKeys[key] = id
	}
}
