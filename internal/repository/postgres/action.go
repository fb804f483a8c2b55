package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const actionColumns = `id, campaign_id, run_id, action_type, reason, confidence, status,
	snapshot, payload, COALESCE(idempotency_key,''), COALESCE(error,''), created_at, updated_at`

const uniqueViolation = "23505"

func scanAction(row rowScanner) (*domain.AutonomousAction, error) {
	var (
		a                 domain.AutonomousAction
		snapshot, payload []byte
	)
	if err := row.Scan(
		&a.ID, &a.CampaignID, &a.RunID, &a.Type, &a.Reason, &a.Confidence, &a.Status,
		&snapshot, &payload, &a.IdempotencyKey, &a.Error, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &a.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot of action %s: %w", a.ID, err)
		}
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &a.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of action %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

func getAction(ctx context.Context, q queryRower, id string, forUpdate bool) (*domain.AutonomousAction, error) {
	query := `SELECT ` + actionColumns + ` FROM autonomous_actions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	a, err := scanAction(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, autopilot.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get action: %w", err)
	}
	return a, nil
}

func insertAction(ctx context.Context, ex execer, a *domain.AutonomousAction) error {
	snapshot, err := json.Marshal(a.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO autonomous_actions
			(id, campaign_id, run_id, action_type, reason, confidence, status,
			 snapshot, payload, idempotency_key, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10,''), NULLIF($11,''), $12, $13)
	`, a.ID, a.CampaignID, a.RunID, a.Type, a.Reason, a.Confidence, a.Status,
		snapshot, payload, a.IdempotencyKey, a.Error, a.CreatedAt, a.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return autopilot.ErrDuplicateAction
	}
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// ActionRepo implements autopilot.ActionRepository against PostgreSQL.
type ActionRepo struct{ db *sql.DB }

// NewActionRepo creates a Postgres-backed action repository.
func NewActionRepo(db *sql.DB) *ActionRepo { return &ActionRepo{db: db} }

func (r *ActionRepo) Get(ctx context.Context, id string) (*domain.AutonomousAction, error) {
	return getAction(ctx, r.db, id, false)
}

func (r *ActionRepo) List(ctx context.Context, f autopilot.ActionFilter) ([]domain.AutonomousAction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = autopilot.DefaultListLimit
	}

	q := `SELECT ` + actionColumns + ` FROM autonomous_actions WHERE 1=1`
	args := []any{}
	idx := 1
	if f.CampaignID != "" {
		q += fmt.Sprintf(" AND campaign_id = $%d", idx)
		args = append(args, f.CampaignID)
		idx++
	}
	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []domain.AutonomousAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *ActionRepo) Insert(ctx context.Context, a *domain.AutonomousAction) error {
	return insertAction(ctx, r.db, a)
}

func (r *ActionRepo) UpdatePayload(ctx context.Context, id string, p domain.ActionPayload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE autonomous_actions SET payload = $1, updated_at = NOW() WHERE id = $2`, payload, id)
	if err != nil {
		return fmt.Errorf("update action payload: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return autopilot.ErrNotFound
	}
	return nil
}
