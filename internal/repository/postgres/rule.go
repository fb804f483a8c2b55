package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/service/autopilot"
)

const ruleColumns = `id, name, rule_type, priority, is_active, params, created_at, updated_at`

func scanRule(row rowScanner) (*domain.AutonomousRule, error) {
	var (
		r      domain.AutonomousRule
		params []byte
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Type, &r.Priority, &r.Active, &params, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &r.Params); err != nil {
			return nil, fmt.Errorf("decode params of rule %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

// RuleRepo implements autopilot.RuleRepository against PostgreSQL.
type RuleRepo struct{ db *sql.DB }

// NewRuleRepo creates a Postgres-backed rule repository.
func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

func (r *RuleRepo) List(ctx context.Context) ([]domain.AutonomousRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM autonomous_rules ORDER BY priority DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []domain.AutonomousRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

func (r *RuleRepo) Get(ctx context.Context, id string) (*domain.AutonomousRule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM autonomous_rules WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, autopilot.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func (r *RuleRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE autonomous_rules SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("toggle rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return autopilot.ErrNotFound
	}
	return nil
}

func (r *RuleRepo) Seed(ctx context.Context, rules []domain.AutonomousRule) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM autonomous_rules`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	for _, rule := range rules {
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		params, err := json.Marshal(rule.Params)
		if err != nil {
			return 0, fmt.Errorf("encode params: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO autonomous_rules (id, name, rule_type, priority, is_active, params, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		`, rule.ID, rule.Name, rule.Type, rule.Priority, rule.Active, params); err != nil {
			return 0, fmt.Errorf("insert rule %s: %w", rule.Type, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return len(rules), nil
}
