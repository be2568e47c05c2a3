package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// RuleRepository encapsulates assignment rule persistence. Rules come back
// ordered by (priority ASC, id ASC); duplicate priorities are legal and the
// id tie-break keeps evaluation order deterministic.
type RuleRepository interface {
	Create(ctx context.Context, rule *domain.AssignmentRule) error
	Update(ctx context.Context, rule *domain.AssignmentRule) error
	GetByID(ctx context.Context, id string) (*domain.AssignmentRule, error)
	List(ctx context.Context) ([]domain.AssignmentRule, error)
	ListEnabled(ctx context.Context) ([]domain.AssignmentRule, error)
}

type ruleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository instantiates the repository.
func NewRuleRepository(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepository{pool: pool}
}

func (r *ruleRepository) Create(ctx context.Context, rule *domain.AssignmentRule) error {
	const query = `
        INSERT INTO assignment_rules (name, rule_type, priority, enabled, config, description)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		rule.Name,
		rule.Type,
		rule.Priority,
		rule.Enabled,
		rule.RawConfig,
		rule.Description,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

func (r *ruleRepository) Update(ctx context.Context, rule *domain.AssignmentRule) error {
	const query = `
        UPDATE assignment_rules
        SET name=$1, rule_type=$2, priority=$3, enabled=$4, config=$5, description=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		rule.Name,
		rule.Type,
		rule.Priority,
		rule.Enabled,
		rule.RawConfig,
		rule.Description,
		rule.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ruleRepository) GetByID(ctx context.Context, id string) (*domain.AssignmentRule, error) {
	const query = `
        SELECT id, name, rule_type, priority, enabled, config, description, created_at, updated_at
        FROM assignment_rules WHERE id=$1`
	var rule domain.AssignmentRule
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&rule.ID,
		&rule.Name,
		&rule.Type,
		&rule.Priority,
		&rule.Enabled,
		&rule.RawConfig,
		&rule.Description,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepository) List(ctx context.Context) ([]domain.AssignmentRule, error) {
	const query = `
        SELECT id, name, rule_type, priority, enabled, config, description, created_at, updated_at
        FROM assignment_rules ORDER BY priority ASC, id ASC`
	return r.listWith(ctx, query)
}

func (r *ruleRepository) ListEnabled(ctx context.Context) ([]domain.AssignmentRule, error) {
	const query = `
        SELECT id, name, rule_type, priority, enabled, config, description, created_at, updated_at
        FROM assignment_rules WHERE enabled = TRUE ORDER BY priority ASC, id ASC`
	return r.listWith(ctx, query)
}

func (r *ruleRepository) listWith(ctx context.Context, query string) ([]domain.AssignmentRule, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssignmentRule
	for rows.Next() {
		var rule domain.AssignmentRule
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Type,
			&rule.Priority,
			&rule.Enabled,
			&rule.RawConfig,
			&rule.Description,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
