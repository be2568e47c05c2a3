package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// CursorRepository persists round-robin rotation pointers, one row per
// rule. Advancing the cursor is a compare-and-swap so two engine instances
// racing on the same rule cannot both claim the same rotation slot.
type CursorRepository interface {
	Get(ctx context.Context, ruleID string) (*domain.RoundRobinCursor, error)
	// CompareAndSwap moves the cursor from expected to next and reports
	// whether the swap applied. expected nil matches both a NULL cursor
	// and a missing row.
	CompareAndSwap(ctx context.Context, ruleID string, expected *string, next string) (bool, error)
}

type cursorRepository struct {
	pool *pgxpool.Pool
}

// NewCursorRepository instantiates the repository.
func NewCursorRepository(pool *pgxpool.Pool) CursorRepository {
	return &cursorRepository{pool: pool}
}

// Get returns nil without error when no cursor row exists yet.
func (r *cursorRepository) Get(ctx context.Context, ruleID string) (*domain.RoundRobinCursor, error) {
	const query = `
        SELECT rule_id, last_assigned_agent_id, updated_at
        FROM round_robin_cursors WHERE rule_id=$1`
	var cursor domain.RoundRobinCursor
	err := r.pool.QueryRow(ctx, query, ruleID).Scan(
		&cursor.RuleID,
		&cursor.LastAssignedAgentID,
		&cursor.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

func (r *cursorRepository) CompareAndSwap(ctx context.Context, ruleID string, expected *string, next string) (bool, error) {
	const query = `
        INSERT INTO round_robin_cursors (rule_id, last_assigned_agent_id, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (rule_id) DO UPDATE
            SET last_assigned_agent_id = EXCLUDED.last_assigned_agent_id, updated_at = NOW()
            WHERE round_robin_cursors.last_assigned_agent_id IS NOT DISTINCT FROM $3`
	cmd, err := r.pool.Exec(ctx, query, ruleID, next, expected)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}
