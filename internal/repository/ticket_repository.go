package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// TicketRepository gives the engine read access to ticket projections and
// write access to the routing outcome only (assignee and department).
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListOpen(ctx context.Context) ([]domain.Ticket, error)
	UpdateAssignment(ctx context.Context, ticketID string, assigneeID *string, departmentID string) error
	CountOpenByAgent(ctx context.Context) (map[string]int, error)
}

const ticketColumns = `
        id, subject, customer_email, customer_name, priority, category,
        department_id, product_model, status, assignee_agent_id,
        first_response_at, first_response_seconds, created_at, updated_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	var departmentID *string
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.CustomerEmail,
		&ticket.CustomerName,
		&ticket.Priority,
		&ticket.Category,
		&departmentID,
		&ticket.ProductModel,
		&ticket.Status,
		&ticket.AssigneeID,
		&ticket.FirstResponseAt,
		&ticket.FirstResponseSeconds,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if departmentID != nil {
		ticket.DepartmentID = *departmentID
	}
	return &ticket, nil
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE status IN ('open','pending') ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) UpdateAssignment(ctx context.Context, ticketID string, assigneeID *string, departmentID string) error {
	const query = `
        UPDATE tickets SET assignee_agent_id=$1, department_id=NULLIF($2,''), updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, assigneeID, departmentID, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CountOpenByAgent recomputes each agent's open+pending load at decision
// time; the count is never stored redundantly.
func (r *ticketRepository) CountOpenByAgent(ctx context.Context) (map[string]int, error) {
	const query = `
        SELECT assignee_agent_id, COUNT(*) FROM tickets
        WHERE status IN ('open','pending') AND assignee_agent_id IS NOT NULL
        GROUP BY assignee_agent_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var agentID string
		var count int
		if err := rows.Scan(&agentID, &count); err != nil {
			return nil, err
		}
		counts[agentID] = count
	}
	return counts, rows.Err()
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		var departmentID *string
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Subject,
			&ticket.CustomerEmail,
			&ticket.CustomerName,
			&ticket.Priority,
			&ticket.Category,
			&departmentID,
			&ticket.ProductModel,
			&ticket.Status,
			&ticket.AssigneeID,
			&ticket.FirstResponseAt,
			&ticket.FirstResponseSeconds,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if departmentID != nil {
			ticket.DepartmentID = *departmentID
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
