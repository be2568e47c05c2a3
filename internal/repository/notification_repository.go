package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// NotificationRepository records emitted alerts. The dedup check is a
// derived query over the log rather than separate bookkeeping state.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	ExistsSince(ctx context.Context, ticketID string, slaType domain.SLAType, since time.Time) (bool, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Notification, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates the repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	const query = `
        INSERT INTO notifications (id, notification_type, sla_type, ticket_id, recipient_agent_id, message)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		notification.ID,
		notification.Type,
		notification.SLAType,
		notification.TicketID,
		notification.RecipientAgentID,
		notification.Message,
	).Scan(&notification.CreatedAt)
}

func (r *notificationRepository) ExistsSince(ctx context.Context, ticketID string, slaType domain.SLAType, since time.Time) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM notifications
            WHERE ticket_id=$1 AND sla_type=$2 AND notification_type=$3 AND created_at >= $4
        )`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, ticketID, slaType, domain.NotificationTypeSLARisk, since).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *notificationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Notification, error) {
	const query = `
        SELECT id, notification_type, sla_type, ticket_id, recipient_agent_id, message, created_at
        FROM notifications WHERE ticket_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.Type,
			&n.SLAType,
			&n.TicketID,
			&n.RecipientAgentID,
			&n.Message,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
