package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/routing-engine/internal/config"
	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/events"
	"github.com/spec-kit/routing-engine/internal/repository"
)

// NotificationService records and sends SLA risk alerts. Delivery is
// at-least-once; the notification log doubles as the dedup source so a
// sweep running at any frequency cannot produce a notification storm.
type NotificationService struct {
	repo        repository.NotificationRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	cfg         config.NotificationConfig
	dedupWindow time.Duration

	now func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(repo repository.NotificationRepository, dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, dedupWindow time.Duration) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dedupWindow <= 0 {
		dedupWindow = time.Hour
	}
	return &NotificationService{
		repo:        repo,
		dispatcher:  dispatcher,
		logger:      logger,
		cfg:         cfg,
		dedupWindow: dedupWindow,
		now:         time.Now,
	}
}

// NotifySLARisk emits one risk notification for (ticket, slaType) unless
// one already exists inside the dedup window. Returns whether a
// notification was created. The recipient is the current assignee; an
// unassigned ticket broadcasts to administrators (nil recipient).
func (n *NotificationService) NotifySLARisk(ctx context.Context, ticket *domain.Ticket, slaType domain.SLAType, remaining time.Duration) (bool, error) {
	since := n.now().Add(-n.dedupWindow)
	exists, err := n.repo.ExistsSince(ctx, ticket.ID, slaType, since)
	if err != nil {
		return false, err
	}
	if exists {
		n.logger.Debug("sla risk notification suppressed by dedup window",
			zap.String("ticket_id", ticket.ID),
			zap.String("sla_type", string(slaType)))
		return false, nil
	}

	notification := &domain.Notification{
		ID:               uuid.NewString(),
		Type:             domain.NotificationTypeSLARisk,
		SLAType:          slaType,
		TicketID:         ticket.ID,
		RecipientAgentID: ticket.AssigneeID,
		Message: fmt.Sprintf("ticket %q is at risk of missing its %s SLA (%s remaining)",
			ticket.Subject, slaTypeLabel(slaType), remaining.Round(time.Minute)),
	}
	if err := n.repo.Create(ctx, notification); err != nil {
		return false, err
	}

	n.logger.Info("sla risk notification created",
		zap.String("ticket_id", ticket.ID),
		zap.String("sla_type", string(slaType)),
		zap.Duration("remaining", remaining),
		zap.Bool("broadcast", ticket.AssigneeID == nil))

	n.publishRisk(ctx, ticket, slaType, remaining)
	return true, nil
}

// RegisterHandlers subscribes the delivery channels to risk events, so
// anything publishing sla_risk_detected fans out to email and webhook
// without knowing about either.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventSLARiskDetected, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.SLARiskPayload)
		if !ok {
			return nil
		}
		n.sendEmailNotificationStub(ctx, event.TicketID, payload.SLAType)
		n.sendWebhookNotificationStub(ctx, event.TicketID, payload.SLAType)
		return nil
	})
}

func slaTypeLabel(slaType domain.SLAType) string {
	if slaType == domain.SLATypeFirstResponse {
		return "first response"
	}
	return "resolution"
}

func (n *NotificationService) publishRisk(ctx context.Context, ticket *domain.Ticket, slaType domain.SLAType, remaining time.Duration) {
	if n.dispatcher == nil {
		return
	}
	_ = n.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSLARiskDetected,
		TicketID:  ticket.ID,
		Timestamp: n.now(),
		Payload: events.SLARiskPayload{
			SLAType:          slaType,
			RemainingSeconds: int64(remaining.Seconds()),
			RecipientAgentID: ticket.AssigneeID,
		},
	})
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, ticketID string, slaType domain.SLAType) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", ticketID),
		zap.String("sla_type", string(slaType)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, ticketID string, slaType domain.SLAType) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", ticketID),
		zap.String("sla_type", string(slaType)))
}
