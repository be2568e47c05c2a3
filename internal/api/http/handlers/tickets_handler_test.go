package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/routing-engine/internal/api/dto"
	"github.com/spec-kit/routing-engine/internal/config"
	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/service"
)

type stubTicketRepo struct {
	tickets map[string]*domain.Ticket
}

func (s *stubTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if ticket, ok := s.tickets[id]; ok {
		return ticket, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubTicketRepo) ListOpen(ctx context.Context) ([]domain.Ticket, error) { return nil, nil }

func (s *stubTicketRepo) UpdateAssignment(ctx context.Context, ticketID string, assigneeID *string, departmentID string) error {
	return nil
}

func (s *stubTicketRepo) CountOpenByAgent(ctx context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}

type stubDepartmentRepo struct{}

func (s *stubDepartmentRepo) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubDepartmentRepo) ListActive(ctx context.Context) ([]domain.Department, error) {
	return nil, nil
}

type stubNotificationRepo struct {
	notifications []domain.Notification
}

func (s *stubNotificationRepo) Create(ctx context.Context, notification *domain.Notification) error {
	notification.CreatedAt = time.Now()
	s.notifications = append(s.notifications, *notification)
	return nil
}

func (s *stubNotificationRepo) ExistsSince(ctx context.Context, ticketID string, slaType domain.SLAType, since time.Time) (bool, error) {
	for _, n := range s.notifications {
		if n.TicketID == ticketID && n.SLAType == slaType && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubNotificationRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Notification, error) {
	return nil, nil
}

func newSLACheckApp(tickets *stubTicketRepo) *fiber.App {
	notifier := service.NewNotificationService(&stubNotificationRepo{}, nil, nil, config.NotificationConfig{}, time.Hour)
	sla := service.NewSLAService(service.SLADependencies{
		TicketRepo:     tickets,
		DepartmentRepo: &stubDepartmentRepo{},
		Notifier:       notifier,
	})
	handler := NewTicketsHandler(nil, sla)

	app := fiber.New()
	app.Post("/tickets/:id/sla-check", handler.SLACheck)
	return app
}

func TestSLACheck_ReportsNotificationCount(t *testing.T) {
	tickets := &stubTicketRepo{tickets: map[string]*domain.Ticket{
		"t1": {
			ID:        "t1",
			Subject:   "Cannot log in",
			Priority:  domain.TicketPriorityHigh,
			Status:    domain.TicketStatusOpen,
			CreatedAt: time.Now().Add(-3*time.Hour - 30*time.Minute),
		},
	}}
	app := newSLACheckApp(tickets)

	resp, err := app.Test(httptest.NewRequest("POST", "/tickets/t1/sla-check", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Data dto.SLACheckResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.TicketID != "t1" {
		t.Fatalf("expected ticket_id t1, got %+v", body.Data)
	}
	if body.Data.Notifications != 1 {
		t.Fatalf("ticket inside its first-response risk window should notify once, got %+v", body.Data)
	}
}

func TestSLACheck_QuietTicketNotifiesNothing(t *testing.T) {
	tickets := &stubTicketRepo{tickets: map[string]*domain.Ticket{
		"t2": {
			ID:        "t2",
			Subject:   "Feature request",
			Priority:  domain.TicketPriorityLow,
			Status:    domain.TicketStatusOpen,
			CreatedAt: time.Now().Add(-30 * time.Minute),
		},
	}}
	app := newSLACheckApp(tickets)

	resp, err := app.Test(httptest.NewRequest("POST", "/tickets/t2/sla-check", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Data dto.SLACheckResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Notifications != 0 {
		t.Fatalf("fresh ticket should not notify, got %+v", body.Data)
	}
}
