package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/routing-engine/internal/api/dto"
	"github.com/spec-kit/routing-engine/internal/service"
)

// TicketsHandler exposes per-ticket routing and SLA operations.
type TicketsHandler struct {
	routing *service.RoutingService
	sla     *service.SLAService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(routing *service.RoutingService, sla *service.SLAService) *TicketsHandler {
	return &TicketsHandler{routing: routing, sla: sla}
}

// Assign POST /tickets/:id/assign. Runs the rule engine against a stored
// ticket and persists the winner's target.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	result, err := h.routing.AssignTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponse(result)})
}

// SLACheck POST /tickets/:id/sla-check. Evaluates risk for one ticket on
// demand; dedup still applies, so repeated calls cannot spam alerts.
func (h *TicketsHandler) SLACheck(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	notified, err := h.sla.CheckTicketByID(c.Context(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SLACheckResponse{
		TicketID:      ticketID,
		Notifications: notified,
	}})
}
