package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/routing-engine/internal/api/dto"
	"github.com/spec-kit/routing-engine/internal/service"
)

// SLAHandler exposes effective SLA policies for the admin UI.
type SLAHandler struct {
	sla *service.SLAService
}

// NewSLAHandler constructs handler.
func NewSLAHandler(sla *service.SLAService) *SLAHandler {
	return &SLAHandler{sla: sla}
}

// ListPolicies GET /sla/policies.
func (h *SLAHandler) ListPolicies(c *fiber.Ctx) error {
	policies, err := h.sla.ListPolicies(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.SLAPolicyResponse, 0, len(policies))
	for _, policy := range policies {
		resolution := make(map[string]float64, len(policy.ResolutionByLevel))
		for priority, d := range policy.ResolutionByLevel {
			resolution[string(priority)] = d.Hours()
		}
		items = append(items, dto.SLAPolicyResponse{
			DepartmentID:       policy.DepartmentID,
			DepartmentName:     policy.DepartmentName,
			FirstResponseHours: policy.FirstResponse.Hours(),
			ResolutionHours:    resolution,
			Overridden:         policy.Overridden,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
