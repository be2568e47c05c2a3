package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/routing-engine/internal/api/dto"
	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/service"
)

// RulesHandler exposes assignment rule administration and the dry-run
// preview endpoint.
type RulesHandler struct {
	routing *service.RoutingService
}

// NewRulesHandler constructs handler.
func NewRulesHandler(routing *service.RoutingService) *RulesHandler {
	return &RulesHandler{routing: routing}
}

// ListRules GET /assignment-rules.
func (h *RulesHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.routing.ListRules(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.RuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, ruleResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateRule POST /assignment-rules.
func (h *RulesHandler) CreateRule(c *fiber.Ctx) error {
	var req dto.CreateRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule, err := h.routing.CreateRule(c.Context(), service.RuleCreateInput{
		Name:        strings.TrimSpace(req.Name),
		Type:        req.RuleType,
		Priority:    req.Priority,
		Enabled:     enabled,
		Config:      req.Config,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ruleResponse(rule)})
}

// UpdateRule PATCH /assignment-rules/:id.
func (h *RulesHandler) UpdateRule(c *fiber.Ctx) error {
	var req dto.UpdateRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	rule, err := h.routing.UpdateRule(c.Context(), c.Params("id"), service.RuleUpdateInput{
		Name:        req.Name,
		Enabled:     req.Enabled,
		Priority:    req.Priority,
		Config:      req.Config,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(rule)})
}

// Preview POST /assignment-rules/preview. Runs the engine against a
// synthetic ticket without writing anything.
func (h *RulesHandler) Preview(c *fiber.Ctx) error {
	var req dto.PreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	ticket := &domain.Ticket{
		Subject:       req.Subject,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Priority:      req.Priority,
		Category:      req.Category,
		DepartmentID:  req.DepartmentID,
		ProductModel:  req.ProductModel,
		Status:        domain.TicketStatusOpen,
	}
	result, err := h.routing.Preview(c.Context(), ticket)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": previewResponse(result)})
}

func previewResponse(result *service.AssignmentResult) dto.PreviewResponse {
	resp := dto.PreviewResponse{Results: assignmentResponse(result).Outcomes}
	if !result.Assigned {
		return resp
	}
	match := &dto.PreviewMatch{
		RuleType:     result.RuleType,
		AgentID:      result.AgentID,
		DepartmentID: result.DepartmentID,
	}
	if result.RuleID != nil {
		match.RuleID = *result.RuleID
	}
	for _, outcome := range result.Outcomes {
		if outcome.RuleID == match.RuleID {
			match.RuleName = outcome.RuleName
			break
		}
	}
	resp.FirstMatch = match
	return resp
}

func ruleResponse(rule *domain.AssignmentRule) dto.RuleResponse {
	return dto.RuleResponse{
		ID:          rule.ID,
		Name:        rule.Name,
		RuleType:    rule.Type,
		Priority:    rule.Priority,
		Enabled:     rule.Enabled,
		Config:      rule.RawConfig,
		Description: rule.Description,
		Invalid:     rule.Invalid,
		CreatedAt:   rule.CreatedAt,
		UpdatedAt:   rule.UpdatedAt,
	}
}

func assignmentResponse(result *service.AssignmentResult) dto.AssignmentResponse {
	resp := dto.AssignmentResponse{
		Assigned:     result.Assigned,
		RuleID:       result.RuleID,
		RuleType:     result.RuleType,
		AgentID:      result.AgentID,
		DepartmentID: result.DepartmentID,
		Outcomes:     make([]dto.RuleOutcomeResponse, 0, len(result.Outcomes)),
	}
	for _, outcome := range result.Outcomes {
		resp.Outcomes = append(resp.Outcomes, dto.RuleOutcomeResponse{
			RuleID:       outcome.RuleID,
			RuleName:     outcome.RuleName,
			RuleType:     outcome.RuleType,
			Priority:     outcome.Priority,
			Matched:      outcome.Matched,
			AgentID:      outcome.AgentID,
			DepartmentID: outcome.DepartmentID,
			Reason:       outcome.Reason,
		})
	}
	return resp
}
