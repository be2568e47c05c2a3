package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/routing-engine/internal/domain"
	"github.com/spec-kit/routing-engine/internal/events"
	"github.com/spec-kit/routing-engine/internal/observability"
	"github.com/spec-kit/routing-engine/internal/persistence"
	"github.com/spec-kit/routing-engine/internal/repository"
	apperrors "github.com/spec-kit/routing-engine/pkg/util/errorutil"
)

// RoutingService is the assignment rule engine: it evaluates the ordered,
// enabled rule set against a ticket and applies the first strategy that
// produces a concrete target.
type RoutingService struct {
	rules       repository.RuleRepository
	tickets     repository.TicketRepository
	agents      repository.AgentRepository
	departments repository.DepartmentRepository
	roundRobin  *roundRobinStrategy
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	cache       *RuleCache
	logger      *zap.Logger
}

// RoutingDependencies bundles the engine's collaborators.
type RoutingDependencies struct {
	RuleRepo         repository.RuleRepository
	TicketRepo       repository.TicketRepository
	AgentRepo        repository.AgentRepository
	DepartmentRepo   repository.DepartmentRepository
	CursorRepo       repository.CursorRepository
	CursorLock       persistence.Locker
	Dispatcher       events.Dispatcher
	Metrics          *observability.Metrics
	RuleCache        *RuleCache
	Logger           *zap.Logger
}

// NewRoutingService creates the engine.
func NewRoutingService(deps RoutingDependencies) *RoutingService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoutingService{
		rules:       deps.RuleRepo,
		tickets:     deps.TicketRepo,
		agents:      deps.AgentRepo,
		departments: deps.DepartmentRepo,
		roundRobin: &roundRobinStrategy{
			cursors: deps.CursorRepo,
			locker:  deps.CursorLock,
			logger:  logger,
		},
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		cache:      deps.RuleCache,
		logger:     logger,
	}
}

// RuleOutcome records how one rule fared during an evaluation pass.
type RuleOutcome struct {
	RuleID       string
	RuleName     string
	RuleType     domain.RuleType
	Priority     int
	Matched      bool
	AgentID      *string
	DepartmentID *string
	Reason       string
}

// AssignmentResult is the outcome of one assignment attempt. Assigned false
// means every rule declined (or a manual rule stopped evaluation) and the
// ticket stays in the unassigned queue; that is a normal result, not an
// error.
type AssignmentResult struct {
	Assigned     bool
	RuleID       *string
	RuleType     domain.RuleType
	AgentID      *string
	DepartmentID *string
	Outcomes     []RuleOutcome
}

// AssignTicket runs the engine for a stored ticket and persists the
// outcome. Invoked synchronously on ticket creation by the host
// application.
func (s *RoutingService) AssignTicket(ctx context.Context, ticketID string) (*AssignmentResult, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	result, err := s.evaluate(ctx, ticket, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if result.Assigned {
		departmentID := ticket.DepartmentID
		if result.DepartmentID != nil {
			departmentID = *result.DepartmentID
		}
		if err := s.tickets.UpdateAssignment(ctx, ticket.ID, result.AgentID, departmentID); err != nil {
			return nil, apperrors.MapError(err)
		}
		s.metrics.RecordAssignment(string(result.RuleType))
		s.publishAssigned(ctx, ticket.ID, result)
	}
	return result, nil
}

// Preview runs the identical algorithm against a synthetic ticket without
// persisting anything: no ticket write, no cursor advance. Every rule's
// outcome is reported so the admin UI can show the full evaluation.
func (s *RoutingService) Preview(ctx context.Context, ticket *domain.Ticket) (*AssignmentResult, error) {
	return s.evaluate(ctx, ticket, false)
}

func (s *RoutingService) evaluate(ctx context.Context, ticket *domain.Ticket, commit bool) (*AssignmentResult, error) {
	result := &AssignmentResult{}

	rules, ok := s.loadRules(ctx)
	if !ok {
		// Store unavailable: everything falls back to the manual queue
		// with the single warning already logged.
		return result, nil
	}
	if len(rules) == 0 {
		return result, nil
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		s.logger.Warn("agent snapshot unavailable, ticket falls back to manual queue", zap.Error(err))
		return result, nil
	}

	for i := range rules {
		rule := &rules[i]
		outcome := RuleOutcome{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			RuleType: rule.Type,
			Priority: rule.Priority,
		}

		if result.Assigned {
			// Preview keeps walking the list for display; nothing after
			// the winner can win, a manual rule included.
			outcome.Reason = "not reached"
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		if rule.Invalid {
			outcome.Reason = "invalid config"
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		if rule.Type == domain.RuleTypeManual {
			// Terminal: stops evaluation and leaves the ticket in the
			// unassigned queue, distinct from "rule didn't match".
			outcome.Matched = true
			outcome.Reason = "manual queue"
			result.Outcomes = append(result.Outcomes, outcome)
			break
		}

		selection, err := s.applyRule(ctx, rule, ticket, snap, commit)
		if err != nil {
			// Persistence failure inside a strategy fails the whole
			// attempt loudly; everything else already degraded to nil.
			return nil, err
		}

		if selection == nil {
			outcome.Reason = declineReason(rule, ticket)
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		outcome.Matched = true
		outcome.AgentID = selection.AgentID
		outcome.DepartmentID = selection.DepartmentID
		outcome.Reason = selection.Reason
		result.Outcomes = append(result.Outcomes, outcome)

		ruleID := rule.ID
		result.Assigned = true
		result.RuleID = &ruleID
		result.RuleType = rule.Type
		result.AgentID = selection.AgentID
		result.DepartmentID = selection.DepartmentID

		if commit {
			break
		}
	}

	return result, nil
}

func (s *RoutingService) applyRule(ctx context.Context, rule *domain.AssignmentRule, ticket *domain.Ticket, snap *AgentSnapshot, commit bool) (*Selection, error) {
	switch rule.Type {
	case domain.RuleTypeDirectAssignment:
		return directSelect(ticket, rule.Direct, snap), nil
	case domain.RuleTypeRoundRobin:
		if !categoryApplies(rule.RoundRobin.Category, ticket) {
			return nil, nil
		}
		return s.roundRobin.selectNext(ctx, rule, snap, commit)
	case domain.RuleTypeLoadBased:
		if !categoryApplies(rule.LoadBased.Category, ticket) {
			return nil, nil
		}
		return loadBasedSelect(rule.LoadBased, snap), nil
	case domain.RuleTypeSkillMatch:
		if !categoryApplies(rule.SkillMatch.Category, ticket) {
			return nil, nil
		}
		return skillMatchSelect(rule.SkillMatch, snap), nil
	}
	return nil, nil
}

func categoryApplies(category *string, ticket *domain.Ticket) bool {
	if category == nil || *category == "" {
		return true
	}
	return strings.EqualFold(*category, ticket.Category)
}

func declineReason(rule *domain.AssignmentRule, ticket *domain.Ticket) string {
	switch rule.Type {
	case domain.RuleTypeDirectAssignment:
		if !EvaluateConditions(rule.Direct.Conditions, ticket) {
			return "conditions not met"
		}
		return "target unavailable"
	default:
		return "no eligible agent"
	}
}

// loadRules fetches the enabled rule set (cache first), decodes each
// rule's config once, and sorts by (priority, id). A load failure is
// reported with a single warning and an empty set, never a per-ticket
// error cascade.
func (s *RoutingService) loadRules(ctx context.Context) ([]domain.AssignmentRule, bool) {
	rules, cached := s.cache.Get(ctx)
	if !cached {
		var err error
		rules, err = s.rules.ListEnabled(ctx)
		if err != nil {
			s.logger.Warn("assignment rules unavailable, tickets fall back to manual queue", zap.Error(err))
			return nil, false
		}
		s.cache.Set(ctx, rules)
	}

	for i := range rules {
		if err := rules[i].DecodeConfig(); err != nil {
			s.logger.Warn("assignment rule config rejected", zap.Error(err))
		}
	}

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, true
}

// snapshot fetches everything the strategies read, once per invocation.
func (s *RoutingService) snapshot(ctx context.Context) (*AgentSnapshot, error) {
	agents, err := s.agents.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.tickets.CountOpenByAgent(ctx)
	if err != nil {
		return nil, err
	}
	departments, err := s.departments.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	deptIndex := make(map[string]*domain.Department, len(departments))
	for i := range departments {
		deptIndex[departments[i].ID] = &departments[i]
	}
	return &AgentSnapshot{Agents: agents, OpenCounts: counts, Departments: deptIndex}, nil
}

func (s *RoutingService) publishAssigned(ctx context.Context, ticketID string, result *AssignmentResult) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketAssigned,
		TicketID:  ticketID,
		Timestamp: time.Now(),
		Payload: events.TicketAssignedPayload{
			RuleID:       result.RuleID,
			RuleType:     result.RuleType,
			AgentID:      result.AgentID,
			DepartmentID: result.DepartmentID,
		},
	})
}

// ListRules returns every rule in evaluation order, for the admin UI.
func (s *RoutingService) ListRules(ctx context.Context) ([]domain.AssignmentRule, error) {
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rules, nil
}

// RuleCreateInput carries a new rule definition.
type RuleCreateInput struct {
	Name        string
	Type        domain.RuleType
	Priority    int
	Enabled     bool
	Config      json.RawMessage
	Description string
}

// CreateRule validates and stores a rule, then invalidates the cache so
// the engine picks it up on the next evaluation.
func (s *RoutingService) CreateRule(ctx context.Context, input RuleCreateInput) (*domain.AssignmentRule, error) {
	if input.Name == "" {
		return nil, apperrors.NewValidationError("name required", nil)
	}
	if !domain.ValidRuleType(input.Type) {
		return nil, apperrors.NewValidationError("unknown rule_type", map[string]any{"rule_type": input.Type})
	}

	rule := &domain.AssignmentRule{
		Name:        input.Name,
		Type:        input.Type,
		Priority:    input.Priority,
		Enabled:     input.Enabled,
		RawConfig:   input.Config,
		Description: input.Description,
	}
	if err := rule.DecodeConfig(); err != nil {
		return nil, apperrors.NewValidationError("invalid rule config", map[string]any{"cause": err.Error()})
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.cache.Invalidate(ctx)
	return rule, nil
}

// RuleUpdateInput carries a partial rule edit; nil fields stay untouched.
type RuleUpdateInput struct {
	Name        *string
	Enabled     *bool
	Priority    *int
	Config      *json.RawMessage
	Description *string
}

// UpdateRule applies a partial edit. Priority changes take effect on the
// next evaluation because the cache is invalidated here; two PATCH calls
// swapping priority values is how the admin UI reorders rules.
func (s *RoutingService) UpdateRule(ctx context.Context, id string, input RuleUpdateInput) (*domain.AssignmentRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("assignment rule", map[string]any{"rule_id": id})
		}
		return nil, apperrors.MapError(err)
	}

	if input.Name != nil {
		rule.Name = *input.Name
	}
	if input.Enabled != nil {
		rule.Enabled = *input.Enabled
	}
	if input.Priority != nil {
		rule.Priority = *input.Priority
	}
	if input.Config != nil {
		rule.RawConfig = *input.Config
	}
	if input.Description != nil {
		rule.Description = *input.Description
	}

	if input.Config != nil {
		if err := rule.DecodeConfig(); err != nil {
			return nil, apperrors.NewValidationError("invalid rule config", map[string]any{"cause": err.Error()})
		}
	}

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.cache.Invalidate(ctx)
	return rule, nil
}
