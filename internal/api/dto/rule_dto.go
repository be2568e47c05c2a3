package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// CreateRuleRequest payload.
type CreateRuleRequest struct {
	Name        string          `json:"name"`
	RuleType    domain.RuleType `json:"rule_type"`
	Priority    int             `json:"priority"`
	Enabled     *bool           `json:"enabled,omitempty"`
	Config      json.RawMessage `json:"config"`
	Description string          `json:"description"`
}

// UpdateRuleRequest payload; absent fields stay untouched.
type UpdateRuleRequest struct {
	Name        *string          `json:"name,omitempty"`
	Enabled     *bool            `json:"enabled,omitempty"`
	Priority    *int             `json:"priority,omitempty"`
	Config      *json.RawMessage `json:"config,omitempty"`
	Description *string          `json:"description,omitempty"`
}

// RuleResponse represents a stored rule.
type RuleResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	RuleType    domain.RuleType `json:"rule_type"`
	Priority    int             `json:"priority"`
	Enabled     bool            `json:"enabled"`
	Config      json.RawMessage `json:"config"`
	Description string          `json:"description,omitempty"`
	Invalid     bool            `json:"invalid,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PreviewRequest carries a synthetic ticket for a dry-run evaluation.
type PreviewRequest struct {
	Subject       string                `json:"subject"`
	CustomerEmail string                `json:"customer_email"`
	CustomerName  string                `json:"customer_name"`
	Priority      domain.TicketPriority `json:"priority"`
	Category      string                `json:"category"`
	DepartmentID  string                `json:"department_id"`
	ProductModel  string                `json:"product_model"`
}

// PreviewMatch identifies the winning rule and target of a dry run.
type PreviewMatch struct {
	RuleID       string          `json:"rule_id"`
	RuleName     string          `json:"rule_name"`
	RuleType     domain.RuleType `json:"rule_type"`
	AgentID      *string         `json:"agent_id,omitempty"`
	DepartmentID *string         `json:"department_id,omitempty"`
}

// PreviewResponse reports a dry-run evaluation: the first match (nil when
// every rule declined) plus every rule's outcome in evaluation order.
type PreviewResponse struct {
	FirstMatch *PreviewMatch         `json:"first_match"`
	Results    []RuleOutcomeResponse `json:"results"`
}

// RuleOutcomeResponse reports how one rule fared in an evaluation.
type RuleOutcomeResponse struct {
	RuleID       string          `json:"rule_id"`
	RuleName     string          `json:"rule_name"`
	RuleType     domain.RuleType `json:"rule_type"`
	Priority     int             `json:"priority"`
	Matched      bool            `json:"matched"`
	AgentID      *string         `json:"agent_id,omitempty"`
	DepartmentID *string         `json:"department_id,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

// AssignmentResponse reports the outcome of an assignment or preview.
type AssignmentResponse struct {
	Assigned     bool                  `json:"assigned"`
	RuleID       *string               `json:"rule_id,omitempty"`
	RuleType     domain.RuleType       `json:"rule_type,omitempty"`
	AgentID      *string               `json:"agent_id,omitempty"`
	DepartmentID *string               `json:"department_id,omitempty"`
	Outcomes     []RuleOutcomeResponse `json:"outcomes"`
}
