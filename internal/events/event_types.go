package events

import (
	"time"

	"github.com/spec-kit/routing-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketAssigned  EventType = "ticket_assigned"
	EventSLARiskDetected EventType = "sla_risk_detected"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	RuleID       *string         `json:"rule_id,omitempty"`
	RuleType     domain.RuleType `json:"rule_type,omitempty"`
	AgentID      *string         `json:"agent_id,omitempty"`
	DepartmentID *string         `json:"department_id,omitempty"`
}

// SLARiskPayload payload.
type SLARiskPayload struct {
	SLAType          domain.SLAType `json:"sla_type"`
	RemainingSeconds int64          `json:"remaining_seconds"`
	RecipientAgentID *string        `json:"recipient_agent_id,omitempty"`
}
