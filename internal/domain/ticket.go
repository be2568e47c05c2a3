package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusClosed   TicketStatus = "closed"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Ticket is the routing-relevant projection of a support request. The full
// aggregate (message thread, attachments, audit trail) is owned by the host
// application; this service only reads the fields the rule engine and the
// SLA monitor decide on, and writes back assignee and department.
type Ticket struct {
	ID                   string
	Subject              string
	CustomerEmail        string
	CustomerName         string
	Priority             TicketPriority
	Category             string
	DepartmentID         string
	ProductModel         string
	Status               TicketStatus
	AssigneeID           *string
	FirstResponseAt      *time.Time
	FirstResponseSeconds *int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Age returns how long the ticket has existed at the given instant.
func (t *Ticket) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// IsOpen reports whether the ticket still counts against SLA budgets.
func (t *Ticket) IsOpen() bool {
	return t.Status == TicketStatusOpen || t.Status == TicketStatusPending
}
