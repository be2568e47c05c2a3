package domain

import "time"

// NotificationType classifies outbound alerts.
type NotificationType string

const (
	NotificationTypeSLARisk NotificationType = "sla_risk"
)

// SLAType names the deadline a risk notification refers to.
type SLAType string

const (
	SLATypeFirstResponse SLAType = "first_response"
	SLATypeResolution    SLAType = "resolution"
)

// Notification is the persisted record of an emitted alert. The record
// doubles as the deduplication source: a second sla_risk notification for
// the same (ticket, sla type) is suppressed while one exists inside the
// dedup window. A nil RecipientAgentID means broadcast to administrators.
type Notification struct {
	ID               string
	Type             NotificationType
	SLAType          SLAType
	TicketID         string
	RecipientAgentID *string
	Message          string
	CreatedAt        time.Time
}
