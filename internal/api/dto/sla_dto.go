package dto

// SLAPolicyResponse describes one department's effective SLA policy.
// Durations are reported in hours to match the stored override documents.
type SLAPolicyResponse struct {
	DepartmentID       string             `json:"department_id"`
	DepartmentName     string             `json:"department_name"`
	FirstResponseHours float64            `json:"first_response_hours"`
	ResolutionHours    map[string]float64 `json:"resolution_hours"`
	Overridden         bool               `json:"overridden"`
}

// SLACheckResponse reports an on-demand risk check.
type SLACheckResponse struct {
	TicketID      string `json:"ticket_id"`
	Notifications int    `json:"notifications"`
}
