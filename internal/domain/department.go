package domain

import "time"

// Department represents a high-level organizational unit.
type Department struct {
	ID          string
	Name        string
	Description string
	IsActive    bool
	// SLAConfig holds the raw per-department SLA override document.
	// Parsing happens in the SLA resolver; a malformed document falls
	// back to the global defaults.
	SLAConfig []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}
