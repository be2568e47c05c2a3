package domain

import "time"

// Agent models a support operator eligible for ticket assignment.
type Agent struct {
	ID           string
	Name         string
	Email        string
	DepartmentID *string
	Skills       []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSkills reports whether the agent's skill set covers every required skill.
func (a *Agent) HasSkills(required []string) bool {
	if len(required) == 0 {
		return true
	}
	owned := make(map[string]struct{}, len(a.Skills))
	for _, skill := range a.Skills {
		owned[skill] = struct{}{}
	}
	for _, skill := range required {
		if _, ok := owned[skill]; !ok {
			return false
		}
	}
	return true
}
