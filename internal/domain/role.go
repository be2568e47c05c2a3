package domain

// StaffRole enumerates operator roles carried in admin API tokens. The
// identity service owning accounts and passwords is external; this service
// only trusts the role claim when gating admin routes.
type StaffRole string

const (
	StaffRoleAgent    StaffRole = "AGENT"
	StaffRoleTeamLead StaffRole = "TEAM_LEAD"
	StaffRoleAdmin    StaffRole = "ADMIN"
)
