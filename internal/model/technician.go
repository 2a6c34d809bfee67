package model

import "time"

// Role names derived from the technician flags. A technician always
// holds TECHNICIAN; team leads and admins hold the extra roles.
const (
	RoleTechnician = "TECHNICIAN"
	RoleTeamLead   = "TEAM_LEAD"
	RoleAdmin      = "ADMIN"
)

// Technician represents a row in the `technicians` table. Team leads
// and administrators are technicians with the matching flag set; the
// crew of a team lead is every technician whose TeamLeadID points at it.
//
// Fields:
//
//	ID           – primary key identifier.
//	Name         – display name.
//	Email        – login email, unique regardless of case.
//	PasswordHash – bcrypt hash, empty when no password was set.
//	IsTeamLead   – may assign tasks and mint survey links.
//	IsAdmin      – may manage reference data and pull reports.
//	IsActive     – inactive technicians are hidden from rosters.
//	TeamLeadID   – optional self reference to the crew's team lead.
//	CreatedAt    – timestamp of creation.
type Technician struct {
	ID           uint64    `json:"id"`           // technicians.id
	Name         string    `json:"name"`         // technicians.name
	Email        string    `json:"email"`        // technicians.email
	PasswordHash string    `json:"-"`            // technicians.password_hash
	IsTeamLead   bool      `json:"is_team_lead"` // technicians.is_team_lead
	IsAdmin      bool      `json:"is_admin"`     // technicians.is_admin
	IsActive     bool      `json:"is_active"`    // technicians.is_active
	TeamLeadID   *uint64   `json:"team_lead_id"` // technicians.team_lead_id (nullable)
	CreatedAt    time.Time `json:"created_at"`   // technicians.created_at
}

// Roles lists the role names granted by the technician's flags.
func (t Technician) Roles() []string {
	roles := []string{RoleTechnician}
	if t.IsTeamLead {
		roles = append(roles, RoleTeamLead)
	}
	if t.IsAdmin {
		roles = append(roles, RoleAdmin)
	}
	return roles
}

// HasRole reports whether the technician holds the named role.
func (t Technician) HasRole(role string) bool {
	for _, r := range t.Roles() {
		if r == role {
			return true
		}
	}
	return false
}
