// Package policy holds the role-gating rules of the monitoring workflow.
// Everything here is a pure predicate over reference data; no state.
package policy

import (
	"vigia/internal/domain"
)

// CanAssignTag reports whether a role may assign the given level to any
// evaluation dimension. Escalation discipline: only managers finalize
// top-tier outcomes, lower roles hand higher-severity judgments upward.
func CanAssignTag(role domain.Role, level domain.TagLevel) bool {
	switch role {
	case domain.RoleTeamLeader:
		return level == domain.TagLow || level == domain.TagMedLow
	case domain.RoleSupervisor:
		return level == domain.TagLow || level == domain.TagMedLow || level == domain.TagMedHigh
	case domain.RoleManager, domain.RoleAdministrator:
		return true
	}
	return false
}

// CanMarkForCalibration reports whether a role may flag a review for a
// calibration track. Managers receive calibration results, they do not
// originate them.
func CanMarkForCalibration(role domain.Role) bool {
	switch role {
	case domain.RoleTeamLeader, domain.RoleSupervisor:
		return true
	case domain.RoleManager, domain.RoleAdministrator:
		return false
	}
	return false
}

// CanManageRules reports whether a role may create, edit, delete or toggle
// transition rules.
func CanManageRules(role domain.Role) bool {
	return role == domain.RoleAdministrator
}

// CanOverrideTerminal reports whether a role may move a review out of a
// terminal status.
func CanOverrideTerminal(role domain.Role) bool {
	return role == domain.RoleAdministrator
}

// CanView reports whether a user sees a review in role-scoped listings.
//   - Team Leader: only reviews they own, in General or Prioridad.
//   - Supervisor: the Supervisión queue.
//   - Gerente: Gerencia, Supervisión and every pride case.
//   - Administrador: everything.
func CanView(u domain.User, r *domain.Review) bool {
	switch u.Role {
	case domain.RoleTeamLeader:
		return r.OwnerID == u.ID && (r.Queue == domain.QueueGeneral || r.Queue == domain.QueuePriority)
	case domain.RoleSupervisor:
		return r.Queue == domain.QueueSupervision
	case domain.RoleManager:
		return r.Queue == domain.QueueManagement || r.Queue == domain.QueueSupervision || r.PrideCase
	case domain.RoleAdministrator:
		return true
	}
	return false
}
