package appointment

import (
	"fmt"

	"github.com/hackgods/telehealth-booking/internal/identity"
)

// transitions lists the permitted moves and which non-admin roles may trigger each.
var transitions = map[Status]map[Status][]identity.Role{
	StatusPending: {
		StatusConfirmed: {identity.RoleDoctor},
		StatusCancelled: {identity.RoleDoctor, identity.RolePatient},
	},
	StatusConfirmed: {
		StatusCompleted: {identity.RoleDoctor},
		StatusCancelled: {identity.RoleDoctor, identity.RolePatient},
	},
}

// canTransition reports whether from -> to is an edge of the lifecycle graph.
func canTransition(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// isParty reports whether actor is the appointment's doctor or patient in the given role.
func isParty(actor identity.Actor, a *Appointment) bool {
	switch actor.Role {
	case identity.RoleDoctor:
		return actor.UserID == a.DoctorID
	case identity.RolePatient:
		return actor.UserID == a.PatientID
	}
	return false
}

// checkTransition validates a move without touching the record.
func checkTransition(actor identity.Actor, a *Appointment, to Status) error {
	if !canTransition(a.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	if actor.IsAdmin() {
		return nil
	}
	for _, r := range transitions[a.Status][to] {
		if r == actor.Role && isParty(actor, a) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s may not move %s -> %s", ErrInvalidTransition, actor.Role, a.Status, to)
}

// checkAnnotate allows the appointment's doctor, or an admin, to write notes in any state.
func checkAnnotate(actor identity.Actor, a *Appointment) error {
	if actor.IsAdmin() || (actor.Role == identity.RoleDoctor && isParty(actor, a)) {
		return nil
	}
	return fmt.Errorf("%w: only the treating doctor may annotate", ErrInvalidTransition)
}
