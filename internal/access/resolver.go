// Package access decides whether the acting identity owns an appointment
// and which actions it may take on it.
package access

import "dispensary/internal/model"

// Ownership classifies an appointment relative to the acting identity.
type Ownership int

const (
	// OwnershipUnknown means the appointment carries no patient identifier.
	OwnershipUnknown Ownership = iota
	OwnershipMine
	OwnershipOther
)

func (o Ownership) String() string {
	switch o {
	case OwnershipMine:
		return "mine"
	case OwnershipOther:
		return "other"
	default:
		return "unknown"
	}
}

// PatientKey returns the normalized patient identifier, or "" when none is known.
func PatientKey(p model.PatientRef) string {
	return model.NormalizeKey(p.Email)
}

// Resolve classifies a against identityKey. Both sides are lowercased and trimmed.
func Resolve(a *model.Appointment, identityKey string) Ownership {
	patient := PatientKey(a.Patient)
	if patient == "" {
		return OwnershipUnknown
	}
	if patient == model.NormalizeKey(identityKey) {
		return OwnershipMine
	}
	return OwnershipOther
}

// IsOwned is the boolean form used for isCurrentUser.
func IsOwned(a *model.Appointment, identityKey string) bool {
	return Resolve(a, identityKey) == OwnershipMine
}

// Action is what selecting an appointment on the calendar does.
type Action int

const (
	// ActionNone shows nothing: the owner is unknown.
	ActionNone Action = iota
	// ActionEdit opens the edit dialog.
	ActionEdit
	// ActionInfo shows a read-only "booked by another patient" notice.
	ActionInfo
)

// Selection is the outcome of clicking a calendar event.
type Selection struct {
	Appointment model.Appointment
	Ownership   Ownership
	Action      Action
}

// Select decides the click behavior for a. Staff open any appointment for
// editing; patients only their own.
func Select(a *model.Appointment, identity model.Identity) Selection {
	own := Resolve(a, identity.Key())
	sel := Selection{Appointment: *a, Ownership: own}
	if identity.Role.IsStaff() {
		sel.Action = ActionEdit
		return sel
	}
	switch own {
	case OwnershipMine:
		sel.Action = ActionEdit
	case OwnershipOther:
		sel.Action = ActionInfo
	default:
		sel.Action = ActionNone
	}
	return sel
}
