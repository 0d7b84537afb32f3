// Package booking keeps the in-memory appointment view consistent with the
// backend while patients and staff create, edit and cancel appointments.
package booking

import (
	"errors"
	"fmt"

	"dispensary/internal/model"
)

var ErrInvalidTransition = errors.New("status transition not allowed")

// FSM holds the status transitions the clinic workflow allows.
type FSM struct {
	transitions map[model.AppointmentStatus][]model.AppointmentStatus
}

// NewFSM creates an FSM with the clinic's transitions. Terminal statuses have none.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[model.AppointmentStatus][]model.AppointmentStatus{
			model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled, model.StatusNoShow},
			model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled, model.StatusNoShow},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to model.AppointmentStatus) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Next lists the statuses reachable from s.
func (f *FSM) Next(s model.AppointmentStatus) []model.AppointmentStatus {
	return append([]model.AppointmentStatus(nil), f.transitions[s]...)
}

// Validate returns ErrInvalidTransition wrapped with both statuses.
func (f *FSM) Validate(from, to model.AppointmentStatus) error {
	if !to.Valid() {
		return fmt.Errorf("unknown status %q", to)
	}
	if from == "" || f.CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
}
