package access

import (
	"errors"
	"fmt"

	"dispensary/internal/model"

	"github.com/rs/zerolog"
)

var (
	ErrNotOwner  = errors.New("appointment belongs to another patient")
	ErrStaffOnly = errors.New("action requires a staff role")
	ErrNoRole    = errors.New("identity has no role")
)

// Gate makes role-aware permission decisions.
type Gate struct {
	logger zerolog.Logger
}

// NewGate creates a gate logging denials with a component logger.
func NewGate(logger zerolog.Logger) *Gate {
	return &Gate{logger: logger.With().Str("component", "access").Logger()}
}

// CanEdit allows patients to edit their own appointments and staff to edit any.
func (g *Gate) CanEdit(id model.Identity, a *model.Appointment) error {
	if id.Role == "" {
		return ErrNoRole
	}
	if id.Role.IsStaff() {
		return nil
	}
	if !IsOwned(a, id.Key()) {
		g.logger.Debug().
			Int64("appointment_id", a.ID).
			Str("identity", id.Key()).
			Msg("edit denied: not owner")
		return fmt.Errorf("edit appointment %d: %w", a.ID, ErrNotOwner)
	}
	return nil
}

// CanDelete follows the same rule as CanEdit.
func (g *Gate) CanDelete(id model.Identity, a *model.Appointment) error {
	if err := g.CanEdit(id, a); err != nil {
		if errors.Is(err, ErrNotOwner) {
			return fmt.Errorf("delete appointment %d: %w", a.ID, ErrNotOwner)
		}
		return err
	}
	return nil
}

// RequireStaff guards status changes, bulk cancellation and booking on behalf of a patient.
func (g *Gate) RequireStaff(id model.Identity, action string) error {
	if id.Role.IsStaff() {
		return nil
	}
	g.logger.Debug().
		Str("action", action).
		Str("role", string(id.Role)).
		Msg("staff action denied")
	return fmt.Errorf("%s: %w", action, ErrStaffOnly)
}

func (g *Gate) CanChangeStatus(id model.Identity) error {
	return g.RequireStaff(id, "change status")
}

func (g *Gate) CanCancelDay(id model.Identity) error {
	return g.RequireStaff(id, "cancel day")
}

func (g *Gate) CanBookForPatient(id model.Identity) error {
	return g.RequireStaff(id, "book for patient")
}
