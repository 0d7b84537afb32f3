package access

import (
	"io"
	"testing"

	"dispensary/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func appt(id int64, email string) *model.Appointment {
	return &model.Appointment{ID: id, Patient: model.PatientRef{Email: email}}
}

func TestResolve(t *testing.T) {
	a := appt(7, "a@x.com")

	assert.Equal(t, OwnershipMine, Resolve(a, "A@X.COM"))
	assert.Equal(t, OwnershipMine, Resolve(a, "  a@x.com "))
	assert.Equal(t, OwnershipOther, Resolve(a, "b@x.com"))
	assert.Equal(t, OwnershipUnknown, Resolve(appt(8, ""), "a@x.com"))
	assert.Equal(t, OwnershipUnknown, Resolve(appt(8, "   "), "a@x.com"))
}

func TestIsOwned_CaseAndWhitespaceInsensitive(t *testing.T) {
	a := appt(1, "User@X")

	assert.Equal(t, IsOwned(a, " User@X "), IsOwned(a, "user@x"))
	assert.True(t, IsOwned(a, "user@x"))
	// Stable under repeated evaluation.
	for i := 0; i < 3; i++ {
		assert.True(t, IsOwned(a, "USER@x"))
	}
	assert.False(t, IsOwned(appt(2, ""), ""))
}

func TestSelect(t *testing.T) {
	a := appt(7, "a@x.com")

	sel := Select(a, model.Identity{Email: "A@X.COM", Role: model.RolePatient})
	assert.Equal(t, ActionEdit, sel.Action)
	assert.Equal(t, OwnershipMine, sel.Ownership)

	sel = Select(a, model.Identity{Email: "b@x.com", Role: model.RolePatient})
	assert.Equal(t, ActionInfo, sel.Action)

	sel = Select(appt(9, ""), model.Identity{Email: "b@x.com", Role: model.RolePatient})
	assert.Equal(t, ActionNone, sel.Action)
	assert.Equal(t, "unknown", sel.Ownership.String())

	for _, role := range []model.Role{model.RoleDoctor, model.RoleDispenser} {
		staff := model.Identity{Email: "doc@x.com", Role: role}
		sel = Select(a, staff)
		assert.Equal(t, ActionEdit, sel.Action, role)
		assert.Equal(t, OwnershipOther, sel.Ownership, role)

		sel = Select(appt(9, ""), staff)
		assert.Equal(t, ActionEdit, sel.Action, role)
	}
}

func TestGate(t *testing.T) {
	g := NewGate(zerolog.New(io.Discard))
	a := appt(7, "a@x.com")

	owner := model.Identity{Email: "a@x.com", Role: model.RolePatient}
	stranger := model.Identity{Email: "b@x.com", Role: model.RolePatient}
	doctor := model.Identity{Email: "doc@x.com", Role: model.RoleDoctor}

	assert.NoError(t, g.CanEdit(owner, a))
	assert.ErrorIs(t, g.CanEdit(stranger, a), ErrNotOwner)
	assert.NoError(t, g.CanEdit(doctor, a))
	assert.ErrorIs(t, g.CanEdit(model.Identity{Email: "a@x.com"}, a), ErrNoRole)

	assert.NoError(t, g.CanDelete(owner, a))
	assert.ErrorIs(t, g.CanDelete(stranger, a), ErrNotOwner)

	assert.NoError(t, g.RequireStaff(doctor, "cancel day"))
	assert.NoError(t, g.RequireStaff(model.Identity{Role: model.RoleDispenser}, "cancel day"))
	assert.ErrorIs(t, g.RequireStaff(owner, "cancel day"), ErrStaffOnly)
}
