package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datetime(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input string
		want  Clock
		ok    bool
	}{
		{"09:00", NewClock(9, 0), true},
		{"09:05:00", NewClock(9, 5), true},
		{" 14:55 ", NewClock(14, 55), true},
		{"23:59:59", NewClock(23, 59), true},
		{"24:00", 0, false},
		{"9", 0, false},
		{"ab:cd", 0, false},
		{"10:60", 0, false},
		{"10:00:61", 0, false},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.input)
		if !tt.ok {
			assert.Error(t, err, "input: %s", tt.input)
			continue
		}
		require.NoError(t, err, "input: %s", tt.input)
		assert.Equal(t, tt.want, got, "input: %s", tt.input)
	}
}

func TestClock_Format(t *testing.T) {
	c := NewClock(9, 5)
	assert.Equal(t, "09:05:00", c.String())
	assert.Equal(t, "09:05", c.Short())
	assert.Equal(t, 9, c.Hour())
	assert.Equal(t, 5, c.Minute())
}

func TestClock_On(t *testing.T) {
	d := datetime(2026, 1, 14, 0, 0)
	assert.Equal(t, datetime(2026, 1, 14, 14, 55), NewClock(14, 55).On(d, time.UTC))
	assert.Equal(t, NewClock(14, 55), ClockOf(datetime(2026, 1, 14, 14, 55)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-01-14", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, datetime(2026, 1, 14, 0, 0), d)

	_, err = ParseDate("14.01.2026", time.UTC)
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	for _, s := range AppointmentStatuses {
		assert.True(t, s.Valid())
	}
	assert.False(t, AppointmentStatus("DONE").Valid())

	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusConfirmed.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusNoShow.IsTerminal())

	st, ok := ParseStatus("no show")
	assert.True(t, ok)
	assert.Equal(t, StatusNoShow, st)

	_, ok = ParseStatus("archived")
	assert.False(t, ok)
}

func TestParseType(t *testing.T) {
	tp, ok := ParseType("take-medicine")
	assert.True(t, ok)
	assert.Equal(t, TypeTakeMedicine, tp)

	_, ok = ParseType("surgery")
	assert.False(t, ok)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleDoctor, ParseRole("doctor"))
	assert.Equal(t, RoleDispenser, ParseRole("ROLE_DISPENSER"))
	assert.Equal(t, RolePatient, ParseRole("customer"))
	assert.Equal(t, Role(""), ParseRole("admin"))

	assert.True(t, RoleDoctor.IsStaff())
	assert.True(t, RoleDispenser.IsStaff())
	assert.False(t, RolePatient.IsStaff())
}

func TestIdentity_Key(t *testing.T) {
	assert.Equal(t, "user@x", Identity{Email: " User@X "}.Key())
}

func TestNewCalendarEvent(t *testing.T) {
	a := Appointment{
		ID:      7,
		Date:    datetime(2026, 1, 14, 0, 0),
		Time:    NewClock(10, 30),
		Notes:   "Blood pressure check",
		Patient: PatientRef{Email: "a@x.com", FirstName: "Ann"},
	}

	own := NewCalendarEvent(a, true, true, time.UTC)
	assert.Equal(t, int64(7), own.ID)
	assert.Equal(t, "Blood pressure check", own.Title)
	assert.Equal(t, datetime(2026, 1, 14, 10, 30), own.Start)
	assert.Equal(t, own.Start, own.End)
	assert.True(t, own.IsCurrentUser)

	other := NewCalendarEvent(a, false, true, time.UTC)
	assert.Equal(t, AnonymousTitle, other.Title)
	assert.Empty(t, other.Appointment.Notes)
	assert.Empty(t, other.Appointment.Patient.Email)

	staff := NewCalendarEvent(a, false, false, time.UTC)
	assert.Equal(t, "Blood pressure check", staff.Title)
	assert.Equal(t, "a@x.com", staff.Appointment.Patient.Email)
}

func TestPatientRef_Name(t *testing.T) {
	assert.Equal(t, "Ann Lee", PatientRef{FirstName: "Ann", LastName: "Lee"}.Name())
	assert.Equal(t, "a@x.com", PatientRef{Email: "a@x.com"}.Name())
}
