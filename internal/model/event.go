package model

import "time"

// AnonymousTitle replaces notes on events that belong to other patients.
const AnonymousTitle = "Booked"

// CalendarEvent is the display projection of an appointment.
type CalendarEvent struct {
	ID            int64
	Title         string
	Start         time.Time
	End           time.Time
	IsCurrentUser bool
	Appointment   Appointment
}

// NewCalendarEvent projects a into a zero-duration event. When anonymize is set
// and the appointment is not the current user's, notes and patient details are hidden.
func NewCalendarEvent(a Appointment, isCurrentUser, anonymize bool, loc *time.Location) CalendarEvent {
	start := a.Start(loc)
	ev := CalendarEvent{
		ID:            a.ID,
		Title:         a.Notes,
		Start:         start,
		End:           start,
		IsCurrentUser: isCurrentUser,
		Appointment:   a,
	}
	if anonymize && !isCurrentUser {
		ev.Title = AnonymousTitle
		ev.Appointment.Notes = ""
		ev.Appointment.Patient = PatientRef{}
	}
	return ev
}
