package model

import (
	"strings"
	"time"
)

// AppointmentType describes the reason category of a visit.
type AppointmentType string

const (
	TypeCheckup        AppointmentType = "CHECKUP"
	TypeTakeMedicine   AppointmentType = "TAKE_MEDICINE"
	TypeGetAdvice      AppointmentType = "GET_ADVICE"
	TypeReportChecking AppointmentType = "REPORT_CHECKING"
	TypeOther          AppointmentType = "OTHER"
)

// AppointmentTypes lists every type in display order.
var AppointmentTypes = []AppointmentType{
	TypeCheckup, TypeTakeMedicine, TypeGetAdvice, TypeReportChecking, TypeOther,
}

func (t AppointmentType) Valid() bool {
	for _, v := range AppointmentTypes {
		if v == t {
			return true
		}
	}
	return false
}

// AppointmentStatus is the staff-visible workflow state.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "PENDING"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

// AppointmentStatuses lists every status; all of them are selectable by staff.
var AppointmentStatuses = []AppointmentStatus{
	StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow,
}

func (s AppointmentStatus) Valid() bool {
	for _, v := range AppointmentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the UI offers no further transition from s.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// ParseStatus accepts any casing and '-' or ' ' separators ("no show" -> NO_SHOW).
func ParseStatus(s string) (AppointmentStatus, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	st := AppointmentStatus(norm)
	return st, st.Valid()
}

// ParseType accepts any casing and '-' or ' ' separators.
func ParseType(s string) (AppointmentType, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	t := AppointmentType(norm)
	return t, t.Valid()
}

// PatientRef is the canonical patient reference carried by an appointment.
// Email is empty when the backend response did not carry a resolvable identifier.
type PatientRef struct {
	ID        int64  `json:"id,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Name returns "First Last" or the email when no name is known.
func (p PatientRef) Name() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Email
	}
	return name
}

// Appointment is the single record every rule and view works on.
type Appointment struct {
	ID          int64             `json:"id"`
	Date        time.Time         `json:"date"`
	Time        Clock             `json:"time"`
	Notes       string            `json:"notes"`
	Type        AppointmentType   `json:"appointmentType,omitempty"`
	Status      AppointmentStatus `json:"appointmentStatus,omitempty"`
	QueueNumber int               `json:"queueNumber,omitempty"`
	Patient     PatientRef        `json:"patient"`
}

// Start returns the appointment instant in loc (Date's location when loc is nil).
func (a *Appointment) Start(loc *time.Location) time.Time {
	return a.Time.On(a.Date, loc)
}

// OnDate reports whether the appointment falls on the calendar day of d.
func (a *Appointment) OnDate(d time.Time) bool {
	return SameDay(a.Date, d)
}
