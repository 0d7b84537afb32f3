package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dispensary/internal/model"
)

type wireUser struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type wirePatient struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	User      *wireUser `json:"user"`
}

// wireAppointment accepts every appointment shape the backend returns.
type wireAppointment struct {
	ID                int64           `json:"id"`
	Date              json.RawMessage `json:"date"`
	Time              json.RawMessage `json:"time"`
	Notes             string          `json:"notes"`
	AppointmentType   string          `json:"appointmentType"`
	AppointmentStatus string          `json:"appointmentStatus"`
	Status            string          `json:"status"`
	QueueNumber       int             `json:"queueNumber"`
	PatientID         int64           `json:"patientId"`
	PatientEmail      string          `json:"patientEmail"`
	PatientFirstName  string          `json:"patientFirstName"`
	PatientLastName   string          `json:"patientLastName"`
	Patient           *wirePatient    `json:"patient"`
}

// normalize maps the wire record into the canonical appointment. The patient
// identifier is taken from patientEmail, then patient.email, then
// patient.user.email; when none is present it stays empty.
func (w wireAppointment) normalize(loc *time.Location) (model.Appointment, error) {
	a := model.Appointment{
		ID:          w.ID,
		Notes:       w.Notes,
		QueueNumber: w.QueueNumber,
	}

	date, err := parseWireDate(w.Date, loc)
	if err != nil {
		return a, fmt.Errorf("appointment %d: %w", w.ID, err)
	}
	a.Date = date
	clock, err := parseWireClock(w.Time)
	if err != nil {
		return a, fmt.Errorf("appointment %d: %w", w.ID, err)
	}
	a.Time = clock

	if t, ok := model.ParseType(w.AppointmentType); ok {
		a.Type = t
	}
	status := w.AppointmentStatus
	if status == "" {
		status = w.Status
	}
	if s, ok := model.ParseStatus(status); ok {
		a.Status = s
	}

	a.Patient = w.patient()
	return a, nil
}

func (w wireAppointment) patient() model.PatientRef {
	ref := model.PatientRef{
		ID:        w.PatientID,
		Email:     strings.TrimSpace(w.PatientEmail),
		FirstName: w.PatientFirstName,
		LastName:  w.PatientLastName,
	}
	if w.Patient == nil {
		return ref
	}
	p := w.Patient
	if ref.ID == 0 {
		ref.ID = p.ID
	}
	if ref.FirstName == "" && ref.LastName == "" {
		ref.FirstName, ref.LastName = p.FirstName, p.LastName
	}
	if ref.Email == "" {
		ref.Email = strings.TrimSpace(p.Email)
	}
	if p.User != nil {
		if ref.Email == "" {
			ref.Email = strings.TrimSpace(p.User.Email)
		}
		if ref.FirstName == "" && ref.LastName == "" {
			ref.FirstName, ref.LastName = p.User.FirstName, p.User.LastName
		}
	}
	return ref
}

// parseWireDate accepts "2006-01-02", an ISO timestamp, or [y, m, d].
func parseWireDate(raw json.RawMessage, loc *time.Location) (time.Time, error) {
	if isNull(raw) {
		return time.Time{}, fmt.Errorf("missing date")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if len(s) > len(model.DateLayout) {
			s = s[:len(model.DateLayout)]
		}
		return model.ParseDate(s, loc)
	}
	var parts []int
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) < 3 {
		return time.Time{}, fmt.Errorf("invalid date %s", raw)
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], 0, 0, 0, 0, loc), nil
}

// parseWireClock accepts "15:04", "15:04:05" or [h, m(, s)].
func parseWireClock(raw json.RawMessage) (model.Clock, error) {
	if isNull(raw) {
		return 0, fmt.Errorf("missing time")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return model.ParseClock(s)
	}
	var parts []int
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) < 2 {
		return 0, fmt.Errorf("invalid time %s", raw)
	}
	if parts[0] < 0 || parts[0] > 23 || parts[1] < 0 || parts[1] > 59 {
		return 0, fmt.Errorf("invalid time %s", raw)
	}
	return model.NewClock(parts[0], parts[1]), nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// appointmentBody is the create/update request payload.
type appointmentBody struct {
	Date            string `json:"date"`
	Time            string `json:"time"`
	AppointmentType string `json:"appointmentType,omitempty"`
	Notes           string `json:"notes"`
}

func newAppointmentBody(date time.Time, at model.Clock, typ model.AppointmentType, notes string) appointmentBody {
	return appointmentBody{
		Date:            date.Format(model.DateLayout),
		Time:            at.String(),
		AppointmentType: string(typ),
		Notes:           notes,
	}
}
