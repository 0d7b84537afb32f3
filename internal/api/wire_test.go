package api

import (
	"encoding/json"
	"testing"
	"time"

	"dispensary/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_PatientFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"flat patientEmail", `{"patientEmail":"flat@x.com","patient":{"email":"nested@x.com"}}`, "flat@x.com"},
		{"patient.email", `{"patient":{"email":" nested@x.com ","user":{"email":"user@x.com"}}}`, "nested@x.com"},
		{"patient.user.email", `{"patient":{"user":{"email":"user@x.com"}}}`, "user@x.com"},
		{"no identifier", `{"patient":{"id":5}}`, ""},
		{"no patient", `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w wireAppointment
			require.NoError(t, json.Unmarshal([]byte(tt.body), &w))
			w.Date = json.RawMessage(`"2026-01-14"`)
			w.Time = json.RawMessage(`"09:00"`)

			a, err := w.normalize(time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Patient.Email)
		})
	}
}

func TestNormalize_Fields(t *testing.T) {
	var w wireAppointment
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 12,
		"date": "2026-01-14T00:00:00",
		"time": "14:55:00",
		"notes": "follow-up",
		"appointmentType": "report_checking",
		"status": "no_show",
		"queueNumber": 4,
		"patient": {"id": 3, "user": {"email": "u@x.com", "firstName": "Ana", "lastName": "Lee"}}
	}`), &w))

	a, err := w.normalize(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, model.Appointment{
		ID:          12,
		Date:        time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC),
		Time:        model.NewClock(14, 55),
		Notes:       "follow-up",
		Type:        model.TypeReportChecking,
		Status:      model.StatusNoShow,
		QueueNumber: 4,
		Patient:     model.PatientRef{ID: 3, Email: "u@x.com", FirstName: "Ana", LastName: "Lee"},
	}, a)
}

func TestNormalize_Rejects(t *testing.T) {
	for _, body := range []string{
		`{"id":1,"time":"09:00"}`,
		`{"id":1,"date":"2026-01-14"}`,
		`{"id":1,"date":"14.01.2026","time":"09:00"}`,
		`{"id":1,"date":"2026-01-14","time":[25,0]}`,
	} {
		var w wireAppointment
		require.NoError(t, json.Unmarshal([]byte(body), &w))
		_, err := w.normalize(time.UTC)
		assert.Error(t, err, body)
	}
}

func TestNewAppointmentBody(t *testing.T) {
	b := newAppointmentBody(time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC), model.NewClock(9, 5), "", "n")
	assert.Equal(t, appointmentBody{Date: "2026-01-14", Time: "09:05:00", Notes: "n"}, b)
}
