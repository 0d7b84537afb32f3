package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"dispensary/internal/model"
)

func (c *Client) decodeList(route string, wire []wireAppointment) []model.Appointment {
	out := make([]model.Appointment, 0, len(wire))
	for _, w := range wire {
		a, err := w.normalize(c.location)
		if err != nil {
			c.logger.Warn().Err(err).Str("route", route).Msg("skipping malformed appointment")
			continue
		}
		out = append(out, a)
	}
	return out
}

func (c *Client) decodeOne(w *wireAppointment) (*model.Appointment, error) {
	if w == nil || (w.ID == 0 && isNull(w.Date)) {
		return nil, nil
	}
	a, err := w.normalize(c.location)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListRange returns the patient's calendar range.
func (c *Client) ListRange(ctx context.Context, start, end time.Time) ([]model.Appointment, error) {
	q := url.Values{}
	q.Set("startDate", start.Format(model.DateLayout))
	q.Set("endDate", end.Format(model.DateLayout))
	var wire []wireAppointment
	if err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/api/appointments?" + q.Encode(),
		route:  "appointments.range",
	}, &wire); err != nil {
		return nil, err
	}
	return c.decodeList("appointments.range", wire), nil
}

// ListAll returns every appointment. Staff only on the backend.
func (c *Client) ListAll(ctx context.Context) ([]model.Appointment, error) {
	var wire []wireAppointment
	if err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/api/appointments/all",
		route:  "appointments.all",
	}, &wire); err != nil {
		return nil, err
	}
	return c.decodeList("appointments.all", wire), nil
}

// DailyQueue returns the appointments of date with their queue numbers.
func (c *Client) DailyQueue(ctx context.Context, date time.Time) ([]model.Appointment, error) {
	var wire []wireAppointment
	if err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/api/appointments/daily-queue?date=" + url.QueryEscape(date.Format(model.DateLayout)),
		route:  "appointments.daily_queue",
	}, &wire); err != nil {
		return nil, err
	}
	return c.decodeList("appointments.daily_queue", wire), nil
}

// AvailableSlots returns the open times for date as sent by the backend.
func (c *Client) AvailableSlots(ctx context.Context, date time.Time) ([]string, error) {
	day := date.Format(model.DateLayout)
	if c.token() == "" {
		return nil, ErrUnauthenticated
	}
	cacheKey := c.cacheKey("slots", day)
	var slots []string
	if c.readCache(ctx, cacheKey, &slots) {
		return slots, nil
	}

	if err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/api/appointments/available-slots?date=" + url.QueryEscape(day),
		route:  "appointments.available_slots",
	}, &slots); err != nil {
		return nil, err
	}
	if slots == nil {
		slots = []string{}
	}
	c.writeCache(ctx, cacheKey, slots)
	return slots, nil
}

// Get looks an appointment up by id. A 404 yields (nil, nil).
func (c *Client) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	var wire wireAppointment
	err := c.call(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/appointments/%d", id),
		route:  "appointments.get",
	}, &wire)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.decodeOne(&wire)
}

// Create books an appointment for the session's patient.
func (c *Client) Create(ctx context.Context, date time.Time, at model.Clock, notes string) (*model.Appointment, error) {
	var wire *wireAppointment
	if err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/api/appointments",
		route:  "appointments.create",
		body:   newAppointmentBody(date, at, "", notes),
	}, &wire); err != nil {
		return nil, err
	}
	c.invalidate(ctx, c.cacheKey("slots", date.Format(model.DateLayout)))
	return c.decodeOne(wire)
}

// CreateForPatient books on behalf of patientID. Staff only on the backend.
func (c *Client) CreateForPatient(ctx context.Context, patientID int64, date time.Time, at model.Clock, typ model.AppointmentType, notes string) (*model.Appointment, error) {
	var wire *wireAppointment
	if err := c.call(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/appointments/create-for-patient/%d", patientID),
		route:  "appointments.create_for_patient",
		body:   newAppointmentBody(date, at, typ, notes),
	}, &wire); err != nil {
		return nil, err
	}
	c.invalidate(ctx, c.cacheKey("slots", date.Format(model.DateLayout)))
	return c.decodeOne(wire)
}

// Update changes date, time and notes of appointment id.
func (c *Client) Update(ctx context.Context, id int64, date time.Time, at model.Clock, notes string) (*model.Appointment, error) {
	var wire *wireAppointment
	if err := c.call(ctx, request{
		method: http.MethodPut,
		path:   fmt.Sprintf("/api/appointments/%d", id),
		route:  "appointments.update",
		body:   newAppointmentBody(date, at, "", notes),
	}, &wire); err != nil {
		return nil, err
	}
	// The previous date is not known here.
	c.invalidate(ctx, c.cacheKey("slots", "*"))
	return c.decodeOne(wire)
}

// UpdateStatus sets the workflow status of appointment id.
func (c *Client) UpdateStatus(ctx context.Context, id int64, status model.AppointmentStatus) (*model.Appointment, error) {
	var wire *wireAppointment
	if err := c.call(ctx, request{
		method: http.MethodPut,
		path:   fmt.Sprintf("/api/appointments/%d/status", id),
		route:  "appointments.status",
		body:   map[string]string{"status": string(status)},
	}, &wire); err != nil {
		return nil, err
	}
	c.invalidate(ctx, c.cacheKey("slots", "*"))
	return c.decodeOne(wire)
}

// CancelAllByDate cancels every appointment on date.
func (c *Client) CancelAllByDate(ctx context.Context, date time.Time) error {
	day := date.Format(model.DateLayout)
	if err := c.call(ctx, request{
		method: http.MethodPut,
		path:   "/api/appointments/cancel-all-by-date/" + url.PathEscape(day),
		route:  "appointments.cancel_all_by_date",
	}, nil); err != nil {
		return err
	}
	c.invalidate(ctx, c.cacheKey("slots", day))
	return nil
}

// Delete removes appointment id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := c.call(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/api/appointments/%d", id),
		route:  "appointments.delete",
	}, nil); err != nil {
		return err
	}
	c.invalidate(ctx, c.cacheKey("slots", "*"))
	return nil
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Login exchanges credentials for a bearer token. It needs no session.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		route:  "auth.login",
		body:   map[string]string{"email": email, "password": password},
		public: true,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login: empty token in response")
	}
	return &resp, nil
}

// UnreadNotifications returns the staff notification badge count.
func (c *Client) UnreadNotifications(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/api/notifications/unread-count",
		route:  "notifications.unread_count",
	}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
