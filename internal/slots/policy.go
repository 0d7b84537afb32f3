// Package slots decides which (date, time) pairs may be booked.
package slots

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"dispensary/internal/model"
)

var (
	ErrClosedDay    = errors.New("clinic is closed on this day")
	ErrHoliday      = errors.New("clinic is closed for a holiday")
	ErrOutsideHours = errors.New("time is outside clinic hours")
	ErrOffGrid      = errors.New("time is not on the booking grid")
	ErrInPast       = errors.New("slot is in the past")
)

// PolicyError is a local validation failure. Message is shown to the user as is.
type PolicyError struct {
	Err     error
	Message string
}

func (e *PolicyError) Error() string { return e.Message }

func (e *PolicyError) Unwrap() error { return e.Err }

// Policy holds the clinic's booking window.
type Policy struct {
	Open        model.Clock // inclusive
	Close       model.Clock // exclusive for start times
	Granularity time.Duration
	Weekdays    map[time.Weekday]bool
	Holidays    map[string]string // YYYY-MM-DD -> name
	Location    *time.Location
}

// DefaultPolicy is 09:00-15:00, Monday to Friday, 5-minute grid.
func DefaultPolicy() *Policy {
	return &Policy{
		Open:        model.NewClock(9, 0),
		Close:       model.NewClock(15, 0),
		Granularity: 5 * time.Minute,
		Weekdays: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
		},
		Location: time.Local,
	}
}

func (p *Policy) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func (p *Policy) step() int {
	minutes := int(p.Granularity / time.Minute)
	if minutes <= 0 {
		return 5
	}
	return minutes
}

// IsOpenDay reports whether bookings are accepted on the date at all.
func (p *Policy) IsOpenDay(date time.Time) error {
	if !p.Weekdays[date.Weekday()] {
		return &PolicyError{Err: ErrClosedDay, Message: fmt.Sprintf("Appointments are only available on weekdays (%s is closed).", date.Weekday())}
	}
	if name, ok := p.Holidays[date.Format(model.DateLayout)]; ok {
		msg := "The clinic is closed on this day."
		if name != "" {
			msg = fmt.Sprintf("The clinic is closed on this day (%s).", name)
		}
		return &PolicyError{Err: ErrHoliday, Message: msg}
	}
	return nil
}

// Check validates a candidate slot against the policy and the current instant.
func (p *Policy) Check(date time.Time, clock model.Clock, now time.Time) error {
	if err := p.IsOpenDay(date); err != nil {
		return err
	}
	if clock < p.Open || clock >= p.Close {
		return &PolicyError{
			Err:     ErrOutsideHours,
			Message: fmt.Sprintf("Please select a time between %s and %s.", p.Open.Short(), p.Close.Short()),
		}
	}
	if int(clock)%p.step() != 0 {
		return &PolicyError{
			Err:     ErrOffGrid,
			Message: fmt.Sprintf("Appointments start every %d minutes.", p.step()),
		}
	}

	loc := p.location()
	start := clock.On(date, loc)
	if !start.After(now.In(loc)) {
		return &PolicyError{Err: ErrInPast, Message: "Cannot book an appointment in the past."}
	}
	return nil
}

// IsBookable is Check without the reason.
func (p *Policy) IsBookable(date time.Time, clock model.Clock, now time.Time) bool {
	return p.Check(date, clock, now) == nil
}

// Candidates enumerates every grid start time inside the window for date.
// Closed days and holidays have none.
func (p *Policy) Candidates(date time.Time) []model.Clock {
	if p.IsOpenDay(date) != nil {
		return nil
	}
	step := p.step()
	first := p.Open
	if rem := int(first) % step; rem != 0 {
		first += model.Clock(step - rem)
	}
	var out []model.Clock
	for c := first; c < p.Close; c += model.Clock(step) {
		out = append(out, c)
	}
	return out
}

// FilterPast drops available slots at or before now when date is today.
// The backend strings are kept verbatim; unparsable entries are dropped.
func (p *Policy) FilterPast(available []string, date, now time.Time) []string {
	loc := p.location()
	now = now.In(loc)
	result := make([]string, 0, len(available))
	for _, s := range available {
		c, err := model.ParseClock(s)
		if err != nil {
			continue
		}
		if model.SameDay(date, now) && !c.On(date, loc).After(now) {
			continue
		}
		result = append(result, s)
	}
	return result
}

// HolidayDates returns configured holidays in date order.
func (p *Policy) HolidayDates() []string {
	out := make([]string, 0, len(p.Holidays))
	for d := range p.Holidays {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
