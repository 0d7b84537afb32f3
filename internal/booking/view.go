package booking

import (
	"sync"
	"time"

	"dispensary/internal/access"
	"dispensary/internal/model"
)

// View is the in-memory calendar state: the unified event list, the
// mine/others partitions of the patient range, and the staff lists.
type View struct {
	mu       sync.RWMutex
	identity model.Identity
	loc      *time.Location

	events []model.CalendarEvent
	mine   []model.Appointment
	others []model.Appointment
	all    []model.Appointment
	daily  DailyQueue

	// hasAll is set once the staff list has been fetched.
	hasAll bool
}

// NewView creates an empty view for identity. Patients see other patients'
// events anonymized.
func NewView(identity model.Identity, loc *time.Location) *View {
	if loc == nil {
		loc = time.Local
	}
	return &View{identity: identity, loc: loc}
}

func (v *View) anonymize() bool {
	return !v.identity.Role.IsStaff()
}

func (v *View) event(a model.Appointment) model.CalendarEvent {
	owned := access.IsOwned(&a, v.identity.Key())
	return model.NewCalendarEvent(a, owned, v.anonymize(), v.loc)
}

func (v *View) project(appts []model.Appointment) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(appts))
	for _, a := range appts {
		out = append(out, v.event(a))
	}
	return out
}

// SetRange replaces the patient range with a fresh fetch.
func (v *View) SetRange(appts []model.Appointment) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mine, v.others = Partition(appts, v.identity.Key())
	v.events = v.project(appts)
}

// SetAll replaces the staff list with a fresh fetch.
func (v *View) SetAll(appts []model.Appointment) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.all = append([]model.Appointment(nil), appts...)
	v.events = v.project(appts)
	v.hasAll = true
}

// HasAll reports whether the staff list has been loaded.
func (v *View) HasAll() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.hasAll
}

// SetDaily replaces the daily queue.
func (v *View) SetDaily(q DailyQueue) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.daily = q
}

// AppendOwn adds a just-booked appointment of the current identity.
func (v *View) AppendOwn(a model.Appointment) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, model.NewCalendarEvent(a, true, v.anonymize(), v.loc))
	v.mine = append(v.mine, a)
}

// AppendStaff adds an appointment booked by staff on behalf of a patient.
func (v *View) AppendStaff(a model.Appointment) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, v.event(a))
	v.all = append(v.all, a)
	if !v.daily.Date.IsZero() && a.OnDate(v.daily.Date) {
		v.daily = NewDailyQueue(v.daily.Date, append(v.daily.Entries, a))
	}
}

// Replace swaps the entry with a.ID in every list, keeping its position.
// It reports whether any list held the id.
func (v *View) Replace(a model.Appointment) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	found := false
	for i := range v.events {
		if v.events[i].ID == a.ID {
			ev := model.NewCalendarEvent(a, v.events[i].IsCurrentUser, v.anonymize(), v.loc)
			v.events[i] = ev
			found = true
		}
	}
	for _, list := range [][]model.Appointment{v.mine, v.others, v.all, v.daily.Entries} {
		for i := range list {
			if list[i].ID == a.ID {
				list[i] = a
				found = true
			}
		}
	}
	return found
}

// Remove drops the entry with id from every list.
func (v *View) Remove(id int64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	before := len(v.events) + len(v.mine) + len(v.others) + len(v.all) + len(v.daily.Entries)

	events := v.events[:0]
	for _, ev := range v.events {
		if ev.ID != id {
			events = append(events, ev)
		}
	}
	v.events = events
	v.mine = without(v.mine, id)
	v.others = without(v.others, id)
	v.all = without(v.all, id)
	v.daily.Entries = without(v.daily.Entries, id)

	return len(v.events)+len(v.mine)+len(v.others)+len(v.all)+len(v.daily.Entries) < before
}

func without(list []model.Appointment, id int64) []model.Appointment {
	out := list[:0]
	for _, a := range list {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}

// Find returns the unanonymized appointment with id from any list.
func (v *View) Find(id int64) (model.Appointment, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, list := range [][]model.Appointment{v.mine, v.others, v.all, v.daily.Entries} {
		for _, a := range list {
			if a.ID == id {
				return a, true
			}
		}
	}
	return model.Appointment{}, false
}

func (v *View) Identity() model.Identity {
	return v.identity
}

func (v *View) Events() []model.CalendarEvent {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]model.CalendarEvent(nil), v.events...)
}

func (v *View) Mine() []model.Appointment {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]model.Appointment(nil), v.mine...)
}

func (v *View) Others() []model.Appointment {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]model.Appointment(nil), v.others...)
}

func (v *View) All() []model.Appointment {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]model.Appointment(nil), v.all...)
}

func (v *View) Daily() DailyQueue {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return DailyQueue{Date: v.daily.Date, Entries: append([]model.Appointment(nil), v.daily.Entries...)}
}
