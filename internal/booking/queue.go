package booking

import (
	"sort"
	"time"

	"dispensary/internal/model"
)

// DailyQueue is the staff view of one clinic day, in server queue order.
type DailyQueue struct {
	Date    time.Time
	Entries []model.Appointment
}

// NewDailyQueue orders entries by QueueNumber. Entries without a number keep
// their relative order after the numbered ones.
func NewDailyQueue(date time.Time, entries []model.Appointment) DailyQueue {
	sorted := append([]model.Appointment(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		qi, qj := sorted[i].QueueNumber, sorted[j].QueueNumber
		if qi == 0 || qj == 0 {
			return qi != 0 && qj == 0
		}
		return qi < qj
	})
	return DailyQueue{Date: model.DateOnly(date), Entries: sorted}
}

// Counts returns the number of entries per status. Every status is present.
func (q DailyQueue) Counts() map[model.AppointmentStatus]int {
	counts := make(map[model.AppointmentStatus]int, len(model.AppointmentStatuses))
	for _, s := range model.AppointmentStatuses {
		counts[s] = 0
	}
	for _, a := range q.Entries {
		counts[a.Status]++
	}
	return counts
}

// Waiting returns entries that still need attention (pending or confirmed).
func (q DailyQueue) Waiting() []model.Appointment {
	var out []model.Appointment
	for _, a := range q.Entries {
		if !a.Status.IsTerminal() {
			out = append(out, a)
		}
	}
	return out
}
