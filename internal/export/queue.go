package export

import (
	"fmt"
	"io"

	"dispensary/internal/booking"
	"dispensary/internal/database"
	"dispensary/internal/model"
)

var queueColumns = []string{"#", "Time", "Patient", "Email", "Type", "Status", "Notes"}

// DailyQueue writes the queue sheet and a per-status summary sheet to wr.
func DailyQueue(wr io.Writer, q booking.DailyQueue) error {
	wb := NewWorkbook()
	defer wb.Close()

	day := q.Date.Format(model.DateLayout)
	if err := wb.AddSheet("Queue " + day); err != nil {
		return err
	}
	if err := wb.WriteHeader(queueColumns); err != nil {
		return err
	}
	for _, a := range q.Entries {
		queueNo := ""
		if a.QueueNumber > 0 {
			queueNo = fmt.Sprint(a.QueueNumber)
		}
		if err := wb.WriteRow([]interface{}{
			queueNo,
			a.Time.Short(),
			a.Patient.Name(),
			a.Patient.Email,
			string(a.Type),
			string(a.Status),
			a.Notes,
		}); err != nil {
			return fmt.Errorf("write appointment %d: %w", a.ID, err)
		}
	}

	if err := wb.AddSheet("Summary"); err != nil {
		return err
	}
	if err := wb.WriteHeader([]string{"Status", "Count"}); err != nil {
		return err
	}
	counts := q.Counts()
	for _, s := range model.AppointmentStatuses {
		if err := wb.WriteRow([]interface{}{string(s), counts[s]}); err != nil {
			return err
		}
	}
	if err := wb.WriteRow([]interface{}{"TOTAL", len(q.Entries)}); err != nil {
		return err
	}

	return wb.Save(wr)
}

// Activity writes the activity log to wr.
func Activity(wr io.Writer, entries []database.Activity) error {
	wb := NewWorkbook()
	defer wb.Close()

	if err := wb.AddSheet("Activity"); err != nil {
		return err
	}
	if err := wb.WriteHeader([]string{"ID", "Time", "Event", "Payload"}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := wb.WriteRow([]interface{}{
			e.ID,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.EventType,
			e.Payload,
		}); err != nil {
			return err
		}
	}
	return wb.Save(wr)
}
