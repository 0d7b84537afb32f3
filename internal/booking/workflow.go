package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dispensary/internal/access"
	"dispensary/internal/events"
	"dispensary/internal/model"
	"dispensary/internal/slots"

	"github.com/rs/zerolog"
)

var (
	ErrDeclined = errors.New("action not confirmed")
	ErrStale    = errors.New("response superseded by a newer fetch")
	ErrNotFound = errors.New("appointment not found")
	ErrInvalid  = errors.New("invalid request")
)

// Backend is the clinic REST API as seen by the workflow.
type Backend interface {
	ListRange(ctx context.Context, start, end time.Time) ([]model.Appointment, error)
	ListAll(ctx context.Context) ([]model.Appointment, error)
	DailyQueue(ctx context.Context, date time.Time) ([]model.Appointment, error)
	AvailableSlots(ctx context.Context, date time.Time) ([]string, error)
	Get(ctx context.Context, id int64) (*model.Appointment, error)
	Create(ctx context.Context, date time.Time, at model.Clock, notes string) (*model.Appointment, error)
	CreateForPatient(ctx context.Context, patientID int64, date time.Time, at model.Clock, typ model.AppointmentType, notes string) (*model.Appointment, error)
	Update(ctx context.Context, id int64, date time.Time, at model.Clock, notes string) (*model.Appointment, error)
	UpdateStatus(ctx context.Context, id int64, status model.AppointmentStatus) (*model.Appointment, error)
	CancelAllByDate(ctx context.Context, date time.Time) error
	Delete(ctx context.Context, id int64) error
}

// Confirmer asks the user a blocking yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Level is the severity of a transient notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier shows transient notifications.
type Notifier interface {
	Notify(level Level, message string)
}

// UserMessager is implemented by errors that carry text meant for the user.
type UserMessager interface {
	UserMessage() string
}

// Options configures a Workflow.
type Options struct {
	Identity          model.Identity
	Policy            *slots.Holder
	Confirmer         Confirmer
	Notifier          Notifier
	Bus               *events.EventBus
	StrictTransitions bool
	Now               func() time.Time
}

type fetchKind int

const (
	fetchRange fetchKind = iota
	fetchAll
	fetchDaily
)

type inflight struct {
	gen    uint64
	cancel context.CancelFunc
}

// Workflow orchestrates booking, editing and cancellation against the backend
// and keeps the View consistent without refetching.
type Workflow struct {
	backend  Backend
	view     *View
	gate     *access.Gate
	fsm      *FSM
	policy   *slots.Holder
	confirm  Confirmer
	notify   Notifier
	bus      *events.EventBus
	strict   bool
	now      func() time.Time
	identity model.Identity
	logger   zerolog.Logger

	fetchMu sync.Mutex
	gen     uint64
	fetches map[fetchKind]inflight
}

// NewWorkflow wires a workflow over backend.
func NewWorkflow(backend Backend, opts Options, logger zerolog.Logger) *Workflow {
	if opts.Policy == nil {
		opts.Policy = slots.NewHolder(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Bus == nil {
		opts.Bus = events.NewEventBus()
	}
	return &Workflow{
		backend:  backend,
		view:     NewView(opts.Identity, opts.Policy.Location()),
		gate:     access.NewGate(logger),
		fsm:      NewFSM(),
		policy:   opts.Policy,
		confirm:  opts.Confirmer,
		notify:   opts.Notifier,
		bus:      opts.Bus,
		strict:   opts.StrictTransitions,
		now:      opts.Now,
		identity: opts.Identity,
		logger:   logger.With().Str("component", "booking").Logger(),
		fetches:  make(map[fetchKind]inflight),
	}
}

func (w *Workflow) View() *View { return w.view }

func (w *Workflow) FSM() *FSM { return w.fsm }

// beginFetch takes a new generation for kind and cancels the previous fetch of that kind.
func (w *Workflow) beginFetch(ctx context.Context, kind fetchKind) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)
	w.fetchMu.Lock()
	defer w.fetchMu.Unlock()
	if prev, ok := w.fetches[kind]; ok {
		prev.cancel()
	}
	w.gen++
	w.fetches[kind] = inflight{gen: w.gen, cancel: cancel}
	return ctx, w.gen
}

// finishFetch applies the result only when gen is still the latest for kind.
func (w *Workflow) finishFetch(kind fetchKind, gen uint64, apply func()) bool {
	w.fetchMu.Lock()
	defer w.fetchMu.Unlock()
	cur, ok := w.fetches[kind]
	if !ok || cur.gen != gen {
		return false
	}
	cur.cancel()
	delete(w.fetches, kind)
	if apply != nil {
		apply()
	}
	return true
}

// LoadRange fetches the patient's calendar range and repartitions it.
func (w *Workflow) LoadRange(ctx context.Context, start, end time.Time) error {
	fctx, gen := w.beginFetch(ctx, fetchRange)
	appts, err := w.backend.ListRange(fctx, start, end)
	if err != nil {
		if !w.finishFetch(fetchRange, gen, nil) {
			return ErrStale
		}
		return w.fail(err, "Failed to load appointments.")
	}
	if !w.finishFetch(fetchRange, gen, func() { w.view.SetRange(appts) }) {
		w.logger.Debug().Uint64("generation", gen).Msg("discarding stale range response")
		return ErrStale
	}
	return nil
}

// LoadAll fetches the unfiltered staff list.
func (w *Workflow) LoadAll(ctx context.Context) error {
	if err := w.gate.RequireStaff(w.identity, "list all appointments"); err != nil {
		return w.fail(err, "")
	}
	fctx, gen := w.beginFetch(ctx, fetchAll)
	appts, err := w.backend.ListAll(fctx)
	if err != nil {
		if !w.finishFetch(fetchAll, gen, nil) {
			return ErrStale
		}
		return w.fail(err, "Failed to load appointments.")
	}
	if !w.finishFetch(fetchAll, gen, func() { w.view.SetAll(appts) }) {
		w.logger.Debug().Uint64("generation", gen).Msg("discarding stale list response")
		return ErrStale
	}
	return nil
}

// LoadDaily fetches the queue for date.
func (w *Workflow) LoadDaily(ctx context.Context, date time.Time) error {
	if err := w.gate.RequireStaff(w.identity, "view daily queue"); err != nil {
		return w.fail(err, "")
	}
	fctx, gen := w.beginFetch(ctx, fetchDaily)
	appts, err := w.backend.DailyQueue(fctx, date)
	if err != nil {
		if !w.finishFetch(fetchDaily, gen, nil) {
			return ErrStale
		}
		return w.fail(err, "Failed to load the daily queue.")
	}
	q := NewDailyQueue(date, appts)
	if !w.finishFetch(fetchDaily, gen, func() { w.view.SetDaily(q) }) {
		w.logger.Debug().Uint64("generation", gen).Msg("discarding stale daily queue response")
		return ErrStale
	}
	return nil
}

// AvailableSlots returns the backend's open times for date, without past ones.
func (w *Workflow) AvailableSlots(ctx context.Context, date time.Time) ([]string, error) {
	policy := w.policy.Load()
	if err := policy.IsOpenDay(date); err != nil {
		return nil, w.fail(err, "")
	}
	available, err := w.backend.AvailableSlots(ctx, date)
	if err != nil {
		return nil, w.fail(err, "Failed to load available slots.")
	}
	return policy.FilterPast(available, date, w.now()), nil
}

// Book creates an appointment for the current identity.
func (w *Workflow) Book(ctx context.Context, date time.Time, at model.Clock, notes string) (*model.Appointment, error) {
	if err := w.policy.Check(date, at, w.now()); err != nil {
		return nil, w.fail(err, "")
	}
	created, err := w.backend.Create(ctx, date, at, notes)
	if err != nil {
		return nil, w.fail(err, "Failed to book the appointment.")
	}
	a := fillFromRequest(created, date, at, notes)
	if access.PatientKey(a.Patient) == "" {
		a.Patient.Email = w.identity.Email
	}
	w.view.AppendOwn(a)
	w.publish(events.AppointmentBooked, a)
	w.success("Appointment booked.")
	return &a, nil
}

// BookForPatient creates an appointment on behalf of a patient. Staff only.
func (w *Workflow) BookForPatient(ctx context.Context, patientID int64, date time.Time, at model.Clock, typ model.AppointmentType, notes string) (*model.Appointment, error) {
	if err := w.gate.CanBookForPatient(w.identity); err != nil {
		return nil, w.fail(err, "")
	}
	if patientID <= 0 {
		return nil, w.invalid("Please select a patient.")
	}
	if !typ.Valid() {
		return nil, w.invalid("Please select an appointment type.")
	}
	if err := w.policy.Check(date, at, w.now()); err != nil {
		return nil, w.fail(err, "")
	}
	created, err := w.backend.CreateForPatient(ctx, patientID, date, at, typ, notes)
	if err != nil {
		return nil, w.fail(err, "Failed to book the appointment.")
	}
	a := fillFromRequest(created, date, at, notes)
	if a.Type == "" {
		a.Type = typ
	}
	if a.Patient.ID == 0 {
		a.Patient.ID = patientID
	}
	w.view.AppendStaff(a)
	w.publish(events.AppointmentBooked, a)
	w.success("Appointment booked.")
	return &a, nil
}

// Edit changes the date, time and notes of an appointment.
func (w *Workflow) Edit(ctx context.Context, id int64, date time.Time, at model.Clock, notes string) (*model.Appointment, error) {
	prev, err := w.lookup(ctx, id)
	if err != nil {
		return nil, w.fail(err, "Failed to load the appointment.")
	}
	if err := w.gate.CanEdit(w.identity, &prev); err != nil {
		return nil, w.fail(err, "")
	}
	if !model.SameDay(prev.Date, date) || prev.Time != at {
		if err := w.policy.Check(date, at, w.now()); err != nil {
			return nil, w.fail(err, "")
		}
	}
	updated, err := w.backend.Update(ctx, id, date, at, notes)
	if err != nil {
		return nil, w.fail(err, "Failed to update the appointment.")
	}
	a := merge(prev, fillFromRequest(updated, date, at, notes))
	w.view.Replace(a)
	w.publish(events.AppointmentEdited, a)
	w.success("Appointment updated.")
	return &a, nil
}

// ChangeStatus sets the workflow status of an appointment. Staff only.
func (w *Workflow) ChangeStatus(ctx context.Context, id int64, status model.AppointmentStatus) (*model.Appointment, error) {
	if err := w.gate.CanChangeStatus(w.identity); err != nil {
		return nil, w.fail(err, "")
	}
	if !status.Valid() {
		return nil, w.invalid(fmt.Sprintf("Unknown status %q.", status))
	}
	prev, err := w.lookup(ctx, id)
	if err != nil {
		return nil, w.fail(err, "Failed to load the appointment.")
	}
	if w.strict {
		if err := w.fsm.Validate(prev.Status, status); err != nil {
			return nil, w.fail(err, fmt.Sprintf("Cannot change status from %s to %s.", prev.Status, status))
		}
	}
	updated, err := w.backend.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, w.fail(err, "Failed to update the status.")
	}
	next := prev
	if updated != nil {
		next = merge(prev, *updated)
	}
	next.Status = status
	w.view.Replace(next)
	w.publish(events.AppointmentStatusChanged, statusPayload{ID: id, From: prev.Status, Status: status})
	w.success("Status updated.")
	return &next, nil
}

// Delete removes an appointment after the user confirms.
func (w *Workflow) Delete(ctx context.Context, id int64) error {
	prev, err := w.lookup(ctx, id)
	if err != nil {
		return w.fail(err, "Failed to load the appointment.")
	}
	if err := w.gate.CanDelete(w.identity, &prev); err != nil {
		return w.fail(err, "")
	}
	prompt := fmt.Sprintf("Cancel the appointment on %s at %s?", prev.Date.Format(model.DateLayout), prev.Time.Short())
	if err := w.ask(ctx, prompt); err != nil {
		return err
	}
	if err := w.backend.Delete(ctx, id); err != nil {
		return w.fail(err, "Failed to cancel the appointment.")
	}
	w.view.Remove(id)
	w.publish(events.AppointmentDeleted, prev)
	w.success("Appointment cancelled.")
	return nil
}

// CancelDay cancels every appointment on date after the user confirms, then
// reloads the daily queue, and the staff list when one is loaded, from the backend.
func (w *Workflow) CancelDay(ctx context.Context, date time.Time) error {
	if err := w.gate.CanCancelDay(w.identity); err != nil {
		return w.fail(err, "")
	}
	prompt := fmt.Sprintf("Cancel ALL appointments on %s? This cannot be undone.", date.Format(model.DateLayout))
	if err := w.ask(ctx, prompt); err != nil {
		return err
	}
	if err := w.backend.CancelAllByDate(ctx, date); err != nil {
		return w.fail(err, "Failed to cancel appointments for the day.")
	}
	w.publish(events.DayCancelled, map[string]string{"date": date.Format(model.DateLayout)})
	w.success(fmt.Sprintf("All appointments on %s were cancelled.", date.Format(model.DateLayout)))
	if err := w.LoadDaily(ctx, date); err != nil {
		return err
	}
	if w.view.HasAll() {
		return w.LoadAll(ctx)
	}
	return nil
}

// Select decides what clicking the appointment with id does.
func (w *Workflow) Select(ctx context.Context, id int64) (access.Selection, error) {
	a, err := w.lookup(ctx, id)
	if err != nil {
		return access.Selection{}, w.fail(err, "Failed to load the appointment.")
	}
	sel := access.Select(&a, w.identity)
	if sel.Action == access.ActionInfo && w.notify != nil {
		w.notify.Notify(LevelInfo, "This slot is booked by another patient.")
	}
	return sel, nil
}

// Lookup returns the appointment with id, or nil when the backend has none.
func (w *Workflow) Lookup(ctx context.Context, id int64) (*model.Appointment, error) {
	a, err := w.lookup(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, w.fail(err, "Failed to load the appointment.")
	}
	return &a, nil
}

func (w *Workflow) lookup(ctx context.Context, id int64) (model.Appointment, error) {
	if a, ok := w.view.Find(id); ok {
		return a, nil
	}
	a, err := w.backend.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if a == nil {
		return model.Appointment{}, fmt.Errorf("appointment %d: %w", id, ErrNotFound)
	}
	return *a, nil
}

func (w *Workflow) ask(ctx context.Context, prompt string) error {
	if w.confirm == nil {
		return ErrDeclined
	}
	ok, err := w.confirm.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return ErrDeclined
	}
	return nil
}

type statusPayload struct {
	ID     int64                   `json:"id"`
	From   model.AppointmentStatus `json:"from,omitempty"`
	Status model.AppointmentStatus `json:"status"`
}

func (w *Workflow) publish(eventType string, payload interface{}) {
	if err := w.bus.PublishJSON(eventType, payload); err != nil {
		w.logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func (w *Workflow) success(msg string) {
	if w.notify != nil {
		w.notify.Notify(LevelSuccess, msg)
	}
}

func (w *Workflow) invalid(msg string) error {
	if w.notify != nil {
		w.notify.Notify(LevelWarning, msg)
	}
	return fmt.Errorf("%w: %s", ErrInvalid, msg)
}

// fail notifies the user about err and returns it. Local validation failures
// are warnings; backend messages are shown verbatim, otherwise generic.
func (w *Workflow) fail(err error, generic string) error {
	level, msg := LevelError, generic

	var pe *slots.PolicyError
	var um UserMessager
	switch {
	case errors.As(err, &pe):
		level, msg = LevelWarning, pe.Message
	case errors.Is(err, access.ErrNotOwner):
		level, msg = LevelWarning, "You can only change your own appointments."
	case errors.Is(err, access.ErrStaffOnly), errors.Is(err, access.ErrNoRole):
		level, msg = LevelWarning, "This action is only available to clinic staff."
	case errors.Is(err, ErrNotFound):
		level, msg = LevelWarning, "The appointment no longer exists."
	case errors.As(err, &um) && um.UserMessage() != "":
		msg = um.UserMessage()
	}
	if msg == "" {
		msg = "Something went wrong. Please try again."
	}

	w.logger.Warn().Err(err).Str("level", string(level)).Msg("booking action failed")
	if w.notify != nil {
		w.notify.Notify(level, msg)
	}
	return err
}

// fillFromRequest completes a backend response with the values that were sent.
func fillFromRequest(resp *model.Appointment, date time.Time, at model.Clock, notes string) model.Appointment {
	var a model.Appointment
	if resp != nil {
		a = *resp
	}
	if a.Date.IsZero() {
		a.Date = model.DateOnly(date)
		a.Time = at
	}
	if a.Notes == "" {
		a.Notes = notes
	}
	return a
}

// merge overlays the non-zero fields of next on prev.
func merge(prev, next model.Appointment) model.Appointment {
	out := prev
	if next.ID != 0 {
		out.ID = next.ID
	}
	if !next.Date.IsZero() {
		out.Date = next.Date
		out.Time = next.Time
	}
	out.Notes = next.Notes
	if next.Type != "" {
		out.Type = next.Type
	}
	if next.Status != "" {
		out.Status = next.Status
	}
	if next.QueueNumber != 0 {
		out.QueueNumber = next.QueueNumber
	}
	if next.Patient.Email != "" || next.Patient.ID != 0 {
		out.Patient = next.Patient
	}
	return out
}
