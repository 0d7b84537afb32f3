package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"dispensary/internal/access"
	"dispensary/internal/booking"
	"dispensary/internal/config"
	"dispensary/internal/database"
	"dispensary/internal/export"
	"dispensary/internal/metrics"
	"dispensary/internal/model"
	"dispensary/internal/poller"
	"dispensary/internal/session"

	"github.com/spf13/cobra"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			p := newPrompt(a.in, a.err)
			if email == "" {
				if email, err = p.readLine("Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = p.readLine("Password: "); err != nil {
					return err
				}
			}

			s, err := a.sessions.Login(cmd.Context(), session.Credentials{Email: email, Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s (%s)\n", s.Identity.Email, s.Identity.Role)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Account password (prompted when empty)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.sessions.Resume(cmd.Context())
			if err != nil && !errors.Is(err, session.ErrNoSession) && !errors.Is(err, session.ErrExpired) {
				return err
			}
			return a.sessions.Logout(cmd.Context(), s)
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.sessions.Resume(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\t%s\n", s.Identity.Email, s.Identity.Role)
			if !s.ExpiresAt.IsZero() {
				fmt.Fprintf(a.out, "expires %s\n", s.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func slotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots DATE",
		Short: "List bookable start times for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			date, err := model.ParseDate(args[0], a.policy.Location())
			if err != nil {
				return err
			}
			wf, err := a.workflow(cmd.Context(), false)
			if err != nil {
				return err
			}
			free, err := wf.AvailableSlots(cmd.Context(), date)
			if err != nil {
				return quiet(err)
			}
			if len(free) == 0 {
				fmt.Fprintln(a.out, "No free slots.")
				return nil
			}
			for _, s := range free {
				fmt.Fprintln(a.out, s)
			}
			return nil
		},
	}
}

func appointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "List appointments (a date range for patients, everything for staff)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			wf, err := a.workflow(cmd.Context(), false)
			if err != nil {
				return err
			}
			view := wf.View()
			if view.Identity().Role.IsStaff() {
				if err := wf.LoadAll(cmd.Context()); err != nil {
					return err
				}
				printAppointments(a.out, view.All())
				return nil
			}

			loc := a.policy.Location()
			from, to, err := dateRange(cmd, loc)
			if err != nil {
				return err
			}
			if err := wf.LoadRange(cmd.Context(), from, to); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Mine:")
			printAppointments(a.out, view.Mine())
			fmt.Fprintln(a.out, "\nBooked by others:")
			printCalendar(a.out, view.Events())
			return nil
		},
	}
	cmd.Flags().String("from", "", "First day, YYYY-MM-DD (default today)")
	cmd.Flags().String("to", "", "Last day, YYYY-MM-DD (default from + 30 days)")
	return cmd
}

func dateRange(cmd *cobra.Command, loc *time.Location) (time.Time, time.Time, error) {
	fromFlag, _ := cmd.Flags().GetString("from")
	toFlag, _ := cmd.Flags().GetString("to")

	from := model.DateOnly(time.Now().In(loc))
	if fromFlag != "" {
		d, err := model.ParseDate(fromFlag, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = d
	}
	to := from.AddDate(0, 0, 30)
	if toFlag != "" {
		d, err := model.ParseDate(toFlag, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = d
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to is before --from")
	}
	return from, to, nil
}

func bookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book DATE TIME",
		Short: "Book an appointment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			date, at, err := parseSlot(args[0], args[1], a.policy.Location())
			if err != nil {
				return err
			}
			notes, _ := cmd.Flags().GetString("notes")
			patientID, _ := cmd.Flags().GetInt64("patient")
			typeFlag, _ := cmd.Flags().GetString("type")

			wf, err := a.workflow(cmd.Context(), false)
			if err != nil {
				return err
			}

			var created *model.Appointment
			if patientID > 0 {
				typ, ok := model.ParseType(typeFlag)
				if !ok {
					return fmt.Errorf("unknown appointment type %q", typeFlag)
				}
				created, err = wf.BookForPatient(cmd.Context(), patientID, date, at, typ, notes)
			} else {
				created, err = wf.Book(cmd.Context(), date, at, notes)
			}
			if err != nil {
				return quiet(err)
			}
			printAppointments(a.out, []model.Appointment{*created})
			return nil
		},
	}
	cmd.Flags().String("notes", "", "Reason for the visit")
	cmd.Flags().Int64("patient", 0, "Book on behalf of this patient id (staff only)")
	cmd.Flags().String("type", string(model.TypeCheckup), "Appointment type when booking for a patient")
	return cmd
}

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit ID DATE TIME",
		Short: "Move an appointment or change its notes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			date, at, err := parseSlot(args[1], args[2], a.policy.Location())
			if err != nil {
				return err
			}
			wf, err := a.workflow(cmd.Context(), false)
			if err != nil {
				return err
			}
			notes, _ := cmd.Flags().GetString("notes")
			if !cmd.Flags().Changed("notes") {
				if notes, err = currentNotes(cmd.Context(), wf, id); err != nil {
					return err
				}
			}
			updated, err := wf.Edit(cmd.Context(), id, date, at, notes)
			if err != nil {
				return quiet(err)
			}
			printAppointments(a.out, []model.Appointment{*updated})
			return nil
		},
	}
	cmd.Flags().String("notes", "", "New notes (kept when omitted)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Set an appointment status (staff only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			status, ok := model.ParseStatus(args[1])
			if !ok {
				return fmt.Errorf("unknown status %q", args[1])
			}
			wf, err := a.workflow(cmd.Context(), false)
			if err != nil {
				return err
			}
			if _, err := wf.ChangeStatus(cmd.Context(), id, status); err != nil {
				return quiet(err)
			}
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			yes, _ := cmd.Flags().GetBool("yes")
			wf, err := a.workflow(cmd.Context(), yes)
			if err != nil {
				return err
			}
			return quiet(wf.Delete(cmd.Context(), id))
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show an appointment as seen by the signed-in user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			wf, err := a.workflow(cmd.Context(), false)
			if err != nil {
				return err
			}
			sel, err := wf.Select(cmd.Context(), id)
			if err != nil {
				return quiet(err)
			}
			switch sel.Action {
			case access.ActionEdit:
				printAppointments(a.out, []model.Appointment{sel.Appointment})
			case access.ActionInfo:
				ev := model.NewCalendarEvent(sel.Appointment, false, true, a.policy.Location())
				printCalendar(a.out, []model.CalendarEvent{ev})
			default:
				fmt.Fprintln(a.out, "Owner unknown; nothing to show.")
			}
			return nil
		},
	}
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue DATE",
		Short: "Show the daily queue (staff only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			date, err := model.ParseDate(args[0], a.policy.Location())
			if err != nil {
				return err
			}
			wf, err := a.workflow(cmd.Context(), false)
			if err != nil {
				return err
			}
			if err := wf.LoadDaily(cmd.Context(), date); err != nil {
				return quiet(err)
			}
			q := wf.View().Daily()

			if path, _ := cmd.Flags().GetString("export"); path != "" {
				return writeFile(path, func(w io.Writer) error { return export.DailyQueue(w, q) })
			}
			printQueue(a.out, q)
			return nil
		},
	}
	cmd.Flags().String("export", "", "Write the queue to an .xlsx file instead of printing it")
	return cmd
}

func cancelDayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel-day DATE",
		Short: "Cancel every appointment on a day (staff only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			date, err := model.ParseDate(args[0], a.policy.Location())
			if err != nil {
				return err
			}
			yes, _ := cmd.Flags().GetBool("yes")
			wf, err := a.workflow(cmd.Context(), yes)
			if err != nil {
				return err
			}
			if err := wf.CancelDay(cmd.Context(), date); err != nil {
				return quiet(err)
			}
			printQueue(a.out, wf.View().Daily())
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func activityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show locally recorded booking activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			since, _ := cmd.Flags().GetDuration("since")
			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := a.db.ListActivity(cmd.Context(), time.Now().Add(-since), limit)
			if err != nil {
				return err
			}

			if path, _ := cmd.Flags().GetString("export"); path != "" {
				return writeFile(path, func(w io.Writer) error { return export.Activity(w, entries) })
			}
			printActivity(a.out, entries)
			return nil
		},
	}
	cmd.Flags().Duration("since", 7*24*time.Hour, "How far back to look")
	cmd.Flags().Int("limit", 100, "Maximum entries")
	cmd.Flags().String("export", "", "Write the log to an .xlsx file instead of printing it")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll notifications, reload clinic hours and serve health and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := a.sessions.Resume(ctx)
			if err != nil {
				return err
			}
			if err := requireStaff(s.Identity); err != nil {
				return err
			}
			client := a.client.WithToken(s)

			if a.cfg.Monitoring.PrometheusEnabled {
				metrics.Register()
				go startMetricsServer(ctx, a.cfg.Monitoring.PrometheusPort, a.logger)
			}
			if a.cfg.Monitoring.HealthCheckPort > 0 {
				go startHealthServer(ctx, a.cfg.Monitoring.HealthCheckPort, a.db, a.rdb, a.logger)
			}

			clinic := config.NewClinicWatcher(a.cfg.ClinicConfigPath, a.policy, a.logger)
			go clinic.Run(ctx, 30*time.Second)

			retention := database.NewRetentionService(a.db, a.cfg.ActivityRetention(), time.Hour, a.logger)
			go retention.Start(ctx)

			p := poller.New(&poller.Config{Interval: a.cfg.PollInterval()}, client.UnreadNotifications, func(n int) {
				metrics.SetUnreadNotifications(n)
				fmt.Fprintf(a.out, "%s unread notifications: %d\n", time.Now().Format(time.TimeOnly), n)
			}, a.logger)
			p.Start(ctx)
			defer p.Stop()

			a.logger.Info().Str("email", s.Identity.Email).Msg("watching")
			<-ctx.Done()
			return nil
		},
	}
}

type appointmentLookup interface {
	Lookup(ctx context.Context, id int64) (*model.Appointment, error)
}

// currentNotes returns the stored notes of id so an edit without --notes keeps them.
func currentNotes(ctx context.Context, wf appointmentLookup, id int64) (string, error) {
	cur, err := wf.Lookup(ctx, id)
	if err != nil {
		return "", errReported{err}
	}
	if cur == nil {
		return "", fmt.Errorf("appointment %d: %w", id, booking.ErrNotFound)
	}
	return cur.Notes, nil
}

func requireStaff(id model.Identity) error {
	if !id.Role.IsStaff() {
		return fmt.Errorf("watch is only available to staff (signed in as %s)", id.Role)
	}
	return nil
}

// quiet drops errors the workflow already reported through the notifier.
func quiet(err error) error {
	if err == nil || errors.Is(err, booking.ErrDeclined) || errors.Is(err, booking.ErrStale) || errors.Is(err, context.Canceled) {
		return nil
	}
	return errReported{err}
}

// errReported marks an error whose message was already printed.
type errReported struct{ error }

func (e errReported) Unwrap() error { return e.error }

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid appointment id %q", s)
	}
	return id, nil
}

func parseSlot(date, clock string, loc *time.Location) (time.Time, model.Clock, error) {
	d, err := model.ParseDate(date, loc)
	if err != nil {
		return time.Time{}, 0, err
	}
	c, err := model.ParseClock(clock)
	if err != nil {
		return time.Time{}, 0, err
	}
	return d, c, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printAppointments(out io.Writer, appts []model.Appointment) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tSTATUS\tTYPE\tPATIENT\tNOTES")
	for _, a := range appts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Date.Format(model.DateLayout), a.Time.Short(), a.Status, a.Type, a.Patient.Name(), a.Notes)
	}
	_ = tw.Flush()
}

func printCalendar(out io.Writer, evs []model.CalendarEvent) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, ev := range evs {
		if ev.IsCurrentUser {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", ev.ID, ev.Start.Format("2006-01-02 15:04"), ev.Title)
	}
	_ = tw.Flush()
}

func printQueue(out io.Writer, q booking.DailyQueue) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Queue for %s\n", q.Date.Format(model.DateLayout))
	fmt.Fprintln(tw, "#\tID\tTIME\tSTATUS\tPATIENT\tNOTES")
	for _, a := range q.Entries {
		num := "-"
		if a.QueueNumber > 0 {
			num = strconv.Itoa(a.QueueNumber)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", num, a.ID, a.Time.Short(), a.Status, a.Patient.Name(), a.Notes)
	}
	counts := q.Counts()
	for _, st := range model.AppointmentStatuses {
		fmt.Fprintf(tw, "%s\t%d\n", st, counts[st])
	}
	_ = tw.Flush()
}

func printActivity(out io.Writer, entries []database.Activity) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tEVENT\tPAYLOAD")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.CreatedAt.Format(time.DateTime), e.EventType, e.Payload)
	}
	_ = tw.Flush()
}
