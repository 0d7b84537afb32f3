package metrics

import (
	"sync"
	"time"

	"dispensary/internal/events"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	appointmentEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispensary",
			Name:      "appointment_events_total",
			Help:      "Count of appointment changes made through the client, by event type.",
		},
		[]string{"type"},
	)

	statusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispensary",
			Name:      "status_changes_total",
			Help:      "Count of status changes by target status.",
		},
		[]string{"status"},
	)

	apiRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispensary",
			Name:      "api_request_duration_seconds",
			Help:      "Backend request latency by method, endpoint and status code.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "code"},
	)

	unreadNotifications = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dispensary",
			Name:      "unread_notifications",
			Help:      "Unread notification count from the last poll.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(appointmentEvents, statusChanges, apiRequests, unreadNotifications)
	})
}

// Subscribe counts workflow events published on bus.
func Subscribe(bus *events.EventBus) {
	for _, t := range []string{
		events.AppointmentBooked,
		events.AppointmentEdited,
		events.AppointmentDeleted,
		events.DayCancelled,
	} {
		bus.Subscribe(t, func(e events.Event) error {
			appointmentEvents.WithLabelValues(e.Type).Inc()
			return nil
		})
	}
	bus.Subscribe(events.AppointmentStatusChanged, func(e events.Event) error {
		appointmentEvents.WithLabelValues(e.Type).Inc()
		var p struct {
			Status string `json:"status"`
		}
		if err := e.Decode(&p); err != nil {
			return err
		}
		statusChanges.WithLabelValues(p.Status).Inc()
		return nil
	})
}

func ObserveRequest(method, endpoint, code string, d time.Duration) {
	apiRequests.WithLabelValues(method, endpoint, code).Observe(d.Seconds())
}

func SetUnreadNotifications(n int) {
	unreadNotifications.Set(float64(n))
}
