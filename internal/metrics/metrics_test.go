package metrics

import (
	"testing"

	"dispensary/internal/events"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_CountsEvents(t *testing.T) {
	bus := events.NewEventBus()
	Subscribe(bus)

	before := testutil.ToFloat64(appointmentEvents.WithLabelValues(events.AppointmentBooked))
	require.NoError(t, bus.PublishJSON(events.AppointmentBooked, map[string]int64{"id": 1}))
	assert.Equal(t, before+1, testutil.ToFloat64(appointmentEvents.WithLabelValues(events.AppointmentBooked)))

	beforeStatus := testutil.ToFloat64(statusChanges.WithLabelValues("NO_SHOW"))
	require.NoError(t, bus.PublishJSON(events.AppointmentStatusChanged, map[string]string{"status": "NO_SHOW"}))
	assert.Equal(t, beforeStatus+1, testutil.ToFloat64(statusChanges.WithLabelValues("NO_SHOW")))
}

func TestSetUnreadNotifications(t *testing.T) {
	SetUnreadNotifications(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(unreadNotifications))
}

func TestRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}
