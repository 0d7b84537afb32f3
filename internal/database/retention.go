package database

import (
	"context"
	"time"

	"dispensary/internal/events"

	"github.com/rs/zerolog"
)

// RecordEvents stores every appointment event published on bus in the activity log.
func RecordEvents(bus *events.EventBus, db *DB, logger zerolog.Logger) {
	for _, t := range []string{
		events.AppointmentBooked,
		events.AppointmentEdited,
		events.AppointmentStatusChanged,
		events.AppointmentDeleted,
		events.DayCancelled,
	} {
		bus.Subscribe(t, func(e events.Event) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.RecordActivity(ctx, e.Type, string(e.Payload), e.CreatedAt); err != nil {
				logger.Warn().Err(err).Str("event", e.Type).Msg("failed to record activity")
				return err
			}
			return nil
		})
	}
}

// RetentionService periodically drops activity older than the retention window.
type RetentionService struct {
	db        *DB
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

func NewRetentionService(db *DB, retention, interval time.Duration, logger zerolog.Logger) *RetentionService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &RetentionService{
		db:        db,
		retention: retention,
		interval:  interval,
		logger:    logger.With().Str("component", "retention").Logger(),
	}
}

// Start runs cleanup immediately and then on every interval until ctx is done.
func (s *RetentionService) Start(ctx context.Context) {
	if s.retention <= 0 {
		s.logger.Info().Msg("activity retention is disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Cleanup(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup(ctx)
		}
	}
}

// Cleanup deletes expired activity entries once.
func (s *RetentionService) Cleanup(ctx context.Context) {
	n, err := s.db.DeleteOldActivity(ctx, s.retention)
	if err != nil {
		s.logger.Error().Err(err).Msg("activity cleanup failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Msg("deleted old activity")
	}
}
