package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"dispensary/internal/api"
	"dispensary/internal/booking"
	"dispensary/internal/config"
	"dispensary/internal/database"
	"dispensary/internal/events"
	"dispensary/internal/metrics"
	"dispensary/internal/session"
	"dispensary/internal/slots"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app holds everything a command needs. It is built once per invocation.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	db       *database.DB
	rdb      *redis.Client
	client   *api.Client
	sessions *session.Manager
	policy   *slots.Holder
	bus      *events.EventBus

	in  io.Reader
	out io.Writer
	err io.Writer
}

func newApp(configPath string, verbose bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	clinic, err := cfg.LoadClinic()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load clinic config: %w", err)
	}
	p, err := clinic.Policy()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	policy := slots.NewHolder(p)

	client := api.NewClient(cfg.API.BaseURL, logger)
	client.SetTimeout(cfg.APITimeout())
	client.SetLocation(p.Location)
	client.UseRateLimit(cfg.API.RateLimitPerSecond, cfg.API.RateBurst)

	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		client.UseRedisCache(rdb, cfg.CacheTTL())
	}

	bus := events.NewEventBus()
	metrics.Subscribe(bus)
	database.RecordEvents(bus, db, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		rdb:      rdb,
		client:   client,
		sessions: session.NewManager(db, client, logger),
		policy:   policy,
		bus:      bus,
		in:       os.Stdin,
		out:      os.Stdout,
		err:      os.Stderr,
	}, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.db.Close()
}

// workflow resumes the saved session and builds a workflow bound to it.
func (a *app) workflow(ctx context.Context, assumeYes bool) (*booking.Workflow, error) {
	s, err := a.sessions.Resume(ctx)
	if err != nil {
		return nil, err
	}
	client := a.client.WithToken(s)

	var confirmer booking.Confirmer = newPrompt(a.in, a.err)
	if assumeYes {
		confirmer = autoConfirm{}
	}
	wf := booking.NewWorkflow(client, booking.Options{
		Identity:          s.Identity,
		Policy:            a.policy,
		Confirmer:         confirmer,
		Notifier:          newConsoleNotifier(a.err),
		Bus:               a.bus,
		StrictTransitions: a.cfg.Booking.StrictTransitions,
	}, a.logger)
	return wf, nil
}
