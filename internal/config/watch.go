package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"dispensary/internal/slots"

	"github.com/rs/zerolog"
)

// ClinicWatcher keeps a slots.Holder in sync with the clinic hours file.
// A file that fails to parse or validate is reported once and the previous
// policy stays in effect until the file changes again.
type ClinicWatcher struct {
	path   string
	holder *slots.Holder
	logger zerolog.Logger

	mu      sync.Mutex
	modTime time.Time
	size    int64
}

func NewClinicWatcher(path string, holder *slots.Holder, logger zerolog.Logger) *ClinicWatcher {
	if path == "" {
		path = "configs/clinic.yaml"
	}
	return &ClinicWatcher{
		path:   path,
		holder: holder,
		logger: logger.With().Str("component", "clinic_watch").Str("path", path).Logger(),
	}
}

// Reload applies the file when it changed since the last attempt and reports
// whether the policy was swapped.
func (w *ClinicWatcher) Reload() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}
	if info.ModTime().Equal(w.modTime) && info.Size() == w.size {
		return false, nil
	}
	w.modTime, w.size = info.ModTime(), info.Size()

	cfg, err := LoadClinicConfig(w.path)
	if err != nil {
		return false, err
	}
	p, err := cfg.Policy()
	if err != nil {
		return false, err
	}
	w.holder.Store(p)
	w.logger.Info().
		Str("open", p.Open.Short()).
		Str("close", p.Close.Short()).
		Int("holidays", len(p.Holidays)).
		Msg("clinic config applied")
	return true, nil
}

// Run reloads immediately and then on every interval until ctx is done.
func (w *ClinicWatcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.Reload(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				w.logger.Debug().Msg("clinic config not found, keeping current policy")
			} else {
				w.logger.Error().Err(err).Msg("clinic config rejected, keeping current policy")
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
