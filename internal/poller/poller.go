// Package poller refreshes a count on a fixed interval for as long as the
// owning view is alive.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds configuration for the poller.
type Config struct {
	// Interval between fetches. Default: 1 minute.
	Interval time.Duration

	// Timeout bounds a single fetch. Default: 30 seconds.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: time.Minute,
		Timeout:  30 * time.Second,
	}
}

// FetchFunc returns the current count.
type FetchFunc func(ctx context.Context) (int, error)

// Poller runs Fetch immediately on Start and then on every tick until Stop.
type Poller struct {
	config   *Config
	fetch    FetchFunc
	onUpdate func(int)
	logger   zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	last    int
}

// New creates a poller. onUpdate may be nil.
func New(config *Config, fetch FetchFunc, onUpdate func(int), logger zerolog.Logger) *Poller {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Poller{
		config:   config,
		fetch:    fetch,
		onUpdate: onUpdate,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Start begins polling. Calling Start on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.loop(ctx)

	p.logger.Debug().Dur("interval", p.config.Interval).Msg("poller started")
}

// Stop cancels polling and waits for an in-flight fetch to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Debug().Msg("poller stopped")
}

// Last returns the most recent successfully fetched count.
func (p *Poller) Last() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	// Run immediately on start
	p.poll(ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	n, err := p.fetch(fetchCtx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn().Err(err).Msg("poll failed")
		}
		return
	}

	p.mu.Lock()
	p.last = n
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(n)
	}
}
