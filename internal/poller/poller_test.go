package poller

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_RunsImmediatelyAndOnTick(t *testing.T) {
	var calls atomic.Int32
	updates := make(chan int, 10)

	p := New(&Config{Interval: 10 * time.Millisecond}, func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, func(n int) {
		select {
		case updates <- n:
		default:
		}
	}, zerolog.New(io.Discard))

	p.Start(context.Background())
	p.Start(context.Background()) // no second loop

	select {
	case n := <-updates:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("no immediate poll")
	}

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	p.Stop()

	stopped := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())
	assert.Equal(t, int(stopped), p.Last())
}

func TestPoller_StopCancelsInFlightFetch(t *testing.T) {
	entered := make(chan struct{})
	p := New(&Config{Interval: time.Hour}, func(ctx context.Context) (int, error) {
		close(entered)
		<-ctx.Done()
		return 0, ctx.Err()
	}, nil, zerolog.New(io.Discard))

	p.Start(context.Background())
	<-entered

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	p.Stop() // idempotent
}

func TestPoller_ErrorKeepsLastValue(t *testing.T) {
	var calls atomic.Int32
	p := New(&Config{Interval: 5 * time.Millisecond}, func(context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 7, nil
		}
		return 0, errors.New("backend down")
	}, nil, zerolog.New(io.Discard))

	p.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	p.Stop()

	assert.Equal(t, 7, p.Last())
}

func TestPoller_ParentContextCancel(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	p := New(&Config{Interval: 5 * time.Millisecond}, func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}, nil, zerolog.New(io.Discard))

	p.Start(ctx)
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)
	cancel()
	p.Stop()
}

func TestNew_Defaults(t *testing.T) {
	p := New(nil, nil, nil, zerolog.New(io.Discard))
	assert.Equal(t, time.Minute, p.config.Interval)
	assert.Equal(t, 30*time.Second, p.config.Timeout)
}
