// Package poll refreshes remote lists on a fixed interval.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is used when a poller is created with a non-positive interval.
const DefaultInterval = 4 * time.Second

var ErrRunning = errors.New("poller already running")

// Poller calls Fetch immediately and then every Interval, handing each
// successful result to OnUpdate. Results are published in fetch order.
type Poller[T any] struct {
	Logger *slog.Logger

	interval time.Duration
	fetch    func(context.Context) (T, error)
	onUpdate func(T)

	// fetchMu serializes fetch+publish so a slow tick cannot overwrite a
	// newer refresh.
	fetchMu sync.Mutex

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func New[T any](interval time.Duration, fetch func(context.Context) (T, error), onUpdate func(T)) *Poller[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if onUpdate == nil {
		onUpdate = func(T) {}
	}
	return &Poller[T]{interval: interval, fetch: fetch, onUpdate: onUpdate}
}

func (p *Poller[T]) Interval() time.Duration { return p.interval }

func (p *Poller[T]) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Start performs the first fetch synchronously and returns its error.
// Polling continues in the background either way until ctx is done or Stop
// is called; later fetch errors are only logged.
func (p *Poller[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrRunning
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	stop, done := p.stop, p.done
	p.mu.Unlock()

	err := p.Refresh(ctx)
	go p.loop(ctx, stop, done)
	return err
}

// Refresh fetches and publishes outside the regular schedule.
func (p *Poller[T]) Refresh(ctx context.Context) error {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	v, err := p.fetch(ctx)
	if err != nil {
		return err
	}
	p.onUpdate(v)
	return nil
}

func (p *Poller[T]) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.markStopped(stop)
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
				p.logger().Debug("poll failed", "err", err)
			}
		}
	}
}

func (p *Poller[T]) markStopped(stop <-chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == stop {
		p.running = false
	}
}

// Stop ends polling and waits for the loop to exit. It must not be called
// from OnUpdate.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if !p.running {
		done := p.done
		p.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	p.running = false
	close(p.stop)
	done := p.done
	p.mu.Unlock()
	<-done
}

func (p *Poller[T]) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
