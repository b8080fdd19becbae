// Package debounce delays lookups until typing pauses.
package debounce

import (
	"context"
	"strings"
	"sync"
	"time"
)

const DefaultWait = 300 * time.Millisecond

// Func runs fn for the latest input once input has been idle for the wait
// period. Newer input cancels both the pending timer and any in-flight call,
// so OnResult only ever sees the result for the most recent input.
type Func[T any] struct {
	wait     time.Duration
	fn       func(ctx context.Context, q string) (T, error)
	onResult func(q string, v T, err error)

	mu     sync.Mutex
	seq    uint64
	timer  *time.Timer
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New[T any](wait time.Duration, fn func(context.Context, string) (T, error), onResult func(string, T, error)) *Func[T] {
	if wait <= 0 {
		wait = DefaultWait
	}
	if onResult == nil {
		onResult = func(string, T, error) {}
	}
	return &Func[T]{wait: wait, fn: fn, onResult: onResult}
}

// Call records new input. Blank input resolves at once to the zero value
// without calling fn.
func (d *Func[T]) Call(ctx context.Context, q string) {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.cancelLocked()

	if strings.TrimSpace(q) == "" {
		d.mu.Unlock()
		var zero T
		d.onResult(q, zero, nil)
		return
	}

	d.wg.Add(1)
	d.timer = time.AfterFunc(d.wait, func() {
		defer d.wg.Done()
		d.run(ctx, seq, q)
	})
	d.mu.Unlock()
}

func (d *Func[T]) cancelLocked() {
	if d.timer != nil {
		if d.timer.Stop() {
			d.wg.Done()
		}
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Func[T]) run(parent context.Context, seq uint64, q string) {
	d.mu.Lock()
	if seq != d.seq {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.timer = nil
	d.mu.Unlock()

	v, err := d.fn(ctx, q)

	d.mu.Lock()
	stale := seq != d.seq
	if !stale {
		d.cancel = nil
	}
	d.mu.Unlock()
	cancel()

	if stale {
		return
	}
	d.onResult(q, v, err)
}

// Cancel drops pending and in-flight work without delivering a result.
func (d *Func[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	d.cancelLocked()
}

// Wait blocks until the pending call, if any, has run and delivered. It
// must not race with Call.
func (d *Func[T]) Wait() { d.wg.Wait() }
