// Package search debounces free-text lookups: only the newest query runs once
// typing pauses, and results of superseded queries are dropped.
package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDelay is the pause after the last keystroke before a lookup runs.
const DefaultDelay = 500 * time.Millisecond

// Func performs one lookup. ctx is cancelled when the query is superseded or
// the debouncer closes.
type Func[T any] func(ctx context.Context, query string) (T, error)

// ApplyFunc receives the result of the newest query along with the ticket
// Trigger or Now returned for it. The debouncer drops results it knows are
// stale, but a newer query can still be scheduled while apply waits on the
// consumer's own lock; consumers that schedule under that lock compare the
// ticket there. It must not call Close.
type ApplyFunc[T any] func(ticket uint64, query string, result T, err error)

// Debouncer runs Func for the latest query only.
type Debouncer[T any] struct {
	delay  time.Duration
	fn     Func[T]
	apply  ApplyFunc[T]
	logger *zap.Logger

	applyMu sync.Mutex // held while apply runs; Close takes it to wait out an apply

	mu     sync.Mutex
	gen    uint64
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// New returns a debouncer. delay <= 0 means DefaultDelay.
func New[T any](delay time.Duration, fn Func[T], apply ApplyFunc[T], logger *zap.Logger) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer[T]{delay: delay, fn: fn, apply: apply, logger: logger}
}

// Trigger schedules query after the debounce delay, superseding anything
// scheduled or running. It returns the ticket its result will carry, or 0
// once closed.
func (d *Debouncer[T]) Trigger(query string) uint64 {
	return d.schedule(query, d.delay)
}

// Now runs query immediately, superseding anything scheduled or running.
func (d *Debouncer[T]) Now(query string) uint64 {
	return d.schedule(query, 0)
}

func (d *Debouncer[T]) schedule(query string, delay time.Duration) uint64 {
	query = strings.TrimSpace(query)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}
	d.supersedeLocked()
	gen := d.gen
	d.timer = time.AfterFunc(delay, func() { d.fire(gen, query) })
	return gen
}

// supersedeLocked invalidates the scheduled and running queries.
func (d *Debouncer[T]) supersedeLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Debouncer[T]) fire(gen uint64, query string) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.wg.Add(1)
	d.mu.Unlock()
	defer d.wg.Done()
	defer cancel()

	result, err := d.fn(ctx, query)

	d.applyMu.Lock()
	defer d.applyMu.Unlock()
	d.mu.Lock()
	current := !d.closed && gen == d.gen
	d.mu.Unlock()
	if !current {
		d.logger.Debug("dropping stale search result", zap.String("query", query))
		return
	}
	d.apply(gen, query, result, err)
}

// Cancel drops the scheduled and running queries without closing.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.supersedeLocked()
}

// Close cancels outstanding work and waits for it. No result is applied
// after Close returns.
func (d *Debouncer[T]) Close() {
	d.applyMu.Lock()
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.applyMu.Unlock()
		return
	}
	d.closed = true
	d.supersedeLocked()
	d.mu.Unlock()
	d.applyMu.Unlock()
	d.wg.Wait()
}
