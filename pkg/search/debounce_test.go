package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu      sync.Mutex
	calls   []string
	applied []string
	tickets []uint64
	ch      chan string
}

func newRecorder() *recorder { return &recorder{ch: make(chan string, 16)} }

func (r *recorder) apply(ticket uint64, query string, result string, err error) {
	r.mu.Lock()
	r.applied = append(r.applied, result)
	r.tickets = append(r.tickets, ticket)
	r.mu.Unlock()
	r.ch <- result
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...), append([]string(nil), r.applied...)
}

func waitApplied(t *testing.T, r *recorder) string {
	t.Helper()
	select {
	case v := <-r.ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no result applied")
		return ""
	}
}

func TestOnlyLastQueryRuns(t *testing.T) {
	r := newRecorder()
	fn := func(ctx context.Context, q string) (string, error) {
		r.mu.Lock()
		r.calls = append(r.calls, q)
		r.mu.Unlock()
		return "result:" + q, nil
	}
	d := New[string](20*time.Millisecond, fn, r.apply, nil)
	defer d.Close()

	for _, q := range []string{"w", "wb", "wb-0", "wb-00 "} {
		d.Trigger(q)
	}
	assert.Equal(t, "result:wb-00", waitApplied(t, r))

	calls, applied := r.snapshot()
	assert.Equal(t, []string{"wb-00"}, calls)
	assert.Equal(t, []string{"result:wb-00"}, applied)
}

func TestResultCarriesItsTicket(t *testing.T) {
	r := newRecorder()
	fn := func(ctx context.Context, q string) (string, error) { return q, nil }
	d := New[string](time.Millisecond, fn, r.apply, nil)
	defer d.Close()

	first := d.Now("a")
	assert.Equal(t, "a", waitApplied(t, r))
	second := d.Trigger("b")
	assert.Equal(t, "b", waitApplied(t, r))

	assert.NotZero(t, first)
	assert.Greater(t, second, first)
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, []uint64{first, second}, r.tickets)
}

func TestStaleResultIsDropped(t *testing.T) {
	r := newRecorder()
	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(ctx context.Context, q string) (string, error) {
		if q == "slow" {
			close(started)
			<-release // ignores ctx on purpose
		}
		return q, nil
	}
	d := New[string](time.Millisecond, fn, r.apply, nil)
	defer d.Close()

	d.Now("slow")
	<-started
	d.Now("fast")
	assert.Equal(t, "fast", waitApplied(t, r))

	close(release)
	d.Close()
	_, applied := r.snapshot()
	assert.Equal(t, []string{"fast"}, applied)
}

func TestSupersededQueryIsCancelled(t *testing.T) {
	r := newRecorder()
	started := make(chan struct{}, 1)
	cancelled := make(chan struct{})
	fn := func(ctx context.Context, q string) (string, error) {
		if q == "first" {
			started <- struct{}{}
			<-ctx.Done()
			close(cancelled)
			return "", ctx.Err()
		}
		return q, nil
	}
	d := New[string](time.Millisecond, fn, r.apply, nil)
	defer d.Close()

	d.Now("first")
	<-started
	d.Trigger("second")
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("first query was not cancelled")
	}
	assert.Equal(t, "second", waitApplied(t, r))
}

func TestCloseBlocksLateResults(t *testing.T) {
	r := newRecorder()
	started := make(chan struct{})
	fn := func(ctx context.Context, q string) (string, error) {
		close(started)
		<-ctx.Done()
		return "late", nil
	}
	d := New[string](time.Millisecond, fn, r.apply, nil)

	d.Now("q")
	<-started
	d.Close()

	_, applied := r.snapshot()
	assert.Empty(t, applied)

	assert.Zero(t, d.Trigger("after close"))
	assert.Zero(t, d.Now("after close"))
	time.Sleep(10 * time.Millisecond)
	_, applied = r.snapshot()
	assert.Empty(t, applied)
}

func TestDefaultDelay(t *testing.T) {
	d := New[int](0, func(context.Context, string) (int, error) { return 0, nil }, func(uint64, string, int, error) {}, nil)
	defer d.Close()
	require.Equal(t, DefaultDelay, d.delay)
}
