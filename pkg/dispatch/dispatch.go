// Package dispatch creates one task per target concurrently and reports a
// result for every target, in input order, once all of them have settled.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tableflip.dev/wbc/pkg/billing"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/scope"
	"tableflip.dev/wbc/pkg/task"
)

// DefaultConcurrency bounds in-flight creations when none is configured.
const DefaultConcurrency = 4

// Creator creates a single task. *billing.Client satisfies it.
type Creator interface {
	CreateTask(ctx context.Context, req task.CreateRequest, key string) (task.Task, error)
}

// Result is the outcome for one target.
type Result struct {
	Index    int             `json:"index" yaml:"index"`
	Target   scope.Selection `json:"target" yaml:"target"`
	Key      string          `json:"key" yaml:"key"`
	Task     *task.Task      `json:"task,omitempty" yaml:"task,omitempty"`
	Err      error           `json:"-" yaml:"-"`
	Attempts int             `json:"attempts" yaml:"attempts"`
}

// OK reports whether the target got a task.
func (r Result) OK() bool { return r.Err == nil && r.Task != nil }

// Message is the error text, or empty on success.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency bounds in-flight creations. n < 1 means DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n < 1 {
			n = DefaultConcurrency
		}
		d.limit = n
	}
}

// WithRetry turns the single retry of transient failures on or off.
func WithRetry(on bool) Option {
	return func(d *Dispatcher) { d.retry = on }
}

// WithRetryIf replaces the transient-failure test.
func WithRetryIf(fn func(error) bool) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.retryIf = fn
		}
	}
}

// WithRetryDelay sets the pause before a retry.
func WithRetryDelay(delay time.Duration) Option {
	return func(d *Dispatcher) { d.retryDelay = delay }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithKeys replaces the idempotency key generator.
func WithKeys(fn func() string) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.newKey = fn
		}
	}
}

// Dispatcher fans a draft out over targets.
type Dispatcher struct {
	creator    Creator
	limit      int
	retry      bool
	retryIf    func(error) bool
	retryDelay time.Duration
	logger     *zap.Logger
	newKey     func() string
}

// New returns a dispatcher that creates tasks through c.
func New(c Creator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		creator:    c,
		limit:      DefaultConcurrency,
		retry:      true,
		retryIf:    billing.IsTransient,
		retryDelay: 250 * time.Millisecond,
		logger:     zap.NewNop(),
		newKey:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch creates one task per target from draft. The draft's own scope is
// ignored; each request targets exactly one entry of targets. Validation
// problems are returned before any call. Otherwise the returned slice has
// one entry per target, in input order, and a failing target never stops the
// others.
func (d *Dispatcher) Dispatch(ctx context.Context, draft task.Draft, targets []scope.Selection) ([]Result, error) {
	if err := validate(draft, targets); err != nil {
		return nil, err
	}
	results := make([]Result, len(targets))
	for i, t := range targets {
		results[i] = Result{Index: i, Target: t, Key: d.newKey()}
	}
	d.run(ctx, draft, results, all(len(results)))
	return results, nil
}

// DispatchConnections is Dispatch over connection ids.
func (d *Dispatcher) DispatchConnections(ctx context.Context, draft task.Draft, ids []string) ([]Result, error) {
	targets := make([]scope.Selection, len(ids))
	for i, id := range ids {
		targets[i] = scope.OfConnection(strings.TrimSpace(id))
	}
	return d.Dispatch(ctx, draft, targets)
}

// RetryFailed re-runs only the failed entries of previous, reusing their
// idempotency keys. Successful entries are carried over unchanged.
func (d *Dispatcher) RetryFailed(ctx context.Context, draft task.Draft, previous []Result) ([]Result, error) {
	if len(previous) == 0 {
		return nil, fault.Validationf("dispatch", "nothing to retry")
	}
	if err := missing(draft); err != nil {
		return nil, err
	}
	results := make([]Result, len(previous))
	copy(results, previous)
	var failed []int
	for i := range results {
		results[i].Index = i
		if !results[i].OK() {
			results[i].Err = nil
			results[i].Attempts = 0
			if results[i].Key == "" {
				results[i].Key = d.newKey()
			}
			failed = append(failed, i)
		}
	}
	d.run(ctx, draft, results, failed)
	return results, nil
}

func all(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func (d *Dispatcher) run(ctx context.Context, draft task.Draft, results []Result, which []int) {
	start := time.Now()
	var g errgroup.Group
	g.SetLimit(d.limit)
	for _, i := range which {
		r := &results[i]
		g.Go(func() error {
			d.one(ctx, draft, r)
			return nil
		})
	}
	// Items never return errors to the group so one failure cannot cancel
	// the rest; Wait is only the join barrier.
	_ = g.Wait()

	s := Summarize(results)
	d.logger.Info("dispatch settled",
		zap.Int("total", s.Total),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
		zap.Duration("took", time.Since(start)))
}

func (d *Dispatcher) one(ctx context.Context, draft task.Draft, r *Result) {
	req := draft.WithScope(r.Target).Request()
	for {
		if err := ctx.Err(); err != nil {
			r.Err = fault.Dispatch(r.Target.String(), err)
			return
		}
		r.Attempts++
		created, err := d.creator.CreateTask(ctx, req, r.Key)
		if err == nil {
			r.Task = &created
			r.Err = nil
			return
		}
		r.Err = fault.Dispatch(r.Target.String(), err)
		d.logger.Debug("dispatch item failed",
			zap.Stringer("target", r.Target),
			zap.Int("attempt", r.Attempts),
			zap.Error(err))
		if !d.retry || r.Attempts > 1 || !d.retryIf(err) {
			return
		}
		if d.retryDelay > 0 {
			t := time.NewTimer(d.retryDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				r.Err = fault.Dispatch(r.Target.String(), ctx.Err())
				return
			case <-t.C:
			}
		}
	}
}

func missing(draft task.Draft) error {
	if m := draft.Missing(); len(m) > 0 {
		return fault.Validationf("dispatch", "missing %s", strings.Join(m, ", "))
	}
	return nil
}

func validate(draft task.Draft, targets []scope.Selection) error {
	if len(targets) == 0 {
		return fault.Validationf("dispatch", "no targets selected")
	}
	if err := missing(draft); err != nil {
		return err
	}
	seen := make(map[scope.Selection]int, len(targets))
	for i, t := range targets {
		if t.IsNone() {
			return fault.Validationf("dispatch", "target %d is empty", i+1)
		}
		if j, dup := seen[t]; dup {
			return fault.Validationf("dispatch", "target %s is listed twice (%d and %d)", t, j+1, i+1)
		}
		seen[t] = i
	}
	return nil
}

// Outcome classifies a settled dispatch.
type Outcome string

const (
	OutcomeFull    Outcome = "full"
	OutcomePartial Outcome = "partial"
	OutcomeNone    Outcome = "none"
)

// Summary counts a settled dispatch.
type Summary struct {
	Total        int     `json:"total" yaml:"total"`
	Succeeded    int     `json:"succeeded" yaml:"succeeded"`
	Failed       int     `json:"failed" yaml:"failed"`
	Outcome      Outcome `json:"outcome" yaml:"outcome"`
	Unauthorized bool    `json:"unauthorized,omitempty" yaml:"unauthorized,omitempty"`
}

// Summarize counts results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.OK() {
			s.Succeeded++
			continue
		}
		s.Failed++
		if fault.IsAuthorization(r.Err) {
			s.Unauthorized = true
		}
	}
	switch {
	case s.Total > 0 && s.Failed == 0:
		s.Outcome = OutcomeFull
	case s.Succeeded > 0:
		s.Outcome = OutcomePartial
	default:
		s.Outcome = OutcomeNone
	}
	return s
}

func (s Summary) String() string {
	if s.Failed == 0 {
		return fmt.Sprintf("created %d of %d", s.Succeeded, s.Total)
	}
	return fmt.Sprintf("created %d of %d; %d failed", s.Succeeded, s.Total, s.Failed)
}

// Err returns nil when every target succeeded, otherwise a dispatch fault
// naming the failed count. Authorization failures surface as such.
func (s Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	err := errors.New(s.String())
	if s.Unauthorized {
		return fault.Authorization("dispatch", err)
	}
	return fault.Dispatch("dispatch", err)
}

// Failed returns the failed results.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}
