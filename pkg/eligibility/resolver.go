// Package eligibility previews the connections in an aggregate scope that
// qualify for disconnection and tracks which of them the user picked.
package eligibility

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/scope"
)

// ErrBusy is returned when a preview is requested while one is running.
var ErrBusy = errors.New("eligibility: a preview is already in progress")

// Source computes the candidates. *billing.Client satisfies it.
type Source interface {
	DisconnectionCandidates(ctx context.Context, q connection.Query) ([]connection.Connection, error)
}

// Resolver runs previews one at a time and remembers the last good result.
type Resolver struct {
	src    Source
	logger *zap.Logger

	mu      sync.Mutex
	busy    bool
	current *CandidateSet
	lastErr error
}

// NewResolver returns a resolver over src. logger may be nil.
func NewResolver(src Source, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{src: src, logger: logger}
}

// Resolve asks the service for eligible connections in sel. Thresholds are
// optional and forwarded unchanged. Scope and threshold problems are
// validation faults raised before any call. A failed call keeps the previous
// set.
func (r *Resolver) Resolve(ctx context.Context, sel scope.Selection, minBalance *connection.Threshold, minUnpaidMonths *int) (*CandidateSet, error) {
	return r.run(ctx, connection.Query{Scope: sel, MinBalance: minBalance, MinUnpaidMonths: minUnpaidMonths})
}

// SetQuery resolves q unless it matches the current set's query, in which
// case the current set is returned untouched.
func (r *Resolver) SetQuery(ctx context.Context, q connection.Query) (*CandidateSet, error) {
	r.mu.Lock()
	cur := r.current
	r.mu.Unlock()
	if cur != nil && cur.Query().Equal(q) {
		return cur, nil
	}
	return r.run(ctx, q)
}

// Validate checks the scope of q without calling the service. Threshold
// values are the billing service's to judge.
func Validate(q connection.Query) error {
	if q.Scope.Kind() == scope.Connection {
		return fault.Validationf("eligibility", "a single connection is not a scope; choose a scheme, zone or route")
	}
	if err := scope.Validate(q.Scope, scope.AggregateKinds()...); err != nil {
		return err
	}
	return nil
}

func (r *Resolver) run(ctx context.Context, q connection.Query) (*CandidateSet, error) {
	if err := Validate(q); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		return nil, ErrBusy
	}
	r.busy = true
	r.mu.Unlock()

	items, err := r.src.DisconnectionCandidates(ctx, q)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.busy = false
	if err != nil {
		r.lastErr = fault.Resolution("eligibility.preview", err)
		r.logger.Warn("preview failed", zap.Stringer("scope", q.Scope), zap.Error(err))
		return nil, r.lastErr
	}
	r.lastErr = nil
	r.current = newCandidateSet(q, items)
	r.logger.Debug("preview resolved",
		zap.Stringer("scope", q.Scope), zap.Int("candidates", r.current.Len()))
	return r.current, nil
}

// Busy reports whether a preview is in flight.
func (r *Resolver) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

// Current returns the last successfully resolved set, or nil.
func (r *Resolver) Current() *CandidateSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Err returns the error of the last preview, or nil if it succeeded.
func (r *Resolver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Reset drops the current set.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
	r.lastErr = nil
}
