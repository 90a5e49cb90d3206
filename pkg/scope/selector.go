package scope

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"tableflip.dev/wbc/pkg/fault"
)

// ErrNoScope is returned when a submission needs a scope and none is active.
var ErrNoScope = errors.New("scope: no target selected")

// Hierarchy answers parent lookups so the selector can derive the scheme and
// zone above the active variant. location.Hierarchy satisfies it.
type Hierarchy interface {
	SchemeOfZone(zoneID string) (string, bool)
	ZoneOfRoute(routeID string) (string, bool)
}

// Path is the breadcrumb of the active variant, one id per level. Parents
// are derived from the hierarchy and never stored independently.
type Path struct {
	SchemeID     string
	ZoneID       string
	RouteID      string
	ConnectionID string
}

// Change describes a selector transition.
type Change struct {
	Previous       Selection
	Current        Selection
	PreviousFilter Selection
	Filter         Selection
}

// FilterChanged reports whether the browse filter moved.
func (c Change) FilterChanged() bool {
	return c.PreviousFilter != c.Filter
}

// Selector owns the mutual-exclusivity invariant: every mutation goes through
// Set, which replaces the single active variant.
type Selector struct {
	mu     sync.Mutex
	tree   Hierarchy
	active Selection
	filter Selection

	nextSub int
	subs    map[int]func(Change)
}

// NewSelector returns an empty selector. tree may be nil, in which case Path
// reports only the active level.
func NewSelector(tree Hierarchy) *Selector {
	return &Selector{tree: tree, subs: make(map[int]func(Change))}
}

// SetHierarchy swaps the tree used for parent lookups, e.g. after a reload.
func (s *Selector) SetHierarchy(tree Hierarchy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = tree
}

// SetConnection targets a single connection, clearing route, zone and scheme.
// The browse filter keeps the last aggregate selection.
func (s *Selector) SetConnection(id string) { s.Set(OfConnection(id)) }

// SetRoute targets a route, clearing connection, zone and scheme.
func (s *Selector) SetRoute(id string) { s.Set(OfRoute(id)) }

// SetZone targets a zone, clearing connection, route and scheme.
func (s *Selector) SetZone(id string) { s.Set(OfZone(id)) }

// SetScheme targets a scheme. Any zone, route or connection is discarded,
// whether or not it belonged to the new scheme.
func (s *Selector) SetScheme(id string) { s.Set(OfScheme(id)) }

// Clear deactivates every variant and resets the browse filter.
func (s *Selector) Clear() {
	s.mu.Lock()
	change := Change{Previous: s.active, PreviousFilter: s.filter}
	s.active = Selection{}
	s.filter = Selection{}
	subs := s.subscribersLocked()
	s.mu.Unlock()
	notify(subs, change)
}

// Set replaces the active variant with sel. Setting None is the same as
// Clear except that the browse filter survives.
func (s *Selector) Set(sel Selection) {
	s.mu.Lock()
	change := Change{Previous: s.active, PreviousFilter: s.filter}
	s.active = sel
	if sel.IsAggregate() {
		s.filter = sel
	}
	change.Current = s.active
	change.Filter = s.filter
	subs := s.subscribersLocked()
	s.mu.Unlock()
	notify(subs, change)
}

// Selection returns the active variant.
func (s *Selector) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Filter returns the selection used to filter connection lists: the active
// variant when it is aggregate, else the last aggregate set before it.
func (s *Selector) Filter() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active.IsAggregate() {
		return s.active
	}
	return s.filter
}

// Path derives the breadcrumb of the active variant.
func (s *Selector) Path() Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PathOf(s.tree, s.active)
}

// PathOf derives the breadcrumb of sel using tree for parent lookups.
func PathOf(tree Hierarchy, sel Selection) Path {
	var p Path
	switch sel.Kind() {
	case Connection:
		p.ConnectionID = sel.ID()
	case Route:
		p.RouteID = sel.ID()
		if tree != nil {
			p.ZoneID, _ = tree.ZoneOfRoute(p.RouteID)
		}
		if tree != nil && p.ZoneID != "" {
			p.SchemeID, _ = tree.SchemeOfZone(p.ZoneID)
		}
	case Zone:
		p.ZoneID = sel.ID()
		if tree != nil {
			p.SchemeID, _ = tree.SchemeOfZone(p.ZoneID)
		}
	case Scheme:
		p.SchemeID = sel.ID()
	}
	return p
}

// IsValidForSubmit reports whether a variant is active and, when required
// kinds are given, whether it is one of them.
func (s *Selector) IsValidForSubmit(required ...Kind) bool {
	return s.Validate(required...) == nil
}

// Validate is IsValidForSubmit with a reason. The error is a validation
// fault.
func (s *Selector) Validate(required ...Kind) error {
	return Validate(s.Selection(), required...)
}

// Validate checks sel against the required kinds. With no required kinds any
// active variant passes.
func Validate(sel Selection, required ...Kind) error {
	if sel.IsNone() {
		return fault.Validation("scope", ErrNoScope)
	}
	if len(required) == 0 {
		return nil
	}
	for _, k := range required {
		if sel.Kind() == k {
			return nil
		}
	}
	names := make([]string, len(required))
	for i, k := range required {
		names[i] = k.String()
	}
	return fault.Validationf("scope", "%s target not allowed here, expected one of %s",
		sel.Kind(), strings.Join(names, ", "))
}

// Subscribe registers fn for every change and returns a function that
// removes it. fn runs on the goroutine that made the change, after the
// selector lock is released.
func (s *Selector) Subscribe(fn func(Change)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Selector) subscribersLocked() []func(Change) {
	out := make([]func(Change), 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(subs []func(Change), change Change) {
	if change.Current == change.Previous && !change.FilterChanged() {
		return
	}
	for _, fn := range subs {
		fn(change)
	}
}

// GoString helps test failure output.
func (p Path) GoString() string {
	return fmt.Sprintf("scope.Path{scheme:%q zone:%q route:%q connection:%q}",
		p.SchemeID, p.ZoneID, p.RouteID, p.ConnectionID)
}
