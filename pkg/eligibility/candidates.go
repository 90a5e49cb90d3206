package eligibility

import (
	"fmt"
	"sync"

	"tableflip.dev/wbc/pkg/connection"
)

// CandidateSet is one resolved list of eligible connections plus the user's
// selection over it. The list is fixed; only the selection changes.
type CandidateSet struct {
	query connection.Query
	items []connection.Connection
	index map[string]int

	mu       sync.Mutex
	selected map[string]struct{}
}

func newCandidateSet(q connection.Query, items []connection.Connection) *CandidateSet {
	cs := &CandidateSet{
		query:    q,
		index:    make(map[string]int, len(items)),
		selected: make(map[string]struct{}),
	}
	for _, c := range items {
		if c.ID == "" {
			continue
		}
		if _, dup := cs.index[c.ID]; dup {
			continue
		}
		cs.index[c.ID] = len(cs.items)
		cs.items = append(cs.items, c)
	}
	return cs
}

// Clone returns a set over the same candidates with its own copy of the
// selection. The candidate list is shared and never modified.
func (cs *CandidateSet) Clone() *CandidateSet {
	if cs == nil {
		return nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	selected := make(map[string]struct{}, len(cs.selected))
	for id := range cs.selected {
		selected[id] = struct{}{}
	}
	return &CandidateSet{query: cs.query, items: cs.items, index: cs.index, selected: selected}
}

// Query returns the request that produced the set.
func (cs *CandidateSet) Query() connection.Query {
	if cs == nil {
		return connection.Query{}
	}
	return cs.query
}

// Items returns the candidates in service order.
func (cs *CandidateSet) Items() []connection.Connection {
	if cs == nil {
		return nil
	}
	return append([]connection.Connection(nil), cs.items...)
}

// Len is the number of candidates.
func (cs *CandidateSet) Len() int {
	if cs == nil {
		return 0
	}
	return len(cs.items)
}

// IsEmpty reports the explicit "no eligible connections" state.
func (cs *CandidateSet) IsEmpty() bool { return cs.Len() == 0 }

// Get returns the candidate with id.
func (cs *CandidateSet) Get(id string) (connection.Connection, bool) {
	if cs == nil {
		return connection.Connection{}, false
	}
	i, ok := cs.index[id]
	if !ok {
		return connection.Connection{}, false
	}
	return cs.items[i], true
}

// Toggle flips the selection of id and reports whether it is now selected.
// Ids outside the set are rejected.
func (cs *CandidateSet) Toggle(id string) (bool, error) {
	if _, ok := cs.Get(id); !ok {
		return false, fmt.Errorf("eligibility: %q is not a candidate", id)
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, on := cs.selected[id]; on {
		delete(cs.selected, id)
		return false, nil
	}
	cs.selected[id] = struct{}{}
	return true, nil
}

// Select marks ids as selected. Unknown ids are reported and nothing changes.
func (cs *CandidateSet) Select(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if _, ok := cs.Get(id); !ok {
			return fmt.Errorf("eligibility: %q is not a candidate", id)
		}
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, id := range ids {
		cs.selected[id] = struct{}{}
	}
	return nil
}

// SelectAll selects every candidate.
func (cs *CandidateSet) SelectAll() {
	if cs == nil {
		return
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, c := range cs.items {
		cs.selected[c.ID] = struct{}{}
	}
}

// ClearSelection deselects everything.
func (cs *CandidateSet) ClearSelection() {
	if cs == nil {
		return
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.selected = make(map[string]struct{})
}

// IsSelected reports whether id is selected.
func (cs *CandidateSet) IsSelected(id string) bool {
	if cs == nil {
		return false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	_, on := cs.selected[id]
	return on
}

// SelectedIDs returns the selected ids in candidate order.
func (cs *CandidateSet) SelectedIDs() []string {
	sel := cs.Selected()
	out := make([]string, len(sel))
	for i, c := range sel {
		out[i] = c.ID
	}
	return out
}

// Selected returns the selected candidates in candidate order.
func (cs *CandidateSet) Selected() []connection.Connection {
	if cs == nil {
		return nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]connection.Connection, 0, len(cs.selected))
	for _, c := range cs.items {
		if _, on := cs.selected[c.ID]; on {
			out = append(out, c)
		}
	}
	return out
}

// CanProceed is true when at least one candidate is selected.
func (cs *CandidateSet) CanProceed() bool {
	if cs == nil {
		return false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.selected) > 0
}
