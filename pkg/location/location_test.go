package location

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/scope"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sampleTree() []Scheme {
	return []Scheme{
		{ID: "S1", Name: "Northern", Zones: []Zone{
			{ID: "Z1", Name: "Hillside", Routes: []Route{{ID: "R1", Name: "Route 1"}, {ID: "R2", Name: "Route 2"}}},
			{ID: "Z2", Name: "Riverside"},
		}},
		{ID: "S2", Name: "Southern", Zones: []Zone{
			{ID: "Z3", Name: "Market", Routes: []Route{{ID: "R3", Name: "Route 3"}}},
		}},
	}
}

func TestHierarchyLookups(t *testing.T) {
	h := NewHierarchy(sampleTree())

	zones := h.ZonesOf("S1")
	require.Len(t, zones, 2)
	assert.Equal(t, "S1", zones[0].SchemeID, "parent id filled from position")

	routes := h.RoutesOf("Z1")
	require.Len(t, routes, 2)
	assert.Equal(t, "Z1", routes[1].ZoneID)

	s, ok := h.SchemeOfZone("Z3")
	assert.True(t, ok)
	assert.Equal(t, "S2", s)

	z, ok := h.ZoneOfRoute("R2")
	assert.True(t, ok)
	assert.Equal(t, "Z1", z)

	assert.Equal(t, "Hillside", h.Name(scope.OfZone("Z1")))
	assert.Equal(t, "Z404", h.Name(scope.OfZone("Z404")))
}

func TestHierarchyUnknownIdsReturnEmpty(t *testing.T) {
	h := NewHierarchy(sampleTree())
	assert.NotNil(t, h.ZonesOf("nope"))
	assert.Empty(t, h.ZonesOf("nope"))
	assert.Empty(t, h.ZonesOf(""))
	assert.Empty(t, h.RoutesOf("nope"))

	var nilTree *Hierarchy
	assert.True(t, nilTree.Empty())
	assert.Empty(t, nilTree.ZonesOf("S1"))
	assert.Empty(t, nilTree.RoutesOf("Z1"))
	_, ok := nilTree.SchemeOfZone("Z1")
	assert.False(t, ok)
}

func TestHierarchyIsImmutable(t *testing.T) {
	h := NewHierarchy(sampleTree())
	zones := h.ZonesOf("S1")
	zones[0].Name = "mutated"
	zones[0].Routes[0].Name = "mutated"
	fresh := h.ZonesOf("S1")
	assert.Equal(t, "Hillside", fresh[0].Name)
	assert.Equal(t, "Route 1", fresh[0].Routes[0].Name)
}

func TestHierarchyContains(t *testing.T) {
	h := NewHierarchy(sampleTree())
	assert.True(t, h.Contains(scope.OfScheme("S1"), scope.OfZone("Z1")))
	assert.True(t, h.Contains(scope.OfScheme("S1"), scope.OfRoute("R2")))
	assert.True(t, h.Contains(scope.OfZone("Z1"), scope.OfRoute("R1")))
	assert.True(t, h.Contains(scope.OfZone("Z1"), scope.OfZone("Z1")))
	assert.False(t, h.Contains(scope.OfScheme("S2"), scope.OfZone("Z1")))
	assert.False(t, h.Contains(scope.OfZone("Z1"), scope.OfZone("Z2")))
	assert.False(t, h.Contains(scope.OfScheme("S1"), scope.OfConnection("C1")))
}

func TestHierarchyDropsBlankAndDuplicateIds(t *testing.T) {
	h := NewHierarchy([]Scheme{
		{ID: "S1", Zones: []Zone{{ID: ""}, {ID: "Z1"}}},
		{ID: "S1", Name: "duplicate"},
		{ID: " "},
	})
	got := h.Schemes()
	want := []Scheme{{ID: "S1", Zones: []Zone{{ID: "Z1", SchemeID: "S1"}}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected schemes (-want +got):\n%s", diff)
	}
}

type countingFetcher struct {
	calls   atomic.Int32
	fail    atomic.Bool
	gate    chan struct{}
	started chan struct{}
}

func (f *countingFetcher) FetchSchemes(ctx context.Context) ([]Scheme, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail.Load() {
		return nil, errors.New("connection refused")
	}
	return sampleTree(), nil
}

func TestCacheLoadsOnce(t *testing.T) {
	f := &countingFetcher{gate: make(chan struct{})}
	c := NewCache(f)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := c.Load(context.Background())
			assert.NoError(t, err)
			assert.False(t, tree.Empty())
		}()
	}
	close(f.gate)
	wg.Wait()

	_, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, f.calls.Load(), int32(8))
	before := f.calls.Load()
	_, _ = c.Load(context.Background())
	assert.Equal(t, before, f.calls.Load(), "cached tree served without fetching")
	assert.Len(t, c.ZonesOf("S1"), 2)
}

func TestCacheLoadOutlivesCancelledCaller(t *testing.T) {
	f := &countingFetcher{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	c := NewCache(f)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Load(ctx)
		first <- err
	}()
	<-f.started

	second := make(chan *Hierarchy, 1)
	go func() {
		tree, err := c.Load(context.Background())
		assert.NoError(t, err)
		second <- tree
	}()

	cancel()
	err := <-first
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, fault.Is(err, fault.KindResolution))

	close(f.gate)
	tree := <-second
	assert.False(t, tree.Empty())
	assert.True(t, c.Loaded())
	assert.NoError(t, c.Err())
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestCacheFailureDegradesToEmpty(t *testing.T) {
	f := &countingFetcher{}
	f.fail.Store(true)
	c := NewCache(f)

	tree, err := c.Load(context.Background())
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindResolution))
	assert.True(t, tree.Empty())
	assert.Empty(t, c.ZonesOf("S1"))
	assert.Error(t, c.Err())
	assert.False(t, c.Loaded())

	f.fail.Store(false)
	tree, err = c.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, tree.Empty())
	assert.NoError(t, c.Err())
	assert.Equal(t, int32(2), f.calls.Load())
}

type memorySnapshots struct {
	mu   sync.Mutex
	data map[string][]Scheme
}

func (m *memorySnapshots) LoadHierarchy(session string) ([]Scheme, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[session]
	return s, ok, nil
}

func (m *memorySnapshots) SaveHierarchy(session string, schemes []Scheme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[session] = schemes
	return nil
}

func (m *memorySnapshots) ForgetHierarchy(session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, session)
	return nil
}

func TestCacheSessionSnapshotsAndInvalidation(t *testing.T) {
	snaps := &memorySnapshots{data: map[string][]Scheme{}}
	f := &countingFetcher{}

	first := NewCache(f, WithSnapshots(snaps), WithSession("sess-a"))
	_, err := first.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load())

	// A second process in the same session reads the snapshot.
	second := NewCache(f, WithSnapshots(snaps), WithSession("sess-a"))
	tree, err := second.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, tree.Empty())
	assert.Equal(t, int32(1), f.calls.Load())

	second.SetSession("sess-a")
	assert.True(t, second.Loaded(), "same session keeps the tree")

	second.SetSession("sess-b")
	assert.False(t, second.Loaded())
	assert.True(t, second.Hierarchy().Empty())
	_, ok, _ := snaps.LoadHierarchy("sess-a")
	assert.False(t, ok, "old session snapshot forgotten")

	_, err = second.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())

	second.Invalidate()
	_, ok, _ = snaps.LoadHierarchy("sess-b")
	assert.False(t, ok)
}
