package wizard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tableflip.dev/wbc/pkg/billing/billingtest"
	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/location"
	"tableflip.dev/wbc/pkg/scope"
	"tableflip.dev/wbc/pkg/task"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

type harness struct {
	srv *billingtest.Server
	cfg Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	f := billingtest.Sample()
	f.Tasks = []task.Task{{ID: "T1", Title: "Read meter", TypeID: "t-read", AssigneeID: "u1"}}
	srv := billingtest.New(f)
	t.Cleanup(srv.Close)
	client := srv.Client()
	return &harness{
		srv: srv,
		cfg: Config{
			Hierarchy:   location.NewCache(client),
			Connections: client,
			Tasks:       client,
			Debounce:    5 * time.Millisecond,
			Keys:        func() string { return "fixed-key" },
		},
	}
}

func wait(t *testing.T, w *Wizard) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Wait(ctx))
}

func fillDetails(t *testing.T, w *Wizard) {
	t.Helper()
	require.NoError(t, w.Edit(func(d *task.Draft) {
		d.Title = "Disconnect arrears"
		d.TypeID = "t-disc"
		d.AssigneeID = "u1"
		d.Priority = task.PriorityHigh
	}))
}

func ids(conns []connection.Connection) []string {
	out := make([]string, len(conns))
	for i, c := range conns {
		out[i] = c.ID
	}
	return out
}

func TestDetailsGateKeepsStageAndData(t *testing.T) {
	h := newHarness(t)
	w := NewCreate(context.Background(), h.cfg)
	defer w.Close()

	require.NoError(t, w.Edit(func(d *task.Draft) { d.Title = "Only a title" }))
	stage, err := w.Next()
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindValidation))
	assert.Contains(t, err.Error(), "type, assignee")
	assert.Equal(t, StageDetails, stage)
	assert.Equal(t, StageDetails, w.Stage())
	assert.Equal(t, "Only a title", w.Draft().Title)
	assert.Empty(t, h.srv.Requests(), "validation never reaches the network")
}

func TestScopeStageLoadsHierarchyAndCascades(t *testing.T) {
	h := newHarness(t)
	w := NewCreate(context.Background(), h.cfg)
	defer w.Close()
	fillDetails(t, w)

	stage, err := w.Next()
	require.NoError(t, err)
	require.Equal(t, StageScope, stage)
	wait(t, w)

	require.Len(t, w.Schemes(), 2)
	assert.Empty(t, w.Zones())

	require.NoError(t, w.SelectScheme("S1"))
	require.Len(t, w.Zones(), 1)
	require.NoError(t, w.SelectZone("Z1"))
	require.NoError(t, w.SelectRoute("R1"))
	assert.Equal(t, scope.Path{SchemeID: "S1", ZoneID: "Z1", RouteID: "R1"}, w.Path())
	assert.Len(t, w.Routes(), 2)

	require.NoError(t, w.SelectScheme("S2"))
	assert.Equal(t, scope.OfScheme("S2"), w.Selection())
	assert.Equal(t, scope.Path{SchemeID: "S2"}, w.Path())
	assert.Equal(t, "Z2", w.Zones()[0].ID)
	assert.Empty(t, w.Routes())

	err = w.SelectZone("Z404")
	assert.True(t, fault.Is(err, fault.KindValidation))
	assert.Equal(t, scope.OfScheme("S2"), w.Selection())

	// Going back and forth keeps everything.
	assert.Equal(t, StageDetails, w.Back())
	assert.Equal(t, StageDetails, w.Back())
	assert.Equal(t, "Disconnect arrears", w.Draft().Title)
	_, err = w.Next()
	require.NoError(t, err)
	assert.Equal(t, scope.OfScheme("S2"), w.Selection())
	assert.Len(t, h.srv.RequestsTo("/api/schemes"), 1, "tree is fetched once")
}

func TestConnectionStageRefetchesOnScopeAndSearch(t *testing.T) {
	h := newHarness(t)
	w := NewCreate(context.Background(), h.cfg)
	defer w.Close()
	fillDetails(t, w)

	_, err := w.Next()
	require.NoError(t, err)
	wait(t, w)
	require.NoError(t, w.SelectZone("Z1"))

	stage, err := w.Next()
	require.NoError(t, err)
	require.Equal(t, StageConnection, stage)
	wait(t, w)

	conns, err := w.Connections()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"C1", "C2", "C3", "C5"}, ids(conns))

	require.NoError(t, w.SelectRoute("R1"))
	wait(t, w)
	conns, _ = w.Connections()
	assert.ElementsMatch(t, []string{"C1", "C2"}, ids(conns))

	w.SetSearch("0002")
	wait(t, w)
	conns, _ = w.Connections()
	assert.Equal(t, []string{"C2"}, ids(conns))

	// Picking from the list does not re-filter it.
	before := len(h.srv.RequestsTo("/api/connections"))
	require.NoError(t, w.SelectConnection("C2"))
	wait(t, w)
	assert.Len(t, h.srv.RequestsTo("/api/connections"), before)
	assert.Equal(t, scope.Path{SchemeID: "S1", ZoneID: "Z1", RouteID: "R1", ConnectionID: "C2"}, w.Path())

	last := h.srv.RequestsTo("/api/connections")
	q := last[len(last)-1].Query
	assert.Equal(t, "R1", q.Get("route_id"))
	assert.Equal(t, "0002", q.Get("search"))

	got, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "C2", got.ConnectionID)
	assert.Equal(t, StageSubmitted, w.Stage())

	created := h.srv.Created()
	require.Len(t, created, 1)
	assert.Equal(t, scope.Fields{ConnectionID: "C2"}, created[0].Fields)
	assert.Equal(t, task.PriorityHigh, created[0].Priority)
	assert.Equal(t, "fixed-key", h.srv.RequestsTo("/api/tasks")[0].IdempotencyKey)

	_, err = w.Next()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, w.Edit(func(d *task.Draft) {}), ErrClosed)
}

func TestSupersededSearchResultIsDropped(t *testing.T) {
	h := newHarness(t)
	h.cfg.Debounce = 300 * time.Millisecond
	w := NewCreate(context.Background(), h.cfg)
	defer w.Close()
	fillDetails(t, w)

	_, err := w.Next()
	require.NoError(t, err)
	wait(t, w)
	require.NoError(t, w.SelectZone("Z1"))
	require.NoError(t, w.SelectRoute("R1"))
	_, err = w.Next()
	require.NoError(t, err)
	wait(t, w)

	// A result that got past the debouncer just before the next keystroke.
	w.SetSearch("0002")
	w.mu.Lock()
	stale := w.connsTicket - 1
	w.mu.Unlock()
	w.applyConnections(stale, "", []connection.Connection{{ID: "stale"}}, nil)

	conns, err := w.Connections()
	require.NoError(t, err)
	assert.NotContains(t, ids(conns), "stale")
	assert.True(t, w.Loading(), "the newer search is still pending")

	wait(t, w)
	conns, _ = w.Connections()
	assert.Equal(t, []string{"C2"}, ids(conns))

	w.SetSearch("0001")
	w.mu.Lock()
	pending := w.connsTicket
	w.mu.Unlock()
	assert.Equal(t, StageScope, w.Back())
	w.applyConnections(pending, "0001", []connection.Connection{{ID: "left"}}, nil)
	conns, _ = w.Connections()
	assert.Equal(t, []string{"C2"}, ids(conns), "results for a stage that was left are dropped")
	assert.False(t, w.Loading())
}

func TestSubmitRevalidatesAndKeepsStage(t *testing.T) {
	h := newHarness(t)
	w := NewCreate(context.Background(), h.cfg)
	defer w.Close()
	fillDetails(t, w)
	_, err := w.Next()
	require.NoError(t, err)
	_, err = w.Next()
	require.NoError(t, err)
	wait(t, w)

	require.NoError(t, w.SetAssignee(""))
	_, err = w.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindValidation))
	assert.Equal(t, StageConnection, w.Stage())

	_, err = w.Next()
	assert.True(t, fault.Is(err, fault.KindValidation), "the last stage submits")

	require.NoError(t, w.SetAssignee("u2"))
	got, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u2", got.AssigneeID)
	assert.Equal(t, scope.Fields{}, h.srv.Created()[0].Fields, "no scope is a valid target")
}

func TestSubmitFailureKeepsKeyForRetry(t *testing.T) {
	h := newHarness(t)
	w := NewCreate(context.Background(), h.cfg)
	defer w.Close()
	fillDetails(t, w)
	_, _ = w.Next()
	wait(t, w)
	require.NoError(t, w.SelectRoute("R3"))
	_, _ = w.Next()
	wait(t, w)

	h.srv.FailTargetOnce("R3", 502)
	_, err := w.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindDispatch))
	assert.Equal(t, StageConnection, w.Stage())

	_, err = w.Submit(context.Background())
	require.NoError(t, err)
	reqs := h.srv.RequestsTo("/api/tasks")
	require.Len(t, reqs, 2)
	assert.Equal(t, reqs[0].IdempotencyKey, reqs[1].IdempotencyKey)
}

func TestHierarchyFailureDegradesToNoOptions(t *testing.T) {
	h := newHarness(t)
	h.srv.SetDown(true)
	w := NewCreate(context.Background(), h.cfg)
	defer w.Close()
	fillDetails(t, w)
	_, err := w.Next()
	require.NoError(t, err)
	wait(t, w)

	tree, err := w.Hierarchy()
	assert.True(t, fault.Is(err, fault.KindResolution))
	assert.True(t, tree.Empty())
	assert.Empty(t, w.Schemes())
	assert.Empty(t, w.Zones())

	h.srv.SetDown(false)
	w.ReloadHierarchy()
	wait(t, w)
	_, err = w.Hierarchy()
	assert.NoError(t, err)
	assert.Len(t, w.Schemes(), 2)
}

func TestAssignMode(t *testing.T) {
	h := newHarness(t)
	w := NewAssign(context.Background(), h.cfg, "T1", "u1")
	defer w.Close()

	assert.Equal(t, StageAssign, w.Stage())
	assert.True(t, fault.Is(w.Edit(func(d *task.Draft) { d.Title = "x" }), fault.KindValidation))
	assert.True(t, fault.Is(w.SelectZone("Z1"), fault.KindValidation))
	assert.Equal(t, StageAssign, w.Back())

	require.NoError(t, w.SetAssignee(""))
	_, err := w.Submit(context.Background())
	assert.True(t, fault.Is(err, fault.KindValidation))

	require.NoError(t, w.SetAssignee("u2"))
	require.NoError(t, w.SetNote("customer asked for mornings"))
	got, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u2", got.AssigneeID)
	assert.Equal(t, StageSubmitted, w.Stage())
	assert.Empty(t, h.srv.Created())
}

type blockingConnections struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingConnections) SearchConnections(ctx context.Context, q connection.Query) ([]connection.Connection, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return []connection.Connection{{ID: "late"}}, nil
}

func TestCloseDropsInFlightResults(t *testing.T) {
	h := newHarness(t)
	conns := &blockingConnections{started: make(chan struct{})}
	h.cfg.Connections = conns
	w := NewCreate(context.Background(), h.cfg)
	fillDetails(t, w)
	_, _ = w.Next()
	wait(t, w)
	_, _ = w.Next()

	<-conns.started
	assert.True(t, w.Loading())
	w.Close()

	got, err := w.Connections()
	assert.Empty(t, got)
	assert.NoError(t, err)
	assert.Equal(t, StageCancelled, w.Stage())
	assert.NoError(t, w.Wait(context.Background()))
}

func TestBackFromConnectionStopsLoading(t *testing.T) {
	h := newHarness(t)
	conns := &blockingConnections{started: make(chan struct{})}
	h.cfg.Connections = conns
	w := NewCreate(context.Background(), h.cfg)
	defer w.Close()
	fillDetails(t, w)
	_, _ = w.Next()
	wait(t, w)
	_, _ = w.Next()
	<-conns.started

	assert.Equal(t, StageScope, w.Back())
	assert.False(t, w.Loading())
}

func TestTransitionTable(t *testing.T) {
	for from := StageDetails; from <= StageAssign; from++ {
		for _, valid := range []bool{true, false} {
			to, ok := next(from, valid)
			require.True(t, ok, "%s/%v", from, valid)
			if !valid {
				assert.Equal(t, from, to)
			}
		}
	}
	_, ok := next(StageSubmitted, true)
	assert.False(t, ok)
	_, ok = back(StageDetails)
	assert.False(t, ok)
}
