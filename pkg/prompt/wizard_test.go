package prompt

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tableflip.dev/wbc/pkg/billing/billingtest"
	"tableflip.dev/wbc/pkg/location"
	"tableflip.dev/wbc/pkg/task"
	"tableflip.dev/wbc/pkg/wizard"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// step is one scripted answer. Choose steps pick the row whose label or
// detail equals pick.
type step struct {
	label string
	text  string
	pick  string
	err   error
}

type script struct {
	t     *testing.T
	steps []step
}

func (s *script) next(label string) step {
	s.t.Helper()
	require.NotEmpty(s.t, s.steps, "unexpected prompt %q", label)
	st := s.steps[0]
	s.steps = s.steps[1:]
	require.Equal(s.t, st.label, label)
	return st
}

func (s *script) Ask(q Question) (string, error) {
	st := s.next(q.Label)
	if st.err != nil {
		return "", st.err
	}
	if q.Validate != nil {
		if err := q.Validate(st.text); err != nil {
			return "", err
		}
	}
	return st.text, nil
}

func (s *script) Choose(label string, choices []Choice, _ int) (int, error) {
	st := s.next(label)
	if st.err != nil {
		return 0, st.err
	}
	for i, c := range choices {
		if c.Label == st.pick || c.Detail == st.pick {
			return i, nil
		}
	}
	s.t.Fatalf("%s: no choice %q in %v", label, st.pick, choices)
	return 0, nil
}

func ask(label, text string) step    { return step{label: label, text: text} }
func choose(label, pick string) step { return step{label: label, pick: pick} }

func details() []step {
	return []step{
		ask("Title", "Disconnect arrears"),
		ask("Description", ""),
		choose("Task type", "t-disc"),
		choose("Priority", "HIGH"),
		choose("Assignee", "u1"),
		ask("Due date (YYYY-MM-DD, optional)", "2026-11-02"),
	}
}

type harness struct {
	srv *billingtest.Server
	cfg wizard.Config
	fix billingtest.Fixture
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
		fix: f,
		cfg: wizard.Config{
			Hierarchy:   location.NewCache(client),
			Connections: client,
			Tasks:       client,
			Debounce:    5 * time.Millisecond,
			Keys:        func() string { return "prompt-key" },
		},
	}
}

func (h *harness) driver(t *testing.T, steps ...step) (*Driver, *script) {
	s := &script{t: t, steps: steps}
	return &Driver{Asker: s, Types: h.fix.TaskTypes, Assignees: h.fix.Assignees}, s
}

func timeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCreateTargetsZone(t *testing.T) {
	h := newHarness(t)
	steps := append(details(),
		choose("Scheme", "Northern Scheme"),
		choose("Zone", "Hillside"),
		choose("Route", "Whole zone"),
		choose("Connection", "Submit"),
	)
	d, s := h.driver(t, steps...)

	w := wizard.NewCreate(context.Background(), h.cfg)
	defer w.Close()
	got, err := d.Create(timeout(t), w)
	require.NoError(t, err)
	assert.Empty(t, s.steps)
	assert.Equal(t, "Z1", got.ZoneID)
	assert.Equal(t, wizard.StageSubmitted, w.Stage())

	created := h.srv.Created()
	require.Len(t, created, 1)
	assert.Equal(t, task.PriorityHigh, created[0].Priority)
	require.NotNil(t, created[0].DueDate)
	assert.Equal(t, "2026-11-02", created[0].DueDate.Format(dateLayout))
}

func TestCreateSearchesAndPicksConnection(t *testing.T) {
	h := newHarness(t)
	steps := append(details(),
		choose("Scheme", "Northern Scheme"),
		choose("Zone", "Hillside"),
		choose("Route", "Route 1"),
		choose("Connection", "Search connections"),
		ask("Search", "wb-0002"),
		choose("Connection", "WB-0002 (Customer C2)"),
		choose("Connection", "Submit"),
	)
	d, _ := h.driver(t, steps...)

	w := wizard.NewCreate(context.Background(), h.cfg)
	defer w.Close()
	got, err := d.Create(timeout(t), w)
	require.NoError(t, err)
	assert.Equal(t, "C2", got.ConnectionID)
	assert.Empty(t, got.RouteID)
}

func TestCreateWithoutLocation(t *testing.T) {
	h := newHarness(t)
	steps := append(details(),
		choose("Scheme", "No location"),
		choose("Connection", "Submit"),
	)
	d, _ := h.driver(t, steps...)

	w := wizard.NewCreate(context.Background(), h.cfg)
	defer w.Close()
	got, err := d.Create(timeout(t), w)
	require.NoError(t, err)
	assert.True(t, got.Scope().IsNone())
}

func TestCreateRetriesFailedSubmit(t *testing.T) {
	h := newHarness(t)
	h.srv.FailTargetOnce("Z1", http.StatusBadGateway)
	steps := append(details(),
		choose("Scheme", "Northern Scheme"),
		choose("Zone", "Hillside"),
		choose("Route", "Whole zone"),
		choose("Connection", "Submit"),
		choose("Connection", "Submit"),
	)
	d, s := h.driver(t, steps...)

	w := wizard.NewCreate(context.Background(), h.cfg)
	defer w.Close()
	_, err := d.Create(timeout(t), w)
	require.NoError(t, err)
	assert.Empty(t, s.steps)
	assert.Len(t, h.srv.Created(), 1)

	keys := map[string]bool{}
	for _, r := range h.srv.RequestsTo("/api/tasks") {
		keys[r.IdempotencyKey] = true
	}
	assert.Equal(t, map[string]bool{"prompt-key": true}, keys)
}

func TestCreateBackKeepsDetails(t *testing.T) {
	h := newHarness(t)
	steps := append(details(),
		choose("Scheme", labelBack),
		ask("Title", "Disconnect arrears (revised)"),
		ask("Description", ""),
		choose("Task type", "t-disc"),
		choose("Priority", "HIGH"),
		choose("Assignee", "u2"),
		ask("Due date (YYYY-MM-DD, optional)", ""),
		choose("Scheme", "No location"),
		choose("Connection", "Submit"),
	)
	d, _ := h.driver(t, steps...)

	w := wizard.NewCreate(context.Background(), h.cfg)
	defer w.Close()
	got, err := d.Create(timeout(t), w)
	require.NoError(t, err)
	assert.Equal(t, "Disconnect arrears (revised)", got.Title)
	assert.Equal(t, "u2", got.AssigneeID)
	assert.Nil(t, got.DueDate)
}

func TestCreateAbortCancelsWizard(t *testing.T) {
	h := newHarness(t)
	d, _ := h.driver(t, step{label: "Title", err: ErrAborted})

	w := wizard.NewCreate(context.Background(), h.cfg)
	defer w.Close()
	_, err := d.Create(timeout(t), w)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, wizard.StageCancelled, w.Stage())
	assert.Empty(t, h.srv.Created())
}

func TestAssign(t *testing.T) {
	h := newHarness(t)
	d, _ := h.driver(t,
		choose("Assignee", "Brian"),
		ask("Note (optional)", "covering leave"),
	)

	w := wizard.NewAssign(context.Background(), h.cfg, "T1", "u1")
	defer w.Close()
	got, err := d.Assign(timeout(t), w)
	require.NoError(t, err)
	assert.Equal(t, "u2", got.AssigneeID)
}

func TestRequiredRejectsBlank(t *testing.T) {
	assert.Error(t, required("title")("  "))
	assert.NoError(t, optionalDate(""))
	assert.Error(t, optionalDate("02/11/2026"))
}
