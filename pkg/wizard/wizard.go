// Package wizard drives task creation through its stages and the single-stage
// reassignment of an existing task.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/location"
	"tableflip.dev/wbc/pkg/scope"
	"tableflip.dev/wbc/pkg/search"
	"tableflip.dev/wbc/pkg/task"
)

// ErrClosed is returned by operations on a submitted or cancelled wizard.
var ErrClosed = errors.New("wizard: closed")

// Mode selects the create or assign variant.
type Mode int

const (
	// ModeCreate edits every field across three stages.
	ModeCreate Mode = iota
	// ModeAssign edits assignee and note of an existing task in one stage.
	ModeAssign
)

func (m Mode) String() string {
	if m == ModeAssign {
		return "assign"
	}
	return "create"
}

// HierarchySource loads the location tree. *location.Cache satisfies it.
type HierarchySource interface {
	Load(ctx context.Context) (*location.Hierarchy, error)
}

// ConnectionSource searches connections. *billing.Client satisfies it.
type ConnectionSource interface {
	SearchConnections(ctx context.Context, q connection.Query) ([]connection.Connection, error)
}

// TaskService submits the wizard. *billing.Client satisfies it.
type TaskService interface {
	CreateTask(ctx context.Context, req task.CreateRequest, key string) (task.Task, error)
	AssignTask(ctx context.Context, taskID string, req task.AssignRequest) (task.Task, error)
}

// Config holds the collaborators of a wizard.
type Config struct {
	Hierarchy   HierarchySource
	Connections ConnectionSource
	Tasks       TaskService
	Logger      *zap.Logger
	// Debounce is the quiet period before a search runs; zero means
	// search.DefaultDelay.
	Debounce time.Duration
	// Keys generates the idempotency key of the create request.
	Keys func() string
	// SkipConnectionList leaves the connection list unfetched, for callers
	// that already know the scope they submit.
	SkipConnectionList bool
}

// Wizard is one open dialog. It is safe for concurrent use; Close it when the
// dialog goes away.
type Wizard struct {
	cfg      Config
	logger   *zap.Logger
	mode     Mode
	selector *scope.Selector
	searcher *search.Debouncer[[]connection.Connection]
	unsub    func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	stage     Stage
	draft     task.Draft
	taskID    string
	note      string
	text      string
	key       string
	result    *task.Task
	tree      *location.Hierarchy
	treeErr   error
	conns     []connection.Connection
	connsErr  error
	connsBusy bool
	pending   int
	idle      chan struct{}
	closed    bool

	// connsTicket identifies the search whose result is wanted; 0 means none.
	connsTicket uint64
}

// NewCreate opens a wizard in create mode at the Details stage.
func NewCreate(ctx context.Context, cfg Config) *Wizard {
	w := newWizard(ctx, cfg, ModeCreate, StageDetails)
	w.draft = task.NewDraft()
	return w
}

// NewAssign opens a wizard in assign mode for an existing task. current is
// the present assignee, which may be empty.
func NewAssign(ctx context.Context, cfg Config, taskID, current string) *Wizard {
	w := newWizard(ctx, cfg, ModeAssign, StageAssign)
	w.taskID = strings.TrimSpace(taskID)
	w.draft = task.NewDraft()
	w.draft.AssigneeID = strings.TrimSpace(current)
	return w
}

func newWizard(parent context.Context, cfg Config, mode Mode, stage Stage) *Wizard {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Keys == nil {
		cfg.Keys = uuid.NewString
	}
	ctx, cancel := context.WithCancel(parent)
	idle := make(chan struct{})
	close(idle)
	w := &Wizard{
		cfg:      cfg,
		logger:   cfg.Logger.With(zap.Stringer("mode", mode)),
		mode:     mode,
		selector: scope.NewSelector(nil),
		ctx:      ctx,
		cancel:   cancel,
		stage:    stage,
		idle:     idle,
	}
	if mode == ModeCreate {
		w.searcher = search.New[[]connection.Connection](cfg.Debounce, w.fetchConnections, w.applyConnections, w.logger)
		w.unsub = w.selector.Subscribe(w.scopeChanged)
	}
	return w
}

// Mode returns the variant.
func (w *Wizard) Mode() Mode { return w.mode }

// Stage returns the current stage.
func (w *Wizard) Stage() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

// Draft returns a copy of the draft with the current scope filled in.
func (w *Wizard) Draft() task.Draft {
	w.mu.Lock()
	d := w.draft
	w.mu.Unlock()
	return d.WithScope(w.selector.Selection())
}

// Note returns the assignment note.
func (w *Wizard) Note() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.note
}

// TaskID returns the task being reassigned in assign mode.
func (w *Wizard) TaskID() string { return w.taskID }

// Result returns the task returned by a successful submit.
func (w *Wizard) Result() (task.Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.result == nil {
		return task.Task{}, false
	}
	return *w.result, true
}

func (w *Wizard) editable() error {
	if w.stage.Terminal() {
		return ErrClosed
	}
	return nil
}

// Edit changes detail fields in create mode. The scope is not part of the
// edit; use the Select methods.
func (w *Wizard) Edit(fn func(d *task.Draft)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	if w.mode != ModeCreate {
		return fault.Validationf("wizard", "only the assignee and note can be changed when assigning")
	}
	d := w.draft
	fn(&d)
	d.Scope = scope.Selection{}
	w.draft = d
	return nil
}

// SetAssignee sets the assignee in either mode.
func (w *Wizard) SetAssignee(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	w.draft.AssigneeID = strings.TrimSpace(id)
	return nil
}

// SetNote sets the note sent with an assignment.
func (w *Wizard) SetNote(note string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	if w.mode != ModeAssign {
		return fault.Validationf("wizard", "a note only applies when assigning")
	}
	w.note = strings.TrimSpace(note)
	return nil
}

// validateLocked checks the fields the current stage gates on.
func (w *Wizard) validateLocked() error {
	switch w.stage {
	case StageDetails:
		if m := w.draft.Missing(); len(m) > 0 {
			return fault.Validationf("wizard", "missing %s", strings.Join(m, ", "))
		}
	case StageConnection:
		var m []string
		if strings.TrimSpace(w.draft.Title) == "" {
			m = append(m, "title")
		}
		if strings.TrimSpace(w.draft.TypeID) == "" {
			m = append(m, "type")
		}
		if strings.TrimSpace(w.draft.AssigneeID) == "" {
			m = append(m, "assignee")
		}
		if len(m) > 0 {
			return fault.Validationf("wizard", "missing %s", strings.Join(m, ", "))
		}
	case StageAssign:
		if w.taskID == "" {
			return fault.Validationf("wizard", "missing task")
		}
		if strings.TrimSpace(w.draft.AssigneeID) == "" {
			return fault.Validationf("wizard", "missing assignee")
		}
	}
	return nil
}

// Next validates the current stage and advances. Submitting stages are not
// advanced by Next; use Submit. On a validation failure the stage does not
// change and nothing entered is lost.
func (w *Wizard) Next() (Stage, error) {
	w.mu.Lock()
	if err := w.editable(); err != nil {
		defer w.mu.Unlock()
		return w.stage, err
	}
	if w.stage.submits() {
		defer w.mu.Unlock()
		return w.stage, fault.Validationf("wizard", "%s is the last stage; submit instead", w.stage)
	}
	err := w.validateLocked()
	to, ok := next(w.stage, err == nil)
	if !ok {
		w.mu.Unlock()
		return w.stage, fmt.Errorf("wizard: no transition from %s", w.stage)
	}
	if to == w.stage {
		w.mu.Unlock()
		return to, err
	}
	from := w.stage
	w.stage = to
	w.logger.Debug("wizard advanced", zap.Stringer("from", from), zap.Stringer("to", to))
	w.enterLocked(to)
	w.mu.Unlock()
	return to, nil
}

// Back returns to the previous stage, keeping everything entered. From the
// first stage it is a no-op.
func (w *Wizard) Back() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage.Terminal() {
		return w.stage
	}
	to, ok := back(w.stage)
	if !ok {
		return w.stage
	}
	if w.stage == StageConnection {
		w.searcher.Cancel()
		w.connsTicket = 0
		w.connsSettledLocked()
	}
	w.stage = to
	return to
}

// enterLocked runs the side effects of arriving at stage.
func (w *Wizard) enterLocked(stage Stage) {
	switch stage {
	case StageScope:
		if w.tree == nil || w.treeErr != nil {
			w.loadHierarchyLocked()
		}
	case StageConnection:
		w.refreshLocked(false)
	}
}

// ReloadHierarchy fetches the location tree again, e.g. after a failure.
func (w *Wizard) ReloadHierarchy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.mode != ModeCreate {
		return
	}
	w.loadHierarchyLocked()
}

func (w *Wizard) loadHierarchyLocked() {
	w.beginLocked()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		tree, err := w.cfg.Hierarchy.Load(w.ctx)

		w.mu.Lock()
		defer w.mu.Unlock()
		defer w.endLocked()
		if w.closed {
			return
		}
		if tree == nil {
			tree = location.NewHierarchy(nil)
		}
		w.tree, w.treeErr = tree, err
		w.selector.SetHierarchy(tree)
		if err != nil {
			w.logger.Warn("hierarchy unavailable", zap.Error(err))
		}
	}()
}

// Hierarchy returns the loaded tree, empty while loading or after a failure,
// and the load error if any.
func (w *Wizard) Hierarchy() (*location.Hierarchy, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tree == nil {
		return location.NewHierarchy(nil), w.treeErr
	}
	return w.tree, w.treeErr
}

// Schemes lists the schemes to choose from.
func (w *Wizard) Schemes() []location.Scheme {
	tree, _ := w.Hierarchy()
	return tree.Schemes()
}

// Zones lists the zones of the scheme currently browsed.
func (w *Wizard) Zones() []location.Zone {
	tree, _ := w.Hierarchy()
	return tree.ZonesOf(w.Path().SchemeID)
}

// Routes lists the routes of the zone currently browsed.
func (w *Wizard) Routes() []location.Route {
	tree, _ := w.Hierarchy()
	return tree.RoutesOf(w.Path().ZoneID)
}

// Path is the breadcrumb of the browse filter, with the connection id added
// when one is targeted.
func (w *Wizard) Path() scope.Path {
	tree, _ := w.Hierarchy()
	p := scope.PathOf(tree, w.selector.Filter())
	if sel := w.selector.Selection(); sel.Kind() == scope.Connection {
		p.ConnectionID = sel.ID()
	}
	return p
}

// Selection returns the targeted scope.
func (w *Wizard) Selection() scope.Selection { return w.selector.Selection() }

func (w *Wizard) selectable() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	if w.mode != ModeCreate {
		return fault.Validationf("wizard", "the target of an existing task cannot change")
	}
	if w.stage != StageScope && w.stage != StageConnection {
		return fault.Validationf("wizard", "choose details first")
	}
	return nil
}

func (w *Wizard) known(sel scope.Selection) error {
	tree, err := w.Hierarchy()
	if err != nil || tree.Empty() {
		return nil
	}
	if !tree.Has(sel) {
		return fault.Validationf("wizard", "unknown %s %q", sel.Kind(), sel.ID())
	}
	return nil
}

// Select targets sel. Aggregate targets must exist in the loaded tree.
func (w *Wizard) Select(sel scope.Selection) error {
	if err := w.selectable(); err != nil {
		return err
	}
	if sel.IsAggregate() {
		if err := w.known(sel); err != nil {
			return err
		}
	}
	w.selector.Set(sel)
	return nil
}

// SelectScheme targets a scheme, discarding any zone, route or connection.
func (w *Wizard) SelectScheme(id string) error { return w.Select(scope.OfScheme(id)) }

// SelectZone targets a zone.
func (w *Wizard) SelectZone(id string) error { return w.Select(scope.OfZone(id)) }

// SelectRoute targets a route.
func (w *Wizard) SelectRoute(id string) error { return w.Select(scope.OfRoute(id)) }

// SelectConnection targets a single connection. The list it was picked from
// keeps its filter.
func (w *Wizard) SelectConnection(id string) error { return w.Select(scope.OfConnection(id)) }

// ClearScope removes the target and the browse filter.
func (w *Wizard) ClearScope() error {
	if err := w.selectable(); err != nil {
		return err
	}
	w.selector.Clear()
	return nil
}

// SetSearch changes the connection search text. The list is refreshed after
// the debounce delay.
func (w *Wizard) SetSearch(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.mode != ModeCreate {
		return
	}
	text = strings.TrimSpace(text)
	if text == w.text {
		return
	}
	w.text = text
	if w.stage == StageConnection {
		w.refreshLocked(true)
	}
}

// Search returns the connection search text.
func (w *Wizard) Search() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.text
}

func (w *Wizard) scopeChanged(c scope.Change) {
	if !c.FilterChanged() {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.stage != StageConnection {
		return
	}
	w.refreshLocked(false)
}

// refreshLocked schedules a connection fetch for the current filter and
// search text. Typing is debounced; scope changes run at once.
func (w *Wizard) refreshLocked(debounce bool) {
	if w.cfg.SkipConnectionList {
		return
	}
	if !w.connsBusy {
		w.connsBusy = true
		w.beginLocked()
	}
	if debounce {
		w.connsTicket = w.searcher.Trigger(w.text)
	} else {
		w.connsTicket = w.searcher.Now(w.text)
	}
}

func (w *Wizard) fetchConnections(ctx context.Context, text string) ([]connection.Connection, error) {
	ctx, cancel := mergeCancel(ctx, w.ctx)
	defer cancel()
	q := connection.Query{Scope: w.selector.Filter(), Search: text}
	return w.cfg.Connections.SearchConnections(ctx, q)
}

// applyConnections installs a search result unless a newer search was
// scheduled, or the stage was left, after the result was produced.
func (w *Wizard) applyConnections(ticket uint64, text string, conns []connection.Connection, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if ticket == 0 || ticket != w.connsTicket {
		w.logger.Debug("dropping superseded connection search", zap.String("search", text))
		return
	}
	w.connsTicket = 0
	if err != nil {
		w.connsErr = fault.Resolution("wizard.connections", err)
		w.logger.Warn("connection search failed", zap.String("search", text), zap.Error(err))
	} else {
		w.conns, w.connsErr = conns, nil
	}
	w.connsSettledLocked()
}

func (w *Wizard) connsSettledLocked() {
	if w.connsBusy {
		w.connsBusy = false
		w.endLocked()
	}
}

// Connections returns the last fetched connection list and the error of the
// last fetch. A failed fetch keeps the previous list.
func (w *Wizard) Connections() ([]connection.Connection, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]connection.Connection(nil), w.conns...), w.connsErr
}

// Loading reports whether a fetch is scheduled or running.
func (w *Wizard) Loading() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending > 0
}

func (w *Wizard) beginLocked() {
	if w.pending == 0 {
		w.idle = make(chan struct{})
	}
	w.pending++
}

func (w *Wizard) endLocked() {
	if w.pending == 0 {
		return
	}
	w.pending--
	if w.pending == 0 {
		close(w.idle)
	}
}

// Wait blocks until no fetch is scheduled or running, the wizard closes, or
// ctx is done.
func (w *Wizard) Wait(ctx context.Context) error {
	w.mu.Lock()
	idle := w.idle
	w.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-w.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit validates the final stage and sends the request. A failed create
// keeps the wizard open and reuses the same idempotency key on the next
// attempt.
func (w *Wizard) Submit(ctx context.Context) (task.Task, error) {
	w.mu.Lock()
	if err := w.editable(); err != nil {
		w.mu.Unlock()
		return task.Task{}, err
	}
	if !w.stage.submits() {
		defer w.mu.Unlock()
		return task.Task{}, fault.Validationf("wizard", "cannot submit from %s", w.stage)
	}
	err := w.validateLocked()
	to, _ := next(w.stage, err == nil)
	if err != nil || to != StageSubmitted {
		w.mu.Unlock()
		return task.Task{}, err
	}
	draft, note, taskID := w.draft, w.note, w.taskID
	if w.key == "" {
		w.key = w.cfg.Keys()
	}
	key := w.key
	w.mu.Unlock()

	ctx, cancel := mergeCancel(ctx, w.ctx)
	defer cancel()

	var (
		out task.Task
		op  string
	)
	if w.mode == ModeAssign {
		op = "task.assign"
		out, err = w.cfg.Tasks.AssignTask(ctx, taskID, task.AssignRequest{AssigneeID: draft.AssigneeID, Note: note})
	} else {
		op = "task.create"
		out, err = w.cfg.Tasks.CreateTask(ctx, draft.WithScope(w.selector.Selection()).Request(), key)
	}
	if err != nil {
		return task.Task{}, fault.Dispatch(op, err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return out, nil
	}
	w.result = &out
	w.stage = StageSubmitted
	w.mu.Unlock()
	w.logger.Info("wizard submitted", zap.String("task", out.ID))
	w.shutdown()
	return out, nil
}

// Cancel discards the wizard.
func (w *Wizard) Cancel() {
	w.mu.Lock()
	if !w.stage.Terminal() {
		w.stage = StageCancelled
	}
	w.mu.Unlock()
	w.shutdown()
}

// Close releases the wizard. Results of fetches still in flight are dropped.
// Closing a wizard that was not submitted cancels it.
func (w *Wizard) Close() { w.Cancel() }

func (w *Wizard) shutdown() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.pending = 0
	select {
	case <-w.idle:
	default:
		close(w.idle)
	}
	w.mu.Unlock()

	w.cancel()
	if w.unsub != nil {
		w.unsub()
	}
	if w.searcher != nil {
		w.searcher.Close()
	}
	w.wg.Wait()
}

// mergeCancel returns a context that is done when either ctx or other is.
func mergeCancel(ctx, other context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(other, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
