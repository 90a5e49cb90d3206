package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"tableflip.dev/wbc/pkg/billing"
	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/dispatch"
	"tableflip.dev/wbc/pkg/eligibility"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/guard"
	"tableflip.dev/wbc/pkg/location"
	"tableflip.dev/wbc/pkg/scope"
	"tableflip.dev/wbc/pkg/store"
	"tableflip.dev/wbc/pkg/task"
	"tableflip.dev/wbc/pkg/wizard"
)

// Service is one console session: the billing client plus the hierarchy
// cache, resolver and dispatcher built on it. CLIs and the MCP server share
// it.
type Service struct {
	Config     *store.Config
	Client     *billing.Client
	Cache      *location.Cache
	Resolver   *eligibility.Resolver
	Dispatcher *dispatch.Dispatcher
	Snapshots  *store.Snapshots
	Logger     *zap.Logger

	watchOnce sync.Once
}

// New wires a Service from cfg. logger may be nil.
func New(cfg *store.Config, logger *zap.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("app: no config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	session, err := cfg.Session()
	if err != nil {
		return nil, err
	}
	client, err := billing.New(billing.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.Timeout,
		Session: session,
		Logger:  logger.Named("billing"),
	})
	if err != nil {
		return nil, err
	}

	s := &Service{Config: cfg, Client: client, Logger: logger}
	opts := []location.Option{
		location.WithLogger(logger.Named("location")),
		location.WithSession(session),
	}
	if cfg.CachePath != "" {
		snaps, err := store.OpenSnapshots(cfg.CachePath)
		if err != nil {
			logger.Warn("hierarchy snapshots disabled", zap.Error(err))
		} else {
			s.Snapshots = snaps
			opts = append(opts, location.WithSnapshots(snaps))
		}
	}
	s.Cache = location.NewCache(client, opts...)
	s.Resolver = eligibility.NewResolver(client, logger.Named("eligibility"))
	s.Dispatcher = dispatch.New(client,
		dispatch.WithConcurrency(cfg.Concurrency),
		dispatch.WithRetry(cfg.Retry),
		dispatch.WithLogger(logger.Named("dispatch")),
	)
	return s, nil
}

// Hierarchy loads the location tree through the cache.
func (s *Service) Hierarchy(ctx context.Context) (*location.Hierarchy, error) {
	return s.Cache.Load(ctx)
}

// Zones lists zones of a scheme from the cached tree.
func (s *Service) Zones(ctx context.Context, schemeID string) ([]location.Zone, error) {
	tree, err := s.Cache.Load(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := tree.Scheme(schemeID); !ok {
		return nil, fault.Validationf("zones", "unknown scheme %q", schemeID)
	}
	return tree.ZonesOf(schemeID), nil
}

// Routes lists routes of a zone from the cached tree.
func (s *Service) Routes(ctx context.Context, zoneID string) ([]location.Route, error) {
	tree, err := s.Cache.Load(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := tree.Zone(zoneID); !ok {
		return nil, fault.Validationf("routes", "unknown zone %q", zoneID)
	}
	return tree.RoutesOf(zoneID), nil
}

// TaskTypes lists task types.
func (s *Service) TaskTypes(ctx context.Context) ([]task.Type, error) {
	types, err := s.Client.TaskTypes(ctx)
	if err != nil {
		return nil, fault.Resolution("task types", err)
	}
	return types, nil
}

// Assignees lists field staff.
func (s *Service) Assignees(ctx context.Context) ([]task.Assignee, error) {
	people, err := s.Client.Assignees(ctx)
	if err != nil {
		return nil, fault.Resolution("assignees", err)
	}
	return people, nil
}

// Connection fetches a single connection by id.
func (s *Service) Connection(ctx context.Context, id string) (connection.Connection, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return connection.Connection{}, fault.Validationf("connection", "connection id required")
	}
	found, err := s.Client.SearchConnections(ctx, connection.Query{Scope: scope.OfConnection(id)})
	if err != nil {
		return connection.Connection{}, fault.Resolution("connection", err)
	}
	for _, c := range found {
		if c.ID == id {
			return c, nil
		}
	}
	return connection.Connection{}, fault.Resolution("connection", fmt.Errorf("connection %q not found", id))
}

// MeterCheck reports whether a meter can be assigned to a connection.
func (s *Service) MeterCheck(ctx context.Context, id string) (connection.Connection, guard.Result, error) {
	c, err := s.Connection(ctx, id)
	if err != nil {
		return c, guard.Result{}, err
	}
	return c, guard.AssignMeter(c), nil
}

// WizardConfig returns the collaborators a wizard needs.
func (s *Service) WizardConfig() wizard.Config {
	return wizard.Config{
		Hierarchy:   s.Cache,
		Connections: s.Client,
		Tasks:       s.Client,
		Logger:      s.Logger.Named("wizard"),
		Debounce:    s.Config.Debounce,
	}
}

// NewCreateWizard opens a create-mode wizard.
func (s *Service) NewCreateWizard(ctx context.Context) *wizard.Wizard {
	return wizard.NewCreate(ctx, s.WizardConfig())
}

// CreateTask submits draft non-interactively by walking a wizard through
// every stage, so the same gates apply as in the interactive flow. No
// connection list is fetched since nobody picks from it.
func (s *Service) CreateTask(ctx context.Context, draft task.Draft) (task.Task, error) {
	cfg := s.WizardConfig()
	cfg.SkipConnectionList = true
	w := wizard.NewCreate(ctx, cfg)
	defer w.Close()

	if err := w.Edit(func(d *task.Draft) { *d = draft }); err != nil {
		return task.Task{}, err
	}
	if _, err := w.Next(); err != nil {
		return task.Task{}, err
	}
	if !draft.Scope.IsNone() {
		if err := w.Wait(ctx); err != nil {
			return task.Task{}, err
		}
		if err := w.Select(draft.Scope); err != nil {
			return task.Task{}, err
		}
	}
	if _, err := w.Next(); err != nil {
		return task.Task{}, err
	}
	return w.Submit(ctx)
}

// AssignTask reassigns an existing task.
func (s *Service) AssignTask(ctx context.Context, taskID, assigneeID, note string) (task.Task, error) {
	w := wizard.NewAssign(ctx, s.WizardConfig(), taskID, "")
	defer w.Close()
	if err := w.SetAssignee(assigneeID); err != nil {
		return task.Task{}, err
	}
	if err := w.SetNote(note); err != nil {
		return task.Task{}, err
	}
	return w.Submit(ctx)
}

// Preview resolves disconnection candidates for q. An identical repeated
// query reuses the resolved list, but every caller gets its own selection.
func (s *Service) Preview(ctx context.Context, q connection.Query) (*eligibility.CandidateSet, error) {
	set, err := s.Resolver.SetQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	return set.Clone(), nil
}

// ClearCache drops the in-memory and on-disk hierarchy.
func (s *Service) ClearCache() error {
	s.Cache.Invalidate()
	if s.Snapshots != nil {
		return s.Snapshots.Clear()
	}
	return nil
}

// WatchSession follows the configured session file and switches the
// session, and so the cached hierarchy, whenever it changes. It returns once
// the watch is set up and stops with ctx. Without a session file it does
// nothing.
func (s *Service) WatchSession(ctx context.Context) error {
	if s.Config.SessionFile == "" || s.Config.SessionCookie != "" {
		return nil
	}
	var err error
	s.watchOnce.Do(func() {
		var events <-chan store.SessionEvent
		events, err = store.WatchSession(ctx, s.Config.SessionFile, s.Logger.Named("session"))
		if err != nil {
			return
		}
		go func() {
			for ev := range events {
				if ev.Err != nil {
					s.Logger.Warn("session file unreadable", zap.Error(ev.Err))
					continue
				}
				s.SetSession(ev.Session)
			}
		}()
	})
	return err
}

// SetSession switches the credentials used by every component.
func (s *Service) SetSession(session string) {
	s.Client.SetSession(session)
	s.Cache.SetSession(session)
	s.Resolver.Reset()
}
