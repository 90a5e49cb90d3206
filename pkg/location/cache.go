package location

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tableflip.dev/wbc/pkg/fault"
)

// Fetcher retrieves the full scheme tree from the remote service.
type Fetcher interface {
	FetchSchemes(ctx context.Context) ([]Scheme, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]Scheme, error)

// FetchSchemes implements Fetcher.
func (f FetcherFunc) FetchSchemes(ctx context.Context) ([]Scheme, error) { return f(ctx) }

// Snapshots persists a fetched tree for the lifetime of a session so later
// processes in the same session skip the network.
type Snapshots interface {
	LoadHierarchy(session string) ([]Scheme, bool, error)
	SaveHierarchy(session string, schemes []Scheme) error
	ForgetHierarchy(session string) error
}

// Option customises a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSnapshots persists loaded trees per session.
func WithSnapshots(s Snapshots) Option {
	return func(c *Cache) { c.snapshots = s }
}

// WithSession sets the initial session key.
func WithSession(session string) Option {
	return func(c *Cache) { c.session = session }
}

// Cache loads the hierarchy once per session and serves pure lookups from
// memory. It is the only component that fetches the tree.
type Cache struct {
	fetcher   Fetcher
	snapshots Snapshots
	logger    *zap.Logger

	group singleflight.Group

	mu      sync.RWMutex
	session string
	tree    *Hierarchy
	loaded  bool
	lastErr error
	// epoch increments on invalidation so a load that started before it
	// cannot install a stale tree.
	epoch uint64
}

// NewCache builds an empty cache around f.
func NewCache(f Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher: f,
		logger:  zap.NewNop(),
		tree:    NewHierarchy(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the cached tree, fetching it on first use. Concurrent callers
// share one request, which is not tied to any single caller's context: a
// caller that gives up returns early while the others still get the tree.
// On failure it returns an empty hierarchy and a resolution error; the next
// call retries.
func (c *Cache) Load(ctx context.Context) (*Hierarchy, error) {
	c.mu.RLock()
	if c.loaded {
		tree := c.tree
		c.mu.RUnlock()
		return tree, nil
	}
	session, epoch := c.session, c.epoch
	c.mu.RUnlock()

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan("hierarchy:"+session, func() (any, error) {
		return c.load(shared, session, epoch)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return NewHierarchy(nil), res.Err
		}
		return res.Val.(*Hierarchy), nil
	case <-ctx.Done():
		return NewHierarchy(nil), fault.Resolution("hierarchy.load", ctx.Err())
	}
}

func (c *Cache) load(ctx context.Context, session string, epoch uint64) (*Hierarchy, error) {
	if c.snapshots != nil && session != "" {
		schemes, ok, err := c.snapshots.LoadHierarchy(session)
		switch {
		case err != nil:
			c.logger.Warn("hierarchy snapshot unreadable", zap.Error(err))
		case ok:
			tree := NewHierarchy(schemes)
			c.install(tree, epoch, nil)
			c.logger.Debug("hierarchy loaded from snapshot", zap.Int("schemes", len(schemes)))
			return tree, nil
		}
	}

	if c.fetcher == nil {
		err := fault.Resolution("hierarchy.load", errors.New("no fetcher configured"))
		c.install(nil, epoch, err)
		return nil, err
	}
	schemes, err := c.fetcher.FetchSchemes(ctx)
	if err != nil {
		err = fault.Resolution("hierarchy.load", err)
		c.install(nil, epoch, err)
		c.logger.Warn("hierarchy load failed", zap.Error(err))
		return nil, err
	}
	tree := NewHierarchy(schemes)
	c.install(tree, epoch, nil)
	c.logger.Debug("hierarchy fetched", zap.Int("schemes", len(schemes)))

	if c.snapshots != nil && session != "" {
		if err := c.snapshots.SaveHierarchy(session, tree.Schemes()); err != nil {
			c.logger.Warn("hierarchy snapshot not saved", zap.Error(err))
		}
	}
	return tree, nil
}

func (c *Cache) install(tree *Hierarchy, epoch uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	c.lastErr = err
	if err != nil {
		c.tree = NewHierarchy(nil)
		c.loaded = false
		return
	}
	c.tree = tree
	c.loaded = true
}

// Hierarchy returns the current tree without fetching. Before a successful
// Load it is empty.
func (c *Cache) Hierarchy() *Hierarchy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree
}

// Loaded reports whether a tree is cached.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Err returns the error from the most recent failed load, if any.
func (c *Cache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// ZonesOf looks up zones of a scheme in the cached tree.
func (c *Cache) ZonesOf(schemeID string) []Zone {
	return c.Hierarchy().ZonesOf(schemeID)
}

// RoutesOf looks up routes of a zone in the cached tree.
func (c *Cache) RoutesOf(zoneID string) []Route {
	return c.Hierarchy().RoutesOf(zoneID)
}

// SchemeOfZone implements scope.Hierarchy over the cached tree.
func (c *Cache) SchemeOfZone(zoneID string) (string, bool) {
	return c.Hierarchy().SchemeOfZone(zoneID)
}

// ZoneOfRoute implements scope.Hierarchy over the cached tree.
func (c *Cache) ZoneOfRoute(routeID string) (string, bool) {
	return c.Hierarchy().ZoneOfRoute(routeID)
}

// Session returns the current session key.
func (c *Cache) Session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession switches the session key. A different key invalidates the
// cached tree; the same key is a no-op.
func (c *Cache) SetSession(session string) {
	c.mu.Lock()
	if c.session == session {
		c.mu.Unlock()
		return
	}
	previous := c.session
	c.session = session
	c.resetLocked()
	c.mu.Unlock()

	c.forget(previous)
	c.logger.Info("session changed, hierarchy invalidated")
}

// Invalidate drops the cached tree and its snapshot so the next Load
// fetches again.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	session := c.session
	c.resetLocked()
	c.mu.Unlock()

	c.forget(session)
	c.logger.Debug("hierarchy invalidated")
}

func (c *Cache) resetLocked() {
	c.epoch++
	c.tree = NewHierarchy(nil)
	c.loaded = false
	c.lastErr = nil
}

func (c *Cache) forget(session string) {
	if c.snapshots == nil || session == "" {
		return
	}
	if err := c.snapshots.ForgetHierarchy(session); err != nil {
		c.logger.Warn("hierarchy snapshot not removed", zap.Error(err))
	}
}
