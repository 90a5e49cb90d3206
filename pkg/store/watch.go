package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// SessionEvent reports the session cookie after the session file changed.
type SessionEvent struct {
	Session string
	Err     error
}

// WatchSession streams the session cookie held in path every time the file
// is written, replaced or removed, until ctx is cancelled. Bursts of writes
// produce one event. The channel is closed once ctx is done or the watcher
// fails.
func WatchSession(ctx context.Context, path string, logger *zap.Logger) (<-chan SessionEvent, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: session file path unknown")
	}
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: ensure session directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("store: create watcher: %w", err)
	}
	// Editors and login helpers replace the file, so watch its directory.
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("store: watch %s: %w", dir, err)
	}

	events := make(chan SessionEvent, 8)

	go func() {
		throttle := newEventThrottle(100 * time.Millisecond)
		defer close(events)
		defer throttle.Stop()
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warn("session watcher close", zap.Error(err))
			}
		}()

		send := func() {
			session, err := ReadSessionFile(path)
			select {
			case events <- SessionEvent{Session: session, Err: err}:
			case <-ctx.Done():
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("session watcher error", zap.Error(err))
				throttle.Enqueue(send)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != path {
					continue
				}
				if evt.Op == fsnotify.Chmod {
					continue
				}
				logger.Debug("session file changed", zap.Stringer("op", evt.Op))
				throttle.Enqueue(send)
			}
		}
	}()

	return events, nil
}

// eventThrottle coalesces rapid change notifications so a burst of writes
// results in a single reload.
type eventThrottle struct {
	mu      sync.Mutex
	timer   *time.Timer
	delay   time.Duration
	stopped bool
	running sync.WaitGroup
}

func newEventThrottle(delay time.Duration) *eventThrottle {
	return &eventThrottle{delay: delay}
}

func (t *eventThrottle) Enqueue(send func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.timer != nil {
		return
	}
	t.running.Add(1)
	t.timer = time.AfterFunc(t.delay, func() {
		defer t.running.Done()
		t.mu.Lock()
		t.timer = nil
		stopped := t.stopped
		t.mu.Unlock()
		if !stopped {
			send()
		}
	})
}

// Stop cancels a pending flush and waits for a running one.
func (t *eventThrottle) Stop() {
	t.mu.Lock()
	t.stopped = true
	if t.timer != nil && t.timer.Stop() {
		t.timer = nil
		t.running.Done()
	}
	t.mu.Unlock()
	t.running.Wait()
}
