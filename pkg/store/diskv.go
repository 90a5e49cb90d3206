package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/peterbourgon/diskv/v3"

	"tableflip.dev/wbc/pkg/location"
)

const (
	hierarchyBucket = "hierarchy"
	snapshotVersion = 1
)

// Snapshots keeps one hierarchy per session on disk. It implements
// location.Snapshots.
type Snapshots struct {
	d        *diskv.Diskv
	basePath string
}

var _ location.Snapshots = (*Snapshots)(nil)

type snapshot struct {
	Version int               `json:"version"`
	Saved   time.Time         `json:"saved"`
	Schemes []location.Scheme `json:"schemes"`
}

// OpenSnapshots opens the store rooted at basePath.
func OpenSnapshots(basePath string) (*Snapshots, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("store: cache path required")
	}
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("store: ensure cache path: %w", err)
	}
	return &Snapshots{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: keyToPathTransform,
		InverseTransform:  pathToKeyTransform,
		CacheSizeMax:      1024 * 1024, // 1MB
		FilePerm:          0o600,
		PathPerm:          0o700,
	}), basePath: basePath}, nil
}

// BasePath is the directory snapshots are written under.
func (s *Snapshots) BasePath() string { return s.basePath }

// LoadHierarchy returns the snapshot of session, if any.
func (s *Snapshots) LoadHierarchy(session string) ([]location.Scheme, bool, error) {
	key := sessionKey(session)
	if !s.d.Has(key) {
		return nil, false, nil
	}
	data, err := s.d.Read(key)
	if err != nil {
		return nil, false, fmt.Errorf("store: read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("store: decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, false, nil
	}
	return snap.Schemes, true, nil
}

// SaveHierarchy writes the snapshot of session.
func (s *Snapshots) SaveHierarchy(session string, schemes []location.Scheme) error {
	data, err := json.Marshal(snapshot{Version: snapshotVersion, Saved: time.Now().UTC(), Schemes: schemes})
	if err != nil {
		return err
	}
	return s.d.Write(sessionKey(session), data)
}

// ForgetHierarchy removes the snapshot of session. Forgetting a missing
// snapshot is not an error.
func (s *Snapshots) ForgetHierarchy(session string) error {
	key := sessionKey(session)
	if !s.d.Has(key) {
		return nil
	}
	return s.d.Erase(key)
}

// Clear removes every snapshot.
func (s *Snapshots) Clear() error {
	return s.d.EraseAll()
}

// Keys lists stored snapshot keys.
func (s *Snapshots) Keys() []string {
	var keys []string
	for k := range s.d.Keys(nil) {
		keys = append(keys, k)
	}
	return keys
}

func keyToPathTransform(s string) *diskv.PathKey {
	parts := strings.Split(s, "-")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	return fmt.Sprintf("%s-%s", strings.Join(pathKey.Path, "-"), pathKey.FileName)
}

// sessionKey makes `hierarchy-<digest>` so the cookie never lands on disk.
func sessionKey(session string) string {
	sum := sha256.Sum256([]byte(session))
	return fmt.Sprintf("%s-%s", hierarchyBucket, hex.EncodeToString(sum[:12]))
}
