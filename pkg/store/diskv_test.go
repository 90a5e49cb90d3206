package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tableflip.dev/wbc/pkg/location"
)

func sampleSchemes() []location.Scheme {
	return []location.Scheme{{ID: "S1", Name: "North", Zones: []location.Zone{
		{ID: "Z1", Name: "Hill", SchemeID: "S1", Routes: []location.Route{{ID: "R1", Name: "One", ZoneID: "Z1"}}},
	}}}
}

func TestSnapshotsRoundTrip(t *testing.T) {
	base := t.TempDir()
	s, err := OpenSnapshots(base)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, ok, err := s.LoadHierarchy("alice"); ok || err != nil {
		t.Fatalf("empty store returned ok=%v err=%v", ok, err)
	}
	if err := s.SaveHierarchy("alice", sampleSchemes()); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := s.LoadHierarchy("alice")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].Zones[0].Routes[0].ID != "R1" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if _, ok, _ := s.LoadHierarchy("bob"); ok {
		t.Fatal("sessions must not share snapshots")
	}

	// The cookie itself never appears on disk.
	err = filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if strings.Contains(path, "alice") {
			t.Errorf("session leaked into path %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.ForgetHierarchy("alice"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if err := s.ForgetHierarchy("alice"); err != nil {
		t.Fatalf("forget twice: %v", err)
	}
	if _, ok, _ := s.LoadHierarchy("alice"); ok {
		t.Fatal("snapshot survived forget")
	}
}

func TestSnapshotsServeCacheAcrossProcesses(t *testing.T) {
	base := t.TempDir()
	s, err := OpenSnapshots(base)
	if err != nil {
		t.Fatal(err)
	}

	fetches := 0
	fetcher := location.FetcherFunc(func(context.Context) ([]location.Scheme, error) {
		fetches++
		return sampleSchemes(), nil
	})

	first := location.NewCache(fetcher, location.WithSnapshots(s), location.WithSession("alice"))
	if _, err := first.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	second := location.NewCache(fetcher, location.WithSnapshots(s), location.WithSession("alice"))
	tree, err := second.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if fetches != 1 {
		t.Fatalf("expected one fetch, got %d", fetches)
	}
	if id, _ := tree.SchemeOfZone("Z1"); id != "S1" {
		t.Fatalf("snapshot tree lookup = %q", id)
	}

	second.SetSession("bob")
	if _, err := second.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fetches != 2 {
		t.Fatalf("new session should fetch, got %d fetches", fetches)
	}
	if _, ok, _ := s.LoadHierarchy("alice"); ok {
		t.Fatal("previous session snapshot should be forgotten")
	}

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if keys := s.Keys(); len(keys) != 0 {
		t.Fatalf("clear left %v", keys)
	}
}
