package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"vanplan/internal/model"
)

func TestNewSnapshotRejectsBadInput(t *testing.T) {
	if _, err := NewSnapshot("v1", []model.ItemDefinition{{ID: ""}}); err == nil {
		t.Fatal("empty item id must be rejected")
	}
	if _, err := NewSnapshot("v1", []model.ItemDefinition{{ID: "sofa"}, {ID: "sofa"}}); err == nil {
		t.Fatal("duplicate item id must be rejected")
	}
}

func TestSnapshotLookup(t *testing.T) {
	snap, err := NewSnapshot("v1", []model.ItemDefinition{
		{ID: "sofa", VolumeM3: 2, WeightKg: 40, WorkersRequired: 2},
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	d, ok := snap.Lookup("sofa")
	if !ok || d.VolumeM3 != 2 {
		t.Fatalf("lookup sofa: ok=%v def=%+v", ok, d)
	}
	if _, ok := snap.Lookup("ghost"); ok {
		t.Fatal("unknown id must miss")
	}
	if snap.Len() != 1 {
		t.Errorf("len: got %d want 1", snap.Len())
	}
}

func TestFileProviderLoadsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	write := func(doc string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write(`{"version":"v1","items":[{"id":"sofa","volumeM3":2,"weightKg":40,"workersRequired":2,"fitsStandardVan":true}]}`)

	p := NewFileProvider(path)
	snap, err := p.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Version != "v1" || snap.Len() != 1 {
		t.Fatalf("loaded: version=%s len=%d", snap.Version, snap.Len())
	}

	write(`{"version":"v2","items":[{"id":"sofa","volumeM3":2},{"id":"box","volumeM3":0.1}]}`)
	snap2, err := p.Reload(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if snap2.Version != "v2" || snap2.Len() != 2 {
		t.Fatalf("reloaded: version=%s len=%d", snap2.Version, snap2.Len())
	}

	// A broken file leaves the previous version serving.
	write(`{not json`)
	if _, err := p.Reload(context.Background()); err == nil {
		t.Fatal("broken file must fail reload")
	}
	cur, _ := p.Snapshot(context.Background())
	if cur.Version != "v2" {
		t.Errorf("current version after failed reload: %s", cur.Version)
	}
}

func TestFileProviderMissingVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(`{"items":[{"id":"sofa"}]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFileProvider(path).Snapshot(context.Background()); err == nil {
		t.Fatal("catalog without a version must be rejected")
	}
}

func TestHTTPProviderKeepsPointerOnSameVersion(t *testing.T) {
	doc := `{"version":"v1","items":[{"id":"sofa","volumeM3":2}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL)
	first, err := p.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	again, err := p.Reload(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if first != again {
		t.Error("unchanged version must keep the cached snapshot")
	}

	doc = `{"version":"v2","items":[{"id":"sofa","volumeM3":2},{"id":"box","volumeM3":0.1}]}`
	bumped, err := p.Reload(context.Background())
	if err != nil {
		t.Fatalf("reload v2: %v", err)
	}
	if bumped == first || bumped.Version != "v2" || bumped.Len() != 2 {
		t.Fatalf("bumped: version=%s len=%d", bumped.Version, bumped.Len())
	}
}

func TestHTTPProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	if _, err := NewHTTPProvider(srv.URL).Snapshot(context.Background()); err == nil {
		t.Fatal("5xx from the catalog service must fail")
	}
}
