package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"vanplan/internal/model"
)

// catalogDoc is the on-disk / wire shape of a catalog version.
type catalogDoc struct {
	Version string                 `json:"version"`
	Items   []model.ItemDefinition `json:"items"`
}

// FileProvider loads the catalog from a JSON file. The current snapshot
// is held behind an atomic pointer so Reload is a single swap.
type FileProvider struct {
	Path string
	cur  atomic.Pointer[Snapshot]
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

func (p *FileProvider) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s := p.cur.Load(); s != nil {
		return s, nil
	}
	return p.Reload(ctx)
}

// Reload re-reads the file and swaps the snapshot in one step. A parse
// failure leaves the previous version serving.
func (p *FileProvider) Reload(_ context.Context) (*Snapshot, error) {
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", p.Path, err)
	}
	snap, err := decodeCatalog(raw)
	if err != nil {
		return nil, err
	}
	p.cur.Store(snap)
	return snap, nil
}

func decodeCatalog(raw []byte) (*Snapshot, error) {
	var doc catalogDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("decode catalog: missing version")
	}
	return NewSnapshot(doc.Version, doc.Items)
}
