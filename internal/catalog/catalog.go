// Package catalog supplies versioned item definitions to the planner.
package catalog

import (
	"context"
	"fmt"

	"vanplan/internal/model"
)

// Snapshot is one immutable catalog version. Concurrent readers share a
// snapshot without locking; a version bump replaces the whole snapshot.
type Snapshot struct {
	Version string
	items   map[string]model.ItemDefinition
}

// NewSnapshot builds a snapshot from a definition list. Duplicate ids are
// rejected so a bad catalog never half-loads.
func NewSnapshot(version string, defs []model.ItemDefinition) (*Snapshot, error) {
	items := make(map[string]model.ItemDefinition, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("catalog %s: item with empty id", version)
		}
		if _, dup := items[d.ID]; dup {
			return nil, fmt.Errorf("catalog %s: duplicate item id %q", version, d.ID)
		}
		items[d.ID] = d
	}
	return &Snapshot{Version: version, items: items}, nil
}

// Lookup returns the definition for id, if present.
func (s *Snapshot) Lookup(id string) (model.ItemDefinition, bool) {
	d, ok := s.items[id]
	return d, ok
}

// Items returns all definitions in unspecified order.
func (s *Snapshot) Items() []model.ItemDefinition {
	out := make([]model.ItemDefinition, 0, len(s.items))
	for _, d := range s.items {
		out = append(out, d)
	}
	return out
}

func (s *Snapshot) Len() int { return len(s.items) }

// Provider hands out the current catalog snapshot. Implementations must
// swap versions atomically: a reader sees either the old or the new
// snapshot in full, never a mix.
type Provider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Reloader is implemented by providers that can hot-reload on a version
// bump (full replacement, not an incremental patch).
type Reloader interface {
	Reload(ctx context.Context) (*Snapshot, error)
}
