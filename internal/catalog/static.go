package catalog

import (
	"context"

	"vanplan/internal/model"
)

// Static is a fixed in-memory provider used in tests and when no catalog
// source is configured.
type Static struct {
	snap *Snapshot
}

func NewStatic(version string, defs []model.ItemDefinition) (*Static, error) {
	snap, err := NewSnapshot(version, defs)
	if err != nil {
		return nil, err
	}
	return &Static{snap: snap}, nil
}

// MustStatic is a test/bootstrap helper; panics on a malformed catalog.
func MustStatic(version string, defs []model.ItemDefinition) *Static {
	s, err := NewStatic(version, defs)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Static) Snapshot(context.Context) (*Snapshot, error) { return s.snap, nil }
