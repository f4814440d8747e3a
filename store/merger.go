package store

import (
	"io"
	"slices"
)

// foldMerger adapts a Fold to pebble's ValueMerger. Pebble hands values
// in either direction; the fold always sees them oldest first, though a
// semilattice fold would not care.
type foldMerger struct {
	fold Fold
	old  bool
	vals [][]byte
}

func (m *foldMerger) push(value []byte) {
	held := make([]byte, len(value))
	copy(held, value)
	m.vals = append(m.vals, held)
}

func (m *foldMerger) MergeNewer(value []byte) error {
	m.push(value)
	return nil
}

func (m *foldMerger) MergeOlder(value []byte) error {
	m.push(value)
	m.old = true
	return nil
}

func (m *foldMerger) Finish(includesBase bool) ([]byte, io.Closer, error) {
	if m.old {
		slices.Reverse(m.vals)
	}
	if len(m.vals) == 0 {
		return nil, nil, nil
	}
	return m.fold(m.vals), nil, nil
}
