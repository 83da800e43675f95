// Package voxel holds the sparse occupancy set for an editing session.
// The store is the single source of truth for which cells are filled;
// it knows nothing about rendering and performs no bounds checks.
package voxel

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/chazu/voxloom/pkg/grid"
)

// Store is a set of occupied cells. It is not safe for concurrent
// mutation.
type Store struct {
	cells map[grid.Cell]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{cells: make(map[grid.Cell]struct{})}
}

// Insert adds c and reports whether it was absent. Inserting a present
// cell changes nothing.
func (s *Store) Insert(c grid.Cell) bool {
	if _, ok := s.cells[c]; ok {
		return false
	}
	s.cells[c] = struct{}{}
	return true
}

// Remove deletes c and reports whether it was present.
func (s *Store) Remove(c grid.Cell) bool {
	if _, ok := s.cells[c]; !ok {
		return false
	}
	delete(s.cells, c)
	return true
}

// Contains reports whether c is occupied.
func (s *Store) Contains(c grid.Cell) bool {
	_, ok := s.cells[c]
	return ok
}

// Len returns the number of occupied cells.
func (s *Store) Len() int {
	return len(s.cells)
}

// Clear empties the store. Only hosts call this; the engine never does.
func (s *Store) Clear() {
	clear(s.cells)
}

// Each calls fn for every cell in unspecified order until fn returns
// false.
func (s *Store) Each(fn func(grid.Cell) bool) {
	for c := range s.cells {
		if !fn(c) {
			return
		}
	}
}

// Snapshot returns a sorted copy of the occupied cells.
func (s *Store) Snapshot() []grid.Cell {
	out := make([]grid.Cell, 0, len(s.cells))
	for c := range s.cells {
		out = append(out, c)
	}
	slices.SortFunc(out, compareCells)
	return out
}

// Fingerprint returns a digest of the store contents that does not
// depend on insertion order. Equal sets have equal fingerprints.
func (s *Store) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [24]byte
	for _, c := range s.Snapshot() {
		binary.LittleEndian.PutUint64(buf[0:], uint64(int64(c.X)))
		binary.LittleEndian.PutUint64(buf[8:], uint64(int64(c.Y)))
		binary.LittleEndian.PutUint64(buf[16:], uint64(int64(c.Z)))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

func compareCells(a, b grid.Cell) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}
