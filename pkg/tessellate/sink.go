package tessellate

import (
	"slices"

	"github.com/chazu/voxloom/pkg/consolidate"
	"github.com/chazu/voxloom/pkg/grid"
	"github.com/chazu/voxloom/pkg/kernel"
)

// InstanceSink keeps one entity per occupied cell, each referencing the
// shared base cube until made real. It is the in-memory host for a
// session's geometry.
type InstanceSink struct {
	entities map[grid.Cell]*consolidate.Entity
}

// NewInstanceSink returns an empty sink.
func NewInstanceSink() *InstanceSink {
	return &InstanceSink{entities: make(map[grid.Cell]*consolidate.Entity)}
}

// EmitCube creates the entity for c. An existing entity is left alone.
func (s *InstanceSink) EmitCube(c grid.Cell, base *kernel.Mesh) {
	if _, ok := s.entities[c]; ok {
		return
	}
	s.entities[c] = consolidate.NewEntity(c, base)
}

// RemoveCube drops the entity for c, if any.
func (s *InstanceSink) RemoveCube(c grid.Cell) {
	delete(s.entities, c)
}

// Len returns the number of entities.
func (s *InstanceSink) Len() int { return len(s.entities) }

// Entity returns the entity at c.
func (s *InstanceSink) Entity(c grid.Cell) (*consolidate.Entity, bool) {
	e, ok := s.entities[c]
	return e, ok
}

// Entities returns every entity ordered by cell.
func (s *InstanceSink) Entities() []*consolidate.Entity {
	out := make([]*consolidate.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *consolidate.Entity) int {
		switch {
		case a.Cell.Less(b.Cell):
			return -1
		case b.Cell.Less(a.Cell):
			return 1
		}
		return 0
	})
	return out
}

// Select returns the entities at the given cells in first-seen order,
// skipping empty and repeated cells.
func (s *InstanceSink) Select(cells []grid.Cell) []*consolidate.Entity {
	var out []*consolidate.Entity
	seen := make(map[grid.Cell]struct{}, len(cells))
	for _, c := range cells {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if e, ok := s.entities[c]; ok {
			out = append(out, e)
		}
	}
	return out
}

// WorldMeshes returns every entity's geometry in world space, ordered by
// cell.
func (s *InstanceSink) WorldMeshes() []*kernel.Mesh {
	ents := s.Entities()
	out := make([]*kernel.Mesh, len(ents))
	for i, e := range ents {
		out[i] = e.WorldMesh()
	}
	return out
}

// Clear drops every entity.
func (s *InstanceSink) Clear() {
	clear(s.entities)
}
