// Package session owns an editing session: the grid, brush and voxelizer
// settings, the occupancy store and the geometry sink that mirrors it.
// Every membership change goes through PlaceVoxel or EraseVoxel.
package session

import (
	"fmt"

	"github.com/chazu/voxloom/pkg/brush"
	"github.com/chazu/voxloom/pkg/config"
	"github.com/chazu/voxloom/pkg/grid"
	"github.com/chazu/voxloom/pkg/kernel"
	"github.com/chazu/voxloom/pkg/logging"
	"github.com/chazu/voxloom/pkg/ray"
	"github.com/chazu/voxloom/pkg/snapshot"
	"github.com/chazu/voxloom/pkg/voxel"
	"github.com/chazu/voxloom/pkg/voxelize"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// GeometrySink mirrors store membership as renderable geometry.
// EmitCube is called once when a cell becomes occupied, RemoveCube once
// when it is vacated. base is the session's shared cube mesh.
type GeometrySink interface {
	EmitCube(c grid.Cell, base *kernel.Mesh)
	RemoveCube(c grid.Cell)
}

type nopSink struct{}

func (nopSink) EmitCube(grid.Cell, *kernel.Mesh) {}
func (nopSink) RemoveCube(grid.Cell)             {}

// Session is a single-threaded editing session.
type Session struct {
	id       uuid.UUID
	settings config.Settings
	spec     grid.Spec
	brush    brush.Config
	vox      voxelize.Config
	proj     ray.Projector
	store    *voxel.Store
	base     *kernel.Mesh
	sink     GeometrySink
	frame    grid.Frame
}

// New creates a session from validated settings. A nil sink discards
// geometry updates.
func New(s config.Settings, sink GeometrySink) (*Session, error) {
	if sink == nil {
		sink = nopSink{}
	}
	sess := &Session{
		id:    uuid.New(),
		store: voxel.NewStore(),
		base:  kernel.UnitCube(),
		sink:  sink,
	}
	if _, err := sess.ApplySettings(s); err != nil {
		return nil, err
	}
	return sess, nil
}

// ID identifies the session.
func (s *Session) ID() uuid.UUID { return s.id }

// Settings returns the active settings.
func (s *Session) Settings() config.Settings { return s.settings }

// Spec returns the active grid spec.
func (s *Session) Spec() grid.Spec { return s.spec }

// Brush returns the active brush.
func (s *Session) Brush() brush.Config { return s.brush }

// Base returns the shared cube every instance references.
func (s *Session) Base() *kernel.Mesh { return s.base }

// Frame returns the grid outline built by the last RebuildFrame.
func (s *Session) Frame() grid.Frame { return s.frame }

// Len returns the number of occupied cells.
func (s *Session) Len() int { return s.store.Len() }

// Contains reports whether c is occupied.
func (s *Session) Contains(c grid.Cell) bool { return s.store.Contains(c) }

// Cells returns the occupied cells in sorted order.
func (s *Session) Cells() []grid.Cell { return s.store.Snapshot() }

// Fingerprint returns the store's content digest.
func (s *Session) Fingerprint() uint64 { return s.store.Fingerprint() }

// Store exposes the occupancy set for read-only consumers such as the
// surface mesher. Mutating it directly bypasses the sink.
func (s *Session) Store() *voxel.Store { return s.store }

// PlaceVoxel occupies c. Cells outside the grid are refused. It returns
// true when c was newly occupied, in which case the sink was notified.
func (s *Session) PlaceVoxel(c grid.Cell) bool {
	if !s.spec.Contains(c) {
		return false
	}
	if !s.store.Insert(c) {
		return false
	}
	s.sink.EmitCube(c, s.base)
	return true
}

// EraseVoxel vacates c. It returns true when c was occupied. Cells left
// outside the grid by a resize can still be erased.
func (s *Session) EraseVoxel(c grid.Cell) bool {
	if !s.store.Remove(c) {
		return false
	}
	s.sink.RemoveCube(c)
	return true
}

// PlaceAt projects the ray onto the placement plane, expands the brush
// and occupies every resulting cell. It returns the number of newly
// occupied cells; geometric misses return 0.
func (s *Session) PlaceAt(origin, dir r3.Vec) int {
	center, ok := s.proj.Place(origin, dir, s.spec)
	if !ok {
		return 0
	}
	n := 0
	for _, c := range brush.Expand(center, s.brush, s.spec) {
		if s.PlaceVoxel(c) {
			n++
		}
	}
	logging.Logger().Debug("place", "center", center.String(), "placed", n)
	return n
}

// EraseAt projects the ray onto the erase plane, expands the brush and
// vacates every resulting cell. It returns the number of cells removed.
func (s *Session) EraseAt(origin, dir r3.Vec) int {
	center, ok := s.proj.Erase(origin, dir, s.spec)
	if !ok {
		return 0
	}
	n := 0
	for _, c := range brush.Expand(center, s.brush, s.spec) {
		if s.EraseVoxel(c) {
			n++
		}
	}
	logging.Logger().Debug("erase", "center", center.String(), "erased", n)
	return n
}

// Voxelize places every cell whose centre lies within the configured
// threshold of surf.
func (s *Session) Voxelize(surf voxelize.Surface) (int, error) {
	return voxelize.Voxelize(surf, s.spec, s.vox, s)
}

// Clear vacates every cell and returns how many were removed.
func (s *Session) Clear() int {
	n := 0
	for _, c := range s.store.Snapshot() {
		if s.EraseVoxel(c) {
			n++
		}
	}
	return n
}

// ApplySettings validates cfg, replaces the grid, brush, voxelizer and
// snapping settings, and rebuilds the grid frame. Occupied cells are
// kept even when they fall outside a smaller grid. On error nothing
// changes.
func (s *Session) ApplySettings(cfg config.Settings) (grid.Frame, error) {
	if err := cfg.Validate(); err != nil {
		return s.frame, err
	}
	spec, err := cfg.Grid()
	if err != nil {
		return s.frame, err
	}
	b, err := cfg.Brush()
	if err != nil {
		return s.frame, err
	}
	proj, err := cfg.Snapping()
	if err != nil {
		return s.frame, err
	}
	s.settings = cfg
	s.spec = spec
	s.brush = b
	s.vox = cfg.Voxelize()
	s.proj = proj

	logging.Logger().Info("settings applied",
		"session", s.id.String(),
		"grid", fmt.Sprintf("%dx%dx%d", spec.DimX, spec.DimY, spec.DimZ),
		"orientation", spec.Orientation.String(),
		"layer", spec.Layer,
		"brush", b.Shape.String(),
		"radius", b.Radius)
	return s.RebuildFrame(), nil
}

// RebuildFrame recomputes the master and layer outlines from the current
// spec and visibility setting.
func (s *Session) RebuildFrame() grid.Frame {
	s.frame = s.spec.Frame(s.settings.ShowGrid)
	return s.frame
}

// Capture returns a snapshot of the grid spec and occupied cells.
func (s *Session) Capture() snapshot.Snapshot {
	return snapshot.Capture(s.spec, s.store)
}

// Restore adopts the snapshot's grid spec and replaces the occupied
// cells with the snapshot's, notifying the sink of every change.
func (s *Session) Restore(snap snapshot.Snapshot) error {
	cfg := s.settings
	cfg.DimX, cfg.DimY, cfg.DimZ = snap.Spec.DimX, snap.Spec.DimY, snap.Spec.DimZ
	cfg.Orientation = snap.Spec.Orientation.String()
	cfg.CurrentLayer = snap.Spec.Layer
	if _, err := s.ApplySettings(cfg); err != nil {
		return fmt.Errorf("session: restore: %w", err)
	}
	keep := make(map[grid.Cell]struct{}, len(snap.Cells))
	for _, c := range snap.Cells {
		keep[c] = struct{}{}
	}
	for _, c := range s.store.Snapshot() {
		if _, ok := keep[c]; !ok {
			s.EraseVoxel(c)
		}
	}
	for _, c := range snap.Cells {
		s.PlaceVoxel(c)
	}
	return nil
}
