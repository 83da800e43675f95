// Package ray projects world-space pointer rays onto the active layer
// plane and snaps the hit to a grid cell.
package ray

import (
	"math"

	"github.com/chazu/voxloom/pkg/grid"
	"gonum.org/v1/gonum/spatial/r3"
)

// ParallelEpsilon is the smallest |dir·normal| treated as an
// intersection. Below it the ray runs along the plane.
const ParallelEpsilon = 1e-5

// eraseLift moves the erase plane to the middle of the layer slab.
const eraseLift = 0.5

// Snap converts a continuous in-plane coordinate to a cell index.
type Snap int

const (
	// SnapFloor rounds toward negative infinity.
	SnapFloor Snap = iota
	// SnapTruncate rounds toward zero. It maps (-1, 0) onto index 0.
	SnapTruncate
)

func (s Snap) String() string {
	if s == SnapTruncate {
		return "truncate"
	}
	return "floor"
}

func (s Snap) apply(f float64) int {
	if s == SnapTruncate {
		return int(f)
	}
	return int(math.Floor(f))
}

// PlaceOffset is the plane offset used for placement: the lower face of
// the layer slab.
func PlaceOffset(spec grid.Spec) float64 {
	return float64(spec.Layer)
}

// EraseOffset is the plane offset used for erasure: the mid-plane of the
// layer slab.
func EraseOffset(spec grid.Spec) float64 {
	return float64(spec.Layer) + eraseLift
}

// axisVec returns the unit vector along a.
func axisVec(a grid.Axis) r3.Vec {
	switch a {
	case grid.AxisX:
		return r3.Vec{X: 1}
	case grid.AxisY:
		return r3.Vec{Y: 1}
	default:
		return r3.Vec{Z: 1}
	}
}

func component(v r3.Vec, a grid.Axis) float64 {
	switch a {
	case grid.AxisX:
		return v.X
	case grid.AxisY:
		return v.Y
	default:
		return v.Z
	}
}

// Hit intersects the ray with the plane perpendicular to the layer axis
// at offset. It returns false when the ray is (nearly) parallel to the
// plane.
func Hit(origin, dir r3.Vec, spec grid.Spec, offset float64) (r3.Vec, bool) {
	n := axisVec(spec.LayerAxis())
	denom := r3.Dot(dir, n)
	if math.Abs(denom) < ParallelEpsilon {
		return r3.Vec{}, false
	}
	p := r3.Scale(offset, n)
	t := r3.Dot(r3.Sub(p, origin), n) / denom
	return r3.Add(origin, r3.Scale(t, dir)), true
}

// Projector snaps ray hits to cells.
type Projector struct {
	Snap Snap
}

// Project returns the cell under the ray on the plane at offset. The
// layer coordinate is always spec.Layer regardless of offset. It returns
// false for parallel rays and for cells outside the grid.
func (p Projector) Project(origin, dir r3.Vec, spec grid.Spec, offset float64) (grid.Cell, bool) {
	hit, ok := Hit(origin, dir, spec, offset)
	if !ok {
		return grid.Cell{}, false
	}
	a, b := spec.PlaneAxes()
	u := p.Snap.apply(component(hit, a))
	v := p.Snap.apply(component(hit, b))
	c := spec.Compose(u, v, spec.Layer)
	if !spec.Contains(c) {
		return grid.Cell{}, false
	}
	return c, true
}

// Place projects onto the placement plane.
func (p Projector) Place(origin, dir r3.Vec, spec grid.Spec) (grid.Cell, bool) {
	return p.Project(origin, dir, spec, PlaceOffset(spec))
}

// Erase projects onto the erase plane.
func (p Projector) Erase(origin, dir r3.Vec, spec grid.Spec) (grid.Cell, bool) {
	return p.Project(origin, dir, spec, EraseOffset(spec))
}
