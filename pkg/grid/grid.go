// Package grid defines the voxel lattice: its dimensions, the editing
// orientation, the active layer, and the mapping between plane-local
// (u, v, layer) coordinates and world cells.
package grid

import (
	"errors"
	"fmt"
	"strings"
)

// Axis identifies one of the three world axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Orientation selects the editing plane. The remaining axis is the
// layer (depth) axis.
type Orientation int

const (
	XY Orientation = iota // layer axis z
	XZ                    // layer axis y
	YZ                    // layer axis x
)

func (o Orientation) String() string {
	switch o {
	case XY:
		return "XY"
	case XZ:
		return "XZ"
	case YZ:
		return "YZ"
	default:
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
}

// ParseOrientation accepts "XY", "XZ" or "YZ" in any case.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "XY":
		return XY, nil
	case "XZ":
		return XZ, nil
	case "YZ":
		return YZ, nil
	}
	return XY, fmt.Errorf("invalid orientation %q, expected XY, XZ or YZ", s)
}

// LayerAxis returns the depth axis for the orientation.
func (o Orientation) LayerAxis() Axis {
	switch o {
	case XZ:
		return AxisY
	case YZ:
		return AxisX
	default:
		return AxisZ
	}
}

// PlaneAxes returns the two in-plane axes in their fixed order.
func (o Orientation) PlaneAxes() (first, second Axis) {
	switch o {
	case XZ:
		return AxisX, AxisZ
	case YZ:
		return AxisY, AxisZ
	default:
		return AxisX, AxisY
	}
}

// Cell is an integer voxel coordinate. It is comparable and used
// directly as a map key.
type Cell struct {
	X, Y, Z int
}

// Get returns the coordinate along a.
func (c Cell) Get(a Axis) int {
	switch a {
	case AxisX:
		return c.X
	case AxisY:
		return c.Y
	default:
		return c.Z
	}
}

// With returns a copy of c with the coordinate along a replaced by v.
func (c Cell) With(a Axis, v int) Cell {
	switch a {
	case AxisX:
		c.X = v
	case AxisY:
		c.Y = v
	default:
		c.Z = v
	}
	return c
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Less orders cells by X, then Y, then Z.
func (c Cell) Less(o Cell) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.Z < o.Z
}

// MinDim is the smallest extent allowed along any axis.
const MinDim = 1

// ErrInvalidSpec is returned by Validate for malformed grid settings.
var ErrInvalidSpec = errors.New("invalid grid spec")

// Spec is the grid description owned by an editing session.
type Spec struct {
	DimX, DimY, DimZ int
	Orientation      Orientation
	Layer            int
}

// New returns a spec with the given dimensions, XY orientation and
// layer 0.
func New(x, y, z int) Spec {
	return Spec{DimX: x, DimY: y, DimZ: z}
}

// Validate checks dimensions, orientation and layer sign. A layer past
// the end of the layer axis is allowed; it only suppresses layer
// visuals and placement.
func (s Spec) Validate() error {
	if s.DimX < MinDim || s.DimY < MinDim || s.DimZ < MinDim {
		return fmt.Errorf("%w: dimensions %dx%dx%d must all be >= %d",
			ErrInvalidSpec, s.DimX, s.DimY, s.DimZ, MinDim)
	}
	if s.Orientation < XY || s.Orientation > YZ {
		return fmt.Errorf("%w: unknown orientation %d", ErrInvalidSpec, int(s.Orientation))
	}
	if s.Layer < 0 {
		return fmt.Errorf("%w: layer %d is negative", ErrInvalidSpec, s.Layer)
	}
	return nil
}

// Dim returns the extent along a.
func (s Spec) Dim(a Axis) int {
	switch a {
	case AxisX:
		return s.DimX
	case AxisY:
		return s.DimY
	default:
		return s.DimZ
	}
}

// LayerAxis is shorthand for s.Orientation.LayerAxis().
func (s Spec) LayerAxis() Axis { return s.Orientation.LayerAxis() }

// PlaneAxes is shorthand for s.Orientation.PlaneAxes().
func (s Spec) PlaneAxes() (Axis, Axis) { return s.Orientation.PlaneAxes() }

// LayerInRange reports whether the current layer lies inside the grid.
func (s Spec) LayerInRange() bool {
	return s.Layer >= 0 && s.Layer < s.Dim(s.LayerAxis())
}

// Compose places u on the first in-plane axis, v on the second and layer
// on the layer axis.
func (s Spec) Compose(u, v, layer int) Cell {
	a, b := s.PlaneAxes()
	var c Cell
	c = c.With(a, u)
	c = c.With(b, v)
	c = c.With(s.LayerAxis(), layer)
	return c
}

// Decompose is the inverse of Compose.
func (s Spec) Decompose(c Cell) (u, v, layer int) {
	a, b := s.PlaneAxes()
	return c.Get(a), c.Get(b), c.Get(s.LayerAxis())
}

// Contains reports whether c lies inside the grid.
func (s Spec) Contains(c Cell) bool {
	return c.X >= 0 && c.X < s.DimX &&
		c.Y >= 0 && c.Y < s.DimY &&
		c.Z >= 0 && c.Z < s.DimZ
}

// CellCount returns DimX*DimY*DimZ.
func (s Spec) CellCount() int {
	return s.DimX * s.DimY * s.DimZ
}
