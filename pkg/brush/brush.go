// Package brush expands one target cell into the set of cells touched by
// a single placement or erase step.
package brush

import (
	"fmt"
	"strings"

	"github.com/chazu/voxloom/pkg/grid"
)

// Shape is the brush footprint on the editing plane.
type Shape int

const (
	Single Shape = iota
	Square
	Circle
)

// Radius limits for Square and Circle brushes.
const (
	MinRadius = 1
	MaxRadius = 10
)

func (s Shape) String() string {
	switch s {
	case Single:
		return "SINGLE"
	case Square:
		return "SQUARE"
	case Circle:
		return "CIRCLE"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// ParseShape accepts SINGLE, SQUARE or CIRCLE in any case.
func ParseShape(s string) (Shape, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SINGLE":
		return Single, nil
	case "SQUARE":
		return Square, nil
	case "CIRCLE":
		return Circle, nil
	}
	return Single, fmt.Errorf("invalid brush shape %q, expected SINGLE, SQUARE or CIRCLE", s)
}

// Config selects the brush. Radius is ignored for Single.
type Config struct {
	Shape  Shape
	Radius int
}

// Validate checks the shape and, for area brushes, the radius range.
func (c Config) Validate() error {
	switch c.Shape {
	case Single:
		return nil
	case Square, Circle:
		if c.Radius < MinRadius || c.Radius > MaxRadius {
			return fmt.Errorf("brush radius %d out of range [%d,%d]", c.Radius, MinRadius, MaxRadius)
		}
		return nil
	}
	return fmt.Errorf("unknown brush shape %d", int(c.Shape))
}

// Offsets returns the in-plane (du, dv) offsets before clipping, ordered
// by du then dv. Square yields (2r+1)^2 offsets; Circle keeps those
// with du^2+dv^2 <= r^2.
func (c Config) Offsets() [][2]int {
	if c.Shape == Single {
		return [][2]int{{0, 0}}
	}
	r := c.Radius
	out := make([][2]int, 0, (2*r+1)*(2*r+1))
	for du := -r; du <= r; du++ {
		for dv := -r; dv <= r; dv++ {
			if c.Shape == Circle && du*du+dv*dv > r*r {
				continue
			}
			out = append(out, [2]int{du, dv})
		}
	}
	return out
}

// Expand applies the brush around center on the spec's editing plane.
// The layer coordinate is kept; cells outside the grid are dropped.
func Expand(center grid.Cell, c Config, spec grid.Spec) []grid.Cell {
	u, v, layer := spec.Decompose(center)
	offsets := c.Offsets()
	out := make([]grid.Cell, 0, len(offsets))
	for _, o := range offsets {
		cell := spec.Compose(u+o[0], v+o[1], layer)
		if !spec.Contains(cell) {
			continue
		}
		out = append(out, cell)
	}
	return out
}
