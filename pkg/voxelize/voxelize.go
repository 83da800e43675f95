// Package voxelize converts a triangulated surface into grid cells by
// probing every cell centre against the nearest point on the surface.
package voxelize

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/voxloom/pkg/bvh"
	"github.com/chazu/voxloom/pkg/grid"
	"github.com/chazu/voxloom/pkg/kernel"
	"github.com/chazu/voxloom/pkg/logging"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// DefaultThreshold is the sample distance used when none is configured.
	DefaultThreshold = 0.5
	// MaxThreshold is the largest accepted sample distance.
	MaxThreshold = 10.0
)

var (
	// ErrNoSurface is returned when the source has no triangles.
	ErrNoSurface = errors.New("voxelize: not a surface mesh")
	// ErrInvalidIndex is returned when a triangle references a missing vertex.
	ErrInvalidIndex = errors.New("voxelize: triangle index out of range")
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("voxelize: invalid config")
)

// Surface is a triangle soup expressed in grid space, where cell (x,y,z)
// occupies [x,x+1)×[y,y+1)×[z,z+1).
type Surface struct {
	Vertices  []r3.Vec
	Triangles [][3]int
}

// Triangulate fan-splits polygons into triangles. A quad (i0,i1,i2,i3)
// becomes (i0,i1,i2) and (i0,i2,i3). Polygons with fewer than three
// corners are dropped.
func Triangulate(polys [][]int) [][3]int {
	var out [][3]int
	for _, p := range polys {
		for i := 1; i+1 < len(p); i++ {
			out = append(out, [3]int{p[0], p[i], p[i+1]})
		}
	}
	return out
}

// FromMesh converts a flat kernel mesh into a Surface.
func FromMesh(m *kernel.Mesh) (Surface, error) {
	if m == nil || m.TriangleCount() == 0 {
		return Surface{}, ErrNoSurface
	}
	s := Surface{
		Vertices:  make([]r3.Vec, m.VertexCount()),
		Triangles: make([][3]int, m.TriangleCount()),
	}
	for i := range s.Vertices {
		s.Vertices[i] = r3.Vec{
			X: float64(m.Vertices[i*3]),
			Y: float64(m.Vertices[i*3+1]),
			Z: float64(m.Vertices[i*3+2]),
		}
	}
	for i := range s.Triangles {
		for j := 0; j < 3; j++ {
			s.Triangles[i][j] = int(m.Indices[i*3+j])
		}
	}
	return s, s.validate()
}

func (s Surface) validate() error {
	if len(s.Triangles) == 0 {
		return ErrNoSurface
	}
	for i, t := range s.Triangles {
		for _, idx := range t {
			if idx < 0 || idx >= len(s.Vertices) {
				return fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrInvalidIndex, i, idx, len(s.Vertices))
			}
		}
	}
	return nil
}

// Config controls surface voxelization.
type Config struct {
	// Threshold is the largest surface distance, in cells, at which a
	// cell centre counts as on the surface.
	Threshold float64
}

// DefaultConfig returns a Config using DefaultThreshold.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold}
}

// Validate checks that the threshold lies in [0, MaxThreshold].
func (c Config) Validate() error {
	if math.IsNaN(c.Threshold) || c.Threshold < 0 || c.Threshold > MaxThreshold {
		return fmt.Errorf("%w: threshold %v outside [0, %v]", ErrInvalidConfig, c.Threshold, MaxThreshold)
	}
	return nil
}

// Placer receives the cells found on the surface. PlaceVoxel reports
// whether the cell was newly occupied.
type Placer interface {
	PlaceVoxel(c grid.Cell) bool
}

// Voxelize samples every cell of the grid and places those whose centre
// lies within cfg.Threshold of the surface. The scan visits (x,y,z) in
// the grid's dimension ranges and maps each through the orientation
// (XY identity, XZ to (x,z,y), YZ to (z,x,y)); mapped cells outside the
// grid are skipped. It returns the number of newly occupied cells.
// Nothing is placed when an error is returned.
func Voxelize(s Surface, spec grid.Spec, cfg Config, p Placer) (int, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if err := s.validate(); err != nil {
		return 0, err
	}
	tree, err := bvh.Build(s.Vertices, s.Triangles)
	if err != nil {
		return 0, fmt.Errorf("voxelize: %w", err)
	}

	placed, hits, skipped := 0, 0, 0
	for x := 0; x < spec.DimX; x++ {
		for y := 0; y < spec.DimY; y++ {
			for z := 0; z < spec.DimZ; z++ {
				target := spec.Compose(x, y, z)
				if !spec.Contains(target) {
					skipped++
					continue
				}
				sample := r3.Vec{
					X: float64(target.X) + 0.5,
					Y: float64(target.Y) + 0.5,
					Z: float64(target.Z) + 0.5,
				}
				hit, ok := tree.Nearest(sample)
				if !ok || hit.Distance > cfg.Threshold {
					continue
				}
				hits++
				if p.PlaceVoxel(target) {
					placed++
				}
			}
		}
	}

	logging.Logger().Info("voxelize",
		"orientation", spec.Orientation.String(),
		"triangles", tree.Len(),
		"threshold", cfg.Threshold,
		"hits", hits,
		"placed", placed,
		"skipped", skipped)
	return placed, nil
}
