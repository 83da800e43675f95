// Package consolidate turns placed voxel instances into independent
// geometry: MakeReal gives each instance its own mesh, JoinAndMerge
// fuses meshes into one and welds coincident vertices.
package consolidate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/voxloom/pkg/grid"
	"github.com/chazu/voxloom/pkg/kernel"
	"github.com/chazu/voxloom/pkg/logging"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// VoxelPrefix starts the name of every voxel entity.
const VoxelPrefix = "voxel_"

var (
	// ErrNothingSelected is returned by MakeReal when no entity qualifies.
	ErrNothingSelected = errors.New("no voxel instances selected")
	// ErrTooFewObjects is returned by JoinAndMerge for fewer than two meshes.
	ErrTooFewObjects = errors.New("select at least two voxel objects to join")
	// ErrNotMesh is returned by JoinAndMerge when the joined result holds
	// no valid triangles.
	ErrNotMesh = errors.New("joined object is not a mesh")
)

// Entity is one placed voxel. Until made real its Geometry is the
// session's shared base cube, positioned by Location.
type Entity struct {
	ID       uuid.UUID
	Name     string
	Cell     grid.Cell
	Location r3.Vec // centre of the cell
	Geometry *kernel.Mesh
	Owned    bool // Geometry belongs to this entity alone, in world space
}

// NewEntity returns an instance of base centred on c.
func NewEntity(c grid.Cell, base *kernel.Mesh) *Entity {
	return &Entity{
		ID:   uuid.New(),
		Name: CellName(c),
		Cell: c,
		Location: r3.Vec{
			X: float64(c.X) + 0.5,
			Y: float64(c.Y) + 0.5,
			Z: float64(c.Z) + 0.5,
		},
		Geometry: base,
	}
}

// CellName returns the entity name for c, e.g. "voxel_1_2_3".
func CellName(c grid.Cell) string {
	return fmt.Sprintf("%s%d_%d_%d", VoxelPrefix, c.X, c.Y, c.Z)
}

// IsVoxel reports whether e names a voxel instance.
func (e *Entity) IsVoxel() bool {
	return e != nil && strings.HasPrefix(e.Name, VoxelPrefix)
}

// WorldMesh returns the entity's geometry in world space. Owned
// geometry is already there and is returned as is; shared geometry is
// copied and translated.
func (e *Entity) WorldMesh() *kernel.Mesh {
	if e.Owned {
		return e.Geometry
	}
	m := e.Geometry.Clone()
	m.Translate(float32(e.Location.X), float32(e.Location.Y), float32(e.Location.Z))
	m.Name = e.Name
	return m
}

// MakeReal gives every selected voxel entity that still shares its
// geometry a private world-space copy. Nil entities, non-voxel entities
// and entities already owning their geometry are skipped. It returns
// the number of entities converted, or ErrNothingSelected when none
// qualified.
func MakeReal(selected []*Entity) (int, error) {
	n := 0
	for _, e := range selected {
		if !e.IsVoxel() || e.Owned || e.Geometry == nil {
			continue
		}
		e.Geometry = e.WorldMesh()
		e.Owned = true
		n++
	}
	if n == 0 {
		logging.Logger().Warn("make real", "error", ErrNothingSelected)
		return 0, ErrNothingSelected
	}
	logging.Logger().Info("make real", "converted", n)
	return n, nil
}

// Severity is the report class of a consolidation error.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Classify maps err to its report severity. Rejected selections are
// warnings; everything else is an error.
func Classify(err error) Severity {
	switch {
	case err == nil:
		return SeverityInfo
	case errors.Is(err, ErrNothingSelected), errors.Is(err, ErrTooFewObjects):
		return SeverityWarning
	}
	return SeverityError
}
