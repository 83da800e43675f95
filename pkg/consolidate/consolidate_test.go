package consolidate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/chazu/voxloom/pkg/grid"
	"github.com/chazu/voxloom/pkg/kernel"
)

func TestNewEntity(t *testing.T) {
	base := kernel.UnitCube()
	e := NewEntity(grid.Cell{X: 1, Y: 2, Z: 3}, base)
	if e.Name != "voxel_1_2_3" {
		t.Errorf("Name = %q, want voxel_1_2_3", e.Name)
	}
	if e.Location.X != 1.5 || e.Location.Y != 2.5 || e.Location.Z != 3.5 {
		t.Errorf("Location = %v, want cell centre", e.Location)
	}
	if e.Geometry != base || e.Owned {
		t.Error("new entity should share the base geometry")
	}
	if other := NewEntity(grid.Cell{}, base); other.ID == e.ID {
		t.Error("entities share an ID")
	}
}

func TestMakeReal(t *testing.T) {
	base := kernel.UnitCube()
	a := NewEntity(grid.Cell{X: 0}, base)
	b := NewEntity(grid.Cell{X: 3}, base)
	foreign := &Entity{Name: "Camera", Geometry: base}

	n, err := MakeReal([]*Entity{a, nil, foreign, b})
	if err != nil {
		t.Fatalf("MakeReal() error = %v", err)
	}
	if n != 2 {
		t.Errorf("converted %d, want 2", n)
	}
	for _, e := range []*Entity{a, b} {
		if !e.Owned || e.Geometry == base {
			t.Errorf("%s still shares base geometry", e.Name)
		}
	}
	if foreign.Owned {
		t.Error("non-voxel entity was converted")
	}
	if a.Geometry == b.Geometry {
		t.Error("converted entities share geometry")
	}

	min, max := b.Geometry.Bounds()
	if min != [3]float32{3, 0, 0} || max != [3]float32{4, 1, 1} {
		t.Errorf("converted bounds = %v..%v, want [3 0 0]..[4 1 1]", min, max)
	}
	if bmin, _ := base.Bounds(); bmin != [3]float32{-0.5, -0.5, -0.5} {
		t.Errorf("base cube moved to %v", bmin)
	}

	// Converting again finds nothing left to do.
	if _, err := MakeReal([]*Entity{a, b}); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("second MakeReal error = %v, want ErrNothingSelected", err)
	}
}

func TestMakeRealNothingSelected(t *testing.T) {
	for _, sel := range [][]*Entity{nil, {nil}, {{Name: "Light"}}} {
		if _, err := MakeReal(sel); !errors.Is(err, ErrNothingSelected) {
			t.Errorf("MakeReal(%v) error = %v, want ErrNothingSelected", sel, err)
		}
	}
}

func realCube(c grid.Cell) *kernel.Mesh {
	return NewEntity(c, kernel.UnitCube()).WorldMesh()
}

func TestJoinAndMergeSharedFace(t *testing.T) {
	a := realCube(grid.Cell{X: 0})
	b := realCube(grid.Cell{X: 1})

	m, err := JoinAndMerge([]*kernel.Mesh{a, b}, DefaultMergeDistance)
	if err != nil {
		t.Fatalf("JoinAndMerge() error = %v", err)
	}
	// Two cubes sharing a face have 12 distinct corners.
	if got := m.VertexCount(); got != 12 {
		t.Errorf("VertexCount() = %d, want 12", got)
	}
	if got := m.TriangleCount(); got != 24 {
		t.Errorf("TriangleCount() = %d, want 24", got)
	}
	if len(m.Normals) != len(m.Vertices) {
		t.Errorf("normals length %d != vertices length %d", len(m.Normals), len(m.Vertices))
	}
	for _, idx := range m.Indices {
		if int(idx) >= m.VertexCount() {
			t.Fatalf("index %d out of range", idx)
		}
	}
}

func TestJoinAndMergeDistance(t *testing.T) {
	tests := []struct {
		gap  float32
		eps  float64
		want int
	}{
		{0, 0, 12},
		{0.001, DefaultMergeDistance, 16},
		{0.001, 0.01, 12},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("gap=%v eps=%v", tt.gap, tt.eps), func(t *testing.T) {
			b := realCube(grid.Cell{X: 1})
			b.Translate(tt.gap, 0, 0)
			m, err := JoinAndMerge([]*kernel.Mesh{realCube(grid.Cell{}), b}, tt.eps)
			if err != nil {
				t.Fatal(err)
			}
			if got := m.VertexCount(); got != tt.want {
				t.Errorf("VertexCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestJoinAndMergeDropsCollapsed(t *testing.T) {
	sliver := &kernel.Mesh{
		Vertices: []float32{0, 0, 0, 1, 0, 0, 0.00001, 0, 0},
		Indices:  []uint32{0, 1, 2},
	}
	m, err := JoinAndMerge([]*kernel.Mesh{realCube(grid.Cell{}), sliver}, 0.001)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.TriangleCount(); got != 12 {
		t.Errorf("TriangleCount() = %d, want 12 after dropping the sliver", got)
	}
}

func TestJoinAndMergeErrors(t *testing.T) {
	cube := realCube(grid.Cell{})
	tests := []struct {
		name   string
		meshes []*kernel.Mesh
		eps    float64
		want   error
		sev    Severity
	}{
		{"none", nil, 0, ErrTooFewObjects, SeverityWarning},
		{"one", []*kernel.Mesh{cube}, 0, ErrTooFewObjects, SeverityWarning},
		{"nil mesh", []*kernel.Mesh{cube, nil}, 0, ErrNotMesh, SeverityError},
		{"no triangles", []*kernel.Mesh{{}, {}}, 0, ErrNotMesh, SeverityError},
		{"bad index", []*kernel.Mesh{cube, {Vertices: []float32{0, 0, 0}, Indices: []uint32{0, 1, 2}}}, 0, ErrNotMesh, SeverityError},
		{"all collapsed", []*kernel.Mesh{
			{Vertices: []float32{0, 0, 0, 0, 0, 0, 0, 0, 0}, Indices: []uint32{0, 1, 2}},
			{Vertices: []float32{1, 1, 1, 1, 1, 1, 1, 1, 1}, Indices: []uint32{0, 1, 2}},
		}, 0, ErrNotMesh, SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JoinAndMerge(tt.meshes, tt.eps)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if got := Classify(err); got != tt.sev {
				t.Errorf("Classify() = %v, want %v", got, tt.sev)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil) != SeverityInfo {
		t.Error("nil error should report as info")
	}
	wrapped := fmt.Errorf("make real: %w", ErrNothingSelected)
	if Classify(wrapped) != SeverityWarning {
		t.Error("wrapped ErrNothingSelected should be a warning")
	}
	if Classify(errors.New("boom")) != SeverityError {
		t.Error("unknown errors should be errors")
	}
	tests := []struct {
		sev  Severity
		want string
	}{
		{SeverityInfo, "INFO"},
		{SeverityWarning, "WARNING"},
		{SeverityError, "ERROR"},
		{Severity(7), "Severity(7)"},
	}
	for _, tt := range tests {
		if got := tt.sev.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
