package export

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/voxloom/pkg/kernel"
	"github.com/qmuntal/gltf"
)

func TestWriteGLB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.glb")
	if err := WriteGLB(kernel.UnitCube(), path); err != nil {
		t.Fatalf("WriteGLB() error = %v", err)
	}

	doc, err := gltf.Open(path)
	if err != nil {
		t.Fatalf("gltf.Open() error = %v", err)
	}
	if doc.Asset.Generator != Generator {
		t.Errorf("Generator = %q, want %q", doc.Asset.Generator, Generator)
	}
	if len(doc.Meshes) != 1 || len(doc.Meshes[0].Primitives) != 1 {
		t.Fatalf("got %d meshes", len(doc.Meshes))
	}
	prim := doc.Meshes[0].Primitives[0]
	pos := doc.Accessors[prim.Attributes[gltf.POSITION]]
	if pos.Count != 24 {
		t.Errorf("position count = %d, want 24", pos.Count)
	}
	if prim.Indices == nil || doc.Accessors[*prim.Indices].Count != 36 {
		t.Error("index accessor missing or wrong size")
	}
	if _, ok := prim.Attributes[gltf.NORMAL]; !ok {
		t.Error("normal attribute missing")
	}
}

func TestDocumentComputesMissingNormals(t *testing.T) {
	m := &kernel.Mesh{
		Vertices: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Indices:  []uint32{0, 1, 2},
	}
	doc, err := Document(m)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Meshes) != 1 || doc.Meshes[0].Name != "Voxels" {
		t.Errorf("unexpected mesh %+v", doc.Meshes)
	}
	n := faceNormals([][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, m.Indices)
	if n[0] != [3]float32{0, 0, 1} {
		t.Errorf("face normal = %v, want +Z", n[0])
	}
}

func TestDocumentRejects(t *testing.T) {
	if _, err := Document(nil); !errors.Is(err, ErrEmptyMesh) {
		t.Errorf("Document(nil) error = %v, want ErrEmptyMesh", err)
	}
	if _, err := Document(&kernel.Mesh{Vertices: []float32{0, 0, 0}}); !errors.Is(err, ErrEmptyMesh) {
		t.Errorf("Document(no triangles) error = %v", err)
	}
	bad := &kernel.Mesh{Vertices: []float32{0, 0, 0}, Indices: []uint32{0, 0, 5}}
	if _, err := Document(bad); err == nil {
		t.Error("expected error for out-of-range index")
	}
}

func TestDocumentMaterialAndScene(t *testing.T) {
	doc, err := Document(kernel.UnitCube())
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Materials) != 1 || doc.Materials[0].PBRMetallicRoughness == nil {
		t.Fatalf("materials = %+v", doc.Materials)
	}
	if got := doc.Materials[0].PBRMetallicRoughness.BaseColorFactor; got == nil || *got != BaseColor {
		t.Errorf("BaseColorFactor = %v, want %v", got, BaseColor)
	}
	prim := doc.Meshes[0].Primitives[0]
	if prim.Material == nil || *prim.Material != 0 {
		t.Errorf("primitive material = %v, want 0", prim.Material)
	}
	if len(doc.Scenes) != 1 || len(doc.Scenes[0].Nodes) != 1 || doc.Scenes[0].Nodes[0] != 0 {
		t.Errorf("scene nodes = %v, want [0]", doc.Scenes[0].Nodes)
	}
	if doc.Nodes[0].Mesh == nil || *doc.Nodes[0].Mesh != 0 {
		t.Errorf("node mesh = %v, want 0", doc.Nodes[0].Mesh)
	}
}
