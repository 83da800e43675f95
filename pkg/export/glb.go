// Package export writes meshes to interchange formats.
package export

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/voxloom/pkg/kernel"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// Generator is recorded in the asset block of every exported file.
const Generator = "voxloom"

// ErrEmptyMesh is returned when there is nothing to export.
var ErrEmptyMesh = errors.New("export: mesh has no triangles")

// BaseColor is the material colour applied to exported meshes.
var BaseColor = [4]float64{0.8, 0.8, 0.8, 1}

// Document builds a single-mesh glTF document from m. Normals are taken
// from the mesh when present and computed per face otherwise.
func Document(m *kernel.Mesh) (*gltf.Document, error) {
	if m == nil || m.TriangleCount() == 0 {
		return nil, ErrEmptyMesh
	}
	nv := m.VertexCount()
	for _, idx := range m.Indices {
		if int(idx) >= nv {
			return nil, fmt.Errorf("export: index %d out of range for %d vertices", idx, nv)
		}
	}

	positions := make([][3]float32, nv)
	for i := range positions {
		positions[i] = [3]float32{m.Vertices[i*3], m.Vertices[i*3+1], m.Vertices[i*3+2]}
	}
	var normals [][3]float32
	if len(m.Normals) == len(m.Vertices) {
		normals = make([][3]float32, nv)
		for i := range normals {
			normals[i] = [3]float32{m.Normals[i*3], m.Normals[i*3+1], m.Normals[i*3+2]}
		}
	} else {
		normals = faceNormals(positions, m.Indices)
	}
	indices := make([]uint32, len(m.Indices))
	copy(indices, m.Indices)

	doc := gltf.NewDocument()
	doc.Asset.Generator = Generator

	posAccessor := modeler.WritePosition(doc, positions)
	normalAccessor := modeler.WriteNormal(doc, normals)
	indicesAccessor := modeler.WriteIndices(doc, indices)

	prim := &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{
			gltf.POSITION: posAccessor,
			gltf.NORMAL:   normalAccessor,
		},
		Indices:  gltf.Index(indicesAccessor),
		Material: gltf.Index(0),
	}
	color := BaseColor
	doc.Materials = []*gltf.Material{{
		Name:      "Voxel",
		AlphaMode: gltf.AlphaOpaque,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &color,
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
	}}

	name := m.Name
	if name == "" {
		name = "Voxels"
	}
	doc.Meshes = []*gltf.Mesh{{Name: name, Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: name, Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc, nil
}

// WriteGLB writes m to path as binary glTF.
func WriteGLB(m *kernel.Mesh, path string) error {
	doc, err := Document(m)
	if err != nil {
		return err
	}
	return gltf.SaveBinary(doc, path)
}

// faceNormals assigns each vertex the normal of the last face using it.
func faceNormals(positions [][3]float32, indices []uint32) [][3]float32 {
	normals := make([][3]float32, len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		v0, v1, v2 := indices[i], indices[i+1], indices[i+2]
		p0, p1, p2 := positions[v0], positions[v1], positions[v2]
		vec1 := [3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
		vec2 := [3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}
		cross := [3]float32{
			vec1[1]*vec2[2] - vec1[2]*vec2[1],
			vec1[2]*vec2[0] - vec1[0]*vec2[2],
			vec1[0]*vec2[1] - vec1[1]*vec2[0],
		}
		length := float32(math.Sqrt(float64(cross[0]*cross[0] + cross[1]*cross[1] + cross[2]*cross[2])))
		if length > 0 {
			cross[0] /= length
			cross[1] /= length
			cross[2] /= length
		}
		normals[v0] = cross
		normals[v1] = cross
		normals[v2] = cross
	}
	return normals
}
