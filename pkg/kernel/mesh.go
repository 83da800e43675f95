package kernel

// Mesh is a triangle mesh suitable for rendering and voxelizing.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name"`     // object name, e.g. "voxel_1_2_3"
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Clone returns a deep copy of m.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Vertices: append([]float32(nil), m.Vertices...),
		Normals:  append([]float32(nil), m.Normals...),
		Indices:  append([]uint32(nil), m.Indices...),
		Name:     m.Name,
	}
}

// Translate offsets every vertex in place.
func (m *Mesh) Translate(x, y, z float32) {
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		m.Vertices[i] += x
		m.Vertices[i+1] += y
		m.Vertices[i+2] += z
	}
}

// Bounds returns the axis-aligned bounds of the vertices. Both are zero
// for an empty mesh.
func (m *Mesh) Bounds() (min, max [3]float32) {
	if m.IsEmpty() {
		return min, max
	}
	copy(min[:], m.Vertices[:3])
	copy(max[:], m.Vertices[:3])
	for i := 3; i+2 < len(m.Vertices); i += 3 {
		for a := 0; a < 3; a++ {
			v := m.Vertices[i+a]
			if v < min[a] {
				min[a] = v
			}
			if v > max[a] {
				max[a] = v
			}
		}
	}
	return min, max
}

// cubeFaces lists each face of the unit cube as an outward normal and
// four counter-clockwise corners.
var cubeFaces = [6]struct {
	n       [3]float32
	corners [4][3]float32
}{
	{[3]float32{1, 0, 0}, [4][3]float32{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}},
	{[3]float32{-1, 0, 0}, [4][3]float32{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	{[3]float32{0, 1, 0}, [4][3]float32{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}},
	{[3]float32{0, -1, 0}, [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{[3]float32{0, 0, 1}, [4][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
	{[3]float32{0, 0, -1}, [4][3]float32{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}},
}

// UnitCube returns a cube of edge 1 centred on the origin with flat
// normals: 24 vertices, 12 triangles.
func UnitCube() *Mesh {
	m := &Mesh{
		Vertices: make([]float32, 0, 24*3),
		Normals:  make([]float32, 0, 24*3),
		Indices:  make([]uint32, 0, 36),
		Name:     "VoxelBase",
	}
	for _, f := range cubeFaces {
		base := uint32(m.VertexCount())
		for _, c := range f.corners {
			m.Vertices = append(m.Vertices, c[0]-0.5, c[1]-0.5, c[2]-0.5)
			m.Normals = append(m.Normals, f.n[0], f.n[1], f.n[2])
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}
