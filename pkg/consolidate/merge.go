package consolidate

import (
	"fmt"
	"math"

	"github.com/chazu/voxloom/pkg/kernel"
	"github.com/chazu/voxloom/pkg/logging"
	"github.com/dhconnelly/rtreego"
)

// DefaultMergeDistance is the weld distance used by the optimise action.
const DefaultMergeDistance = 0.0001

// weldPad widens search boxes so that vertices exactly epsilon apart,
// or exactly coincident when epsilon is zero, still overlap.
const weldPad = 1e-7

// weldVertex is a representative vertex held in the R-tree.
type weldVertex struct {
	index int
	pos   rtreego.Point
	rect  rtreego.Rect
}

func (w *weldVertex) Bounds() rtreego.Rect { return w.rect }

// JoinAndMerge concatenates meshes into one and welds vertices lying
// within epsilon of an earlier vertex. Triangles that collapse under the
// weld are dropped. Normals are rebuilt from the surviving faces.
func JoinAndMerge(meshes []*kernel.Mesh, epsilon float64) (*kernel.Mesh, error) {
	if len(meshes) < 2 {
		logging.Logger().Warn("join and merge", "meshes", len(meshes), "error", ErrTooFewObjects)
		return nil, ErrTooFewObjects
	}
	if math.IsNaN(epsilon) || epsilon < 0 {
		return nil, fmt.Errorf("consolidate: merge distance %v must be >= 0", epsilon)
	}

	joined, err := join(meshes)
	if err != nil {
		return nil, err
	}

	remap, kept := weld(joined.Vertices, epsilon)

	out := &kernel.Mesh{Name: meshes[0].Name}
	newIndex := make([]int, len(remap))
	for i := range newIndex {
		newIndex[i] = -1
	}
	for _, old := range kept {
		newIndex[old] = out.VertexCount()
		out.Vertices = append(out.Vertices, joined.Vertices[old*3:old*3+3]...)
	}
	dropped := 0
	for t := 0; t < joined.TriangleCount(); t++ {
		a := newIndex[remap[joined.Indices[t*3]]]
		b := newIndex[remap[joined.Indices[t*3+1]]]
		c := newIndex[remap[joined.Indices[t*3+2]]]
		if a == b || b == c || a == c {
			dropped++
			continue
		}
		out.Indices = append(out.Indices, uint32(a), uint32(b), uint32(c))
	}
	if out.TriangleCount() == 0 {
		return nil, fmt.Errorf("%w: every triangle collapsed", ErrNotMesh)
	}
	out.Normals = vertexNormals(out)

	logging.Logger().Info("join and merge",
		"meshes", len(meshes),
		"vertices_in", joined.VertexCount(),
		"vertices_out", out.VertexCount(),
		"triangles_dropped", dropped)
	return out, nil
}

// join appends the meshes into one, offsetting indices.
func join(meshes []*kernel.Mesh) (*kernel.Mesh, error) {
	out := &kernel.Mesh{}
	for i, m := range meshes {
		if m == nil {
			return nil, fmt.Errorf("%w: object %d is empty", ErrNotMesh, i)
		}
		if len(m.Vertices)%3 != 0 || len(m.Indices)%3 != 0 {
			return nil, fmt.Errorf("%w: object %d has ragged arrays", ErrNotMesh, i)
		}
		base := uint32(out.VertexCount())
		for _, idx := range m.Indices {
			if int(idx) >= m.VertexCount() {
				return nil, fmt.Errorf("%w: object %d references vertex %d of %d", ErrNotMesh, i, idx, m.VertexCount())
			}
			out.Indices = append(out.Indices, base+idx)
		}
		out.Vertices = append(out.Vertices, m.Vertices...)
	}
	if out.TriangleCount() == 0 {
		return nil, fmt.Errorf("%w: no triangles", ErrNotMesh)
	}
	return out, nil
}

// weld maps each vertex to the index of its representative and returns
// the representatives in first-seen order.
func weld(vertices []float32, epsilon float64) (remap []int, kept []int) {
	n := len(vertices) / 3
	remap = make([]int, n)
	tree := rtreego.NewTree(3, 25, 50)
	half := epsilon/2 + weldPad

	for i := 0; i < n; i++ {
		p := rtreego.Point{
			float64(vertices[i*3]),
			float64(vertices[i*3+1]),
			float64(vertices[i*3+2]),
		}
		rect := p.ToRect(half)
		rep := -1
		for _, obj := range tree.SearchIntersect(rect) {
			w := obj.(*weldVertex)
			if dist(p, w.pos) <= epsilon && (rep < 0 || w.index < rep) {
				rep = w.index
			}
		}
		if rep >= 0 {
			remap[i] = rep
			continue
		}
		remap[i] = i
		kept = append(kept, i)
		tree.Insert(&weldVertex{index: i, pos: p, rect: rect})
	}
	return remap, kept
}

func dist(a, b rtreego.Point) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return math.Sqrt(s)
}

// vertexNormals returns area-weighted vertex normals.
func vertexNormals(m *kernel.Mesh) []float32 {
	acc := make([]float64, len(m.Vertices))
	for t := 0; t < m.TriangleCount(); t++ {
		i0, i1, i2 := m.Indices[t*3], m.Indices[t*3+1], m.Indices[t*3+2]
		p0 := m.Vertices[i0*3 : i0*3+3]
		p1 := m.Vertices[i1*3 : i1*3+3]
		p2 := m.Vertices[i2*3 : i2*3+3]
		e1 := [3]float64{float64(p1[0] - p0[0]), float64(p1[1] - p0[1]), float64(p1[2] - p0[2])}
		e2 := [3]float64{float64(p2[0] - p0[0]), float64(p2[1] - p0[1]), float64(p2[2] - p0[2])}
		n := [3]float64{
			e1[1]*e2[2] - e1[2]*e2[1],
			e1[2]*e2[0] - e1[0]*e2[2],
			e1[0]*e2[1] - e1[1]*e2[0],
		}
		for _, idx := range [3]uint32{i0, i1, i2} {
			acc[idx*3] += n[0]
			acc[idx*3+1] += n[1]
			acc[idx*3+2] += n[2]
		}
	}
	out := make([]float32, len(acc))
	for i := 0; i+2 < len(acc); i += 3 {
		l := math.Sqrt(acc[i]*acc[i] + acc[i+1]*acc[i+1] + acc[i+2]*acc[i+2])
		if l == 0 {
			continue
		}
		out[i] = float32(acc[i] / l)
		out[i+1] = float32(acc[i+1] / l)
		out[i+2] = float32(acc[i+2] / l)
	}
	return out
}
