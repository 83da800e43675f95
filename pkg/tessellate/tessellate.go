// Package tessellate turns voxel occupancy into triangle meshes: a
// greedy-merged outer surface for export, or one stamped base cube per
// cell for instance rendering.
package tessellate

import (
	"fmt"

	"github.com/chazu/voxloom/pkg/grid"
	"github.com/chazu/voxloom/pkg/kernel"
	"github.com/chazu/voxloom/pkg/voxel"
)

// faceDir describes one of the six face directions: the outward normal,
// the axis it points along and the two in-plane axes.
type faceDir struct {
	normal [3]float32
	perp   int
	u, v   int
	sign   int
}

var faceDirs = [6]faceDir{
	{[3]float32{1, 0, 0}, 0, 1, 2, 1},
	{[3]float32{-1, 0, 0}, 0, 1, 2, -1},
	{[3]float32{0, 1, 0}, 1, 0, 2, 1},
	{[3]float32{0, -1, 0}, 1, 0, 2, -1},
	{[3]float32{0, 0, 1}, 2, 0, 1, 1},
	{[3]float32{0, 0, -1}, 2, 0, 1, -1},
}

// occupancy is a dense copy of the store over its bounding box.
type occupancy struct {
	origin [3]int
	dims   [3]int
	cells  []bool
}

func newOccupancy(cells []grid.Cell) *occupancy {
	lo := [3]int{cells[0].X, cells[0].Y, cells[0].Z}
	hi := lo
	for _, c := range cells[1:] {
		p := [3]int{c.X, c.Y, c.Z}
		for a := 0; a < 3; a++ {
			lo[a] = min(lo[a], p[a])
			hi[a] = max(hi[a], p[a])
		}
	}
	o := &occupancy{origin: lo}
	for a := 0; a < 3; a++ {
		o.dims[a] = hi[a] - lo[a] + 1
	}
	o.cells = make([]bool, o.dims[0]*o.dims[1]*o.dims[2])
	for _, c := range cells {
		o.cells[o.index([3]int{c.X - lo[0], c.Y - lo[1], c.Z - lo[2]})] = true
	}
	return o
}

func (o *occupancy) index(p [3]int) int {
	return p[0] + o.dims[0]*(p[1]+o.dims[1]*p[2])
}

// at reports occupancy at local coordinates; outside the box is empty.
func (o *occupancy) at(p [3]int) bool {
	for a := 0; a < 3; a++ {
		if p[a] < 0 || p[a] >= o.dims[a] {
			return false
		}
	}
	return o.cells[o.index(p)]
}

// SurfaceMesh returns the outer surface of the occupied cells with
// coplanar faces merged into rectangles. Faces between two occupied
// cells are omitted. Vertices are in grid space and each quad carries
// its own four vertices and flat normal. An empty store yields an empty
// mesh.
func SurfaceMesh(store *voxel.Store) *kernel.Mesh {
	mesh := &kernel.Mesh{Name: "VoxelSurface"}
	if store == nil || store.Len() == 0 {
		return mesh
	}
	occ := newOccupancy(store.Snapshot())

	for _, dir := range faceDirs {
		du, dv := occ.dims[dir.u], occ.dims[dir.v]
		mask := make([]bool, du*dv)
		visited := make([]bool, du*dv)

		for p := 0; p < occ.dims[dir.perp]; p++ {
			clear(mask)
			clear(visited)
			for u := 0; u < du; u++ {
				for v := 0; v < dv; v++ {
					var pos [3]int
					pos[dir.perp], pos[dir.u], pos[dir.v] = p, u, v
					if !occ.at(pos) {
						continue
					}
					adj := pos
					adj[dir.perp] += dir.sign
					if !occ.at(adj) {
						mask[u*dv+v] = true
					}
				}
			}

			for u := 0; u < du; u++ {
				for v := 0; v < dv; {
					if !mask[u*dv+v] || visited[u*dv+v] {
						v++
						continue
					}
					width := 1
					for w := v + 1; w < dv && mask[u*dv+w] && !visited[u*dv+w]; w++ {
						width++
					}
					height := 1
				grow:
					for h := u + 1; h < du; h++ {
						for w := v; w < v+width; w++ {
							if !mask[h*dv+w] || visited[h*dv+w] {
								break grow
							}
						}
						height++
					}
					for hu := u; hu < u+height; hu++ {
						for hv := v; hv < v+width; hv++ {
							visited[hu*dv+hv] = true
						}
					}
					addQuad(mesh, dir, occ.origin, p, u, v, height, width)
					v += width
				}
			}
		}
	}
	return mesh
}

// addQuad appends the rectangle covering height cells along u and width
// cells along v on layer p, wound counter-clockwise about dir.normal.
func addQuad(mesh *kernel.Mesh, dir faceDir, origin [3]int, p, u, v, height, width int) {
	var base [3]float32
	base[dir.perp] = float32(origin[dir.perp] + p)
	if dir.sign > 0 {
		base[dir.perp]++
	}
	base[dir.u] = float32(origin[dir.u] + u)
	base[dir.v] = float32(origin[dir.v] + v)

	corner := func(du, dv int) [3]float32 {
		c := base
		c[dir.u] += float32(du)
		c[dir.v] += float32(dv)
		return c
	}
	quad := [4][3]float32{
		corner(0, 0),
		corner(height, 0),
		corner(height, width),
		corner(0, width),
	}
	// u×v points along +perp for X and Z but along -perp for Y.
	if (dir.sign < 0) != (dir.perp == 1) {
		quad[1], quad[3] = quad[3], quad[1]
	}

	idx := uint32(mesh.VertexCount())
	for _, q := range quad {
		mesh.Vertices = append(mesh.Vertices, q[0], q[1], q[2])
		mesh.Normals = append(mesh.Normals, dir.normal[0], dir.normal[1], dir.normal[2])
	}
	mesh.Indices = append(mesh.Indices, idx, idx+1, idx+2, idx, idx+2, idx+3)
}

// Instances stamps base at the centre of every cell and returns the
// combined mesh, in cell order.
func Instances(cells []grid.Cell, base *kernel.Mesh) (*kernel.Mesh, error) {
	if base == nil || base.IsEmpty() {
		return nil, fmt.Errorf("tessellate: instance base mesh is empty")
	}
	nv := base.VertexCount()
	out := &kernel.Mesh{
		Vertices: make([]float32, 0, len(cells)*len(base.Vertices)),
		Normals:  make([]float32, 0, len(cells)*len(base.Normals)),
		Indices:  make([]uint32, 0, len(cells)*len(base.Indices)),
		Name:     "VoxelInstances",
	}
	for i, c := range cells {
		off := [3]float32{float32(c.X) + 0.5, float32(c.Y) + 0.5, float32(c.Z) + 0.5}
		for j := 0; j+2 < len(base.Vertices); j += 3 {
			out.Vertices = append(out.Vertices,
				base.Vertices[j]+off[0],
				base.Vertices[j+1]+off[1],
				base.Vertices[j+2]+off[2])
		}
		out.Normals = append(out.Normals, base.Normals...)
		shift := uint32(i * nv)
		for _, idx := range base.Indices {
			out.Indices = append(out.Indices, idx+shift)
		}
	}
	return out, nil
}
