// Package bvh builds a bounding-volume hierarchy over a triangle soup and
// answers nearest-surface-point queries against it.
//
// The tree is built once and is read-only afterwards. Nodes are stored in
// a flat slice; a leaf references a contiguous run of the reordered
// triangle slice.
package bvh

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// leafSize is the largest triangle count kept in one leaf.
const leafSize = 4

var (
	// ErrEmpty is returned when there are no triangles to index.
	ErrEmpty = errors.New("bvh: no triangles")
	// ErrIndex is returned when a triangle references a missing vertex.
	ErrIndex = errors.New("bvh: triangle index out of range")
)

type triangle struct {
	a, b, c  r3.Vec
	centroid r3.Vec
	index    int // position in the caller's triangle list
}

type node struct {
	box r3.Box
	// Leaves have count > 0 and cover tris[start:start+count].
	// Inner nodes have count == 0 and children at left and right.
	start, count int
	left, right  int
}

// Tree is an immutable BVH over triangles.
type Tree struct {
	tris  []triangle
	nodes []node
}

// Hit is the result of a nearest-point query.
type Hit struct {
	Point    r3.Vec  // closest point on the surface
	Distance float64 // Euclidean distance from the query point
	Triangle int     // index into the triangle list passed to Build
}

// Build indexes the triangles. Each triangle is a triple of indices into
// vertices.
func Build(vertices []r3.Vec, triangles [][3]int) (*Tree, error) {
	if len(triangles) == 0 {
		return nil, ErrEmpty
	}
	tris := make([]triangle, len(triangles))
	for i, t := range triangles {
		for _, idx := range t {
			if idx < 0 || idx >= len(vertices) {
				return nil, fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrIndex, i, idx, len(vertices))
			}
		}
		a, b, c := vertices[t[0]], vertices[t[1]], vertices[t[2]]
		tris[i] = triangle{
			a: a, b: b, c: c,
			centroid: r3.Scale(1.0/3.0, r3.Add(r3.Add(a, b), c)),
			index:    i,
		}
	}
	tr := &Tree{
		tris:  tris,
		nodes: make([]node, 0, 2*len(tris)/leafSize+1),
	}
	tr.build(0, len(tris))
	return tr, nil
}

// build creates the node covering tris[start:end] and returns its index.
func (tr *Tree) build(start, end int) int {
	idx := len(tr.nodes)
	tr.nodes = append(tr.nodes, node{})

	box := triBox(tr.tris[start])
	cbox := r3.Box{Min: tr.tris[start].centroid, Max: tr.tris[start].centroid}
	for i := start + 1; i < end; i++ {
		box = union(box, triBox(tr.tris[i]))
		cbox = extend(cbox, tr.tris[i].centroid)
	}

	n := end - start
	if n <= leafSize {
		tr.nodes[idx] = node{box: box, start: start, count: n}
		return idx
	}

	axis := longestAxis(cbox)
	span := tr.tris[start:end]
	slices.SortFunc(span, func(p, q triangle) int {
		a, b := coord(p.centroid, axis), coord(q.centroid, axis)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return p.index - q.index
	})
	mid := start + n/2

	left := tr.build(start, mid)
	right := tr.build(mid, end)
	tr.nodes[idx] = node{box: box, left: left, right: right}
	return idx
}

// Len returns the number of indexed triangles.
func (tr *Tree) Len() int { return len(tr.tris) }

// Bounds returns the box enclosing every triangle.
func (tr *Tree) Bounds() r3.Box { return tr.nodes[0].box }

// Nearest returns the closest surface point to p. Ties resolve to the
// lowest triangle index.
func (tr *Tree) Nearest(p r3.Vec) (Hit, bool) {
	if tr == nil || len(tr.nodes) == 0 {
		return Hit{}, false
	}
	best := Hit{Distance: math.Inf(1), Triangle: -1}
	bestD2 := math.Inf(1)

	stack := make([]int, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nd := &tr.nodes[ni]
		if boxDist2(nd.box, p) > bestD2 {
			continue
		}
		if nd.count > 0 {
			for i := nd.start; i < nd.start+nd.count; i++ {
				t := &tr.tris[i]
				q := closestPoint(p, t.a, t.b, t.c)
				d2 := r3.Norm2(r3.Sub(p, q))
				if d2 < bestD2 || (d2 == bestD2 && t.index < best.Triangle) {
					bestD2 = d2
					best.Point = q
					best.Triangle = t.index
				}
			}
			continue
		}
		// Push the farther child first so the nearer one is visited next.
		dl := boxDist2(tr.nodes[nd.left].box, p)
		dr := boxDist2(tr.nodes[nd.right].box, p)
		if dl <= dr {
			stack = append(stack, nd.right, nd.left)
		} else {
			stack = append(stack, nd.left, nd.right)
		}
	}
	best.Distance = math.Sqrt(bestD2)
	return best, true
}

// ---------------------------------------------------------------------------
// Geometry helpers
// ---------------------------------------------------------------------------

func triBox(t triangle) r3.Box {
	b := r3.Box{Min: t.a, Max: t.a}
	b = extend(b, t.b)
	return extend(b, t.c)
}

func extend(b r3.Box, v r3.Vec) r3.Box {
	b.Min = r3.Vec{X: math.Min(b.Min.X, v.X), Y: math.Min(b.Min.Y, v.Y), Z: math.Min(b.Min.Z, v.Z)}
	b.Max = r3.Vec{X: math.Max(b.Max.X, v.X), Y: math.Max(b.Max.Y, v.Y), Z: math.Max(b.Max.Z, v.Z)}
	return b
}

// union differs from r3.Box.Union in keeping flat boxes, which are the
// norm for axis-aligned triangles.
func union(a, b r3.Box) r3.Box {
	return extend(extend(a, b.Min), b.Max)
}

func longestAxis(b r3.Box) int {
	s := r3.Sub(b.Max, b.Min)
	switch {
	case s.X >= s.Y && s.X >= s.Z:
		return 0
	case s.Y >= s.Z:
		return 1
	}
	return 2
}

func coord(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

// boxDist2 is the squared distance from p to b, zero inside.
func boxDist2(b r3.Box, p r3.Vec) float64 {
	d := 0.0
	for axis := 0; axis < 3; axis++ {
		v, lo, hi := coord(p, axis), coord(b.Min, axis), coord(b.Max, axis)
		switch {
		case v < lo:
			d += (lo - v) * (lo - v)
		case v > hi:
			d += (v - hi) * (v - hi)
		}
	}
	return d
}
