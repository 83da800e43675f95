package grid

// Box is an axis-aligned outline in world units.
type Box struct {
	Min, Max [3]float64
}

// boxEdges lists corner index pairs for the 12 edges of a box, using the
// corner order returned by Corners.
var boxEdges = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// Corners returns the 8 corners: the bottom face counter-clockwise, then
// the top face in the same order.
func (b Box) Corners() [8][3]float64 {
	lo, hi := b.Min, b.Max
	return [8][3]float64{
		{lo[0], lo[1], lo[2]},
		{hi[0], lo[1], lo[2]},
		{hi[0], hi[1], lo[2]},
		{lo[0], hi[1], lo[2]},
		{lo[0], lo[1], hi[2]},
		{hi[0], lo[1], hi[2]},
		{hi[0], hi[1], hi[2]},
		{lo[0], hi[1], hi[2]},
	}
}

// Edges returns the 12 outline segments.
func (b Box) Edges() [12][2][3]float64 {
	c := b.Corners()
	var out [12][2][3]float64
	for i, e := range boxEdges {
		out[i] = [2][3]float64{c[e[0]], c[e[1]]}
	}
	return out
}

// Size returns the extent along each axis.
func (b Box) Size() [3]float64 {
	return [3]float64{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// Frame is the outline geometry a host draws for the grid. Layer is nil
// when the current layer lies outside the grid.
type Frame struct {
	Visible bool
	Master  Box
	Layer   *Box
}

// Frame rebuilds the outline for s. Hosts call it after every change to
// dimensions, orientation or layer; nothing calls it implicitly.
func (s Spec) Frame(visible bool) Frame {
	f := Frame{
		Visible: visible,
		Master: Box{
			Max: [3]float64{float64(s.DimX), float64(s.DimY), float64(s.DimZ)},
		},
	}
	if !s.LayerInRange() {
		return f
	}
	la := s.LayerAxis()
	layer := f.Master
	layer.Min[la] = float64(s.Layer)
	layer.Max[la] = float64(s.Layer + 1)
	f.Layer = &layer
	return f
}
