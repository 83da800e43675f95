package bvh

import "gonum.org/v1/gonum/spatial/r3"

// closestPoint returns the point of triangle abc nearest to p, using the
// Voronoi-region walk from Ericson, Real-Time Collision Detection 5.1.5.
func closestPoint(p, a, b, c r3.Vec) r3.Vec {
	ab := r3.Sub(b, a)
	ac := r3.Sub(c, a)
	ap := r3.Sub(p, a)

	d1 := r3.Dot(ab, ap)
	d2 := r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := r3.Sub(p, b)
	d3 := r3.Dot(ab, bp)
	d4 := r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return r3.Add(a, r3.Scale(v, ab))
	}

	cp := r3.Sub(p, c)
	d5 := r3.Dot(ab, cp)
	d6 := r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return r3.Add(a, r3.Scale(w, ac))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return r3.Add(b, r3.Scale(w, r3.Sub(c, b)))
	}

	sum := va + vb + vc
	if sum == 0 {
		// Zero-area triangle that slipped past the region tests.
		return closestOnEdges(p, a, b, c)
	}
	denom := 1 / sum
	v := vb * denom
	w := vc * denom
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}

func closestOnEdges(p, a, b, c r3.Vec) r3.Vec {
	best := closestOnSegment(p, a, b)
	bestD := r3.Norm2(r3.Sub(p, best))
	for _, q := range []r3.Vec{closestOnSegment(p, b, c), closestOnSegment(p, c, a)} {
		if d := r3.Norm2(r3.Sub(p, q)); d < bestD {
			best, bestD = q, d
		}
	}
	return best
}

func closestOnSegment(p, a, b r3.Vec) r3.Vec {
	ab := r3.Sub(b, a)
	l2 := r3.Norm2(ab)
	if l2 == 0 {
		return a
	}
	t := r3.Dot(r3.Sub(p, a), ab) / l2
	switch {
	case t < 0:
		t = 0
	case t > 1:
		t = 1
	}
	return r3.Add(a, r3.Scale(t, ab))
}
