// Package geom provides the planar segment primitives shared by the
// pathfinder, the collision resolver and the motion model.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Segment is an undirected line segment between A and B.
type Segment struct {
	A, B r2.Vec
}

// Seg builds a Segment from raw coordinates.
func Seg(x1, y1, x2, y2 float64) Segment {
	return Segment{A: r2.Vec{X: x1, Y: y1}, B: r2.Vec{X: x2, Y: y2}}
}

// Len returns the segment length.
func (s Segment) Len() float64 {
	return r2.Norm(r2.Sub(s.B, s.A))
}

// Degenerate reports whether the segment has zero length.
func (s Segment) Degenerate() bool {
	return s.A == s.B
}

// Midpoint returns the midpoint of the segment.
func (s Segment) Midpoint() r2.Vec {
	return r2.Scale(0.5, r2.Add(s.A, s.B))
}

// params returns the parametric positions ua (along p) and ub (along q) of the
// intersection of the lines through p and q. ok is false for parallel or
// collinear lines, including any degenerate segment.
func params(p, q Segment) (ua, ub float64, ok bool) {
	dp := r2.Sub(p.B, p.A)
	dq := r2.Sub(q.B, q.A)
	denom := dq.Y*dp.X - dq.X*dp.Y
	if denom == 0 {
		return 0, 0, false
	}
	d := r2.Sub(p.A, q.A)
	ua = (dq.X*d.Y - dq.Y*d.X) / denom
	ub = (dp.X*d.Y - dp.Y*d.X) / denom
	return ua, ub, true
}

// SegmentsIntersect reports whether p and q intersect, endpoints included.
// Parallel and collinear segments never intersect.
func SegmentsIntersect(p, q Segment) bool {
	ua, ub, ok := params(p, q)
	if !ok {
		return false
	}
	return ua >= 0 && ua <= 1 && ub >= 0 && ub <= 1
}

// IntersectionPoint returns the crossing point of p and q, if any.
func IntersectionPoint(p, q Segment) (r2.Vec, bool) {
	ua, ub, ok := params(p, q)
	if !ok || ua < 0 || ua > 1 || ub < 0 || ub > 1 {
		return r2.Vec{}, false
	}
	return r2.Add(p.A, r2.Scale(ua, r2.Sub(p.B, p.A))), true
}

// ClosestPointOnSegment projects pt onto s with the parameter clamped to [0,1].
// A degenerate segment returns its single point.
func ClosestPointOnSegment(pt r2.Vec, s Segment) r2.Vec {
	d := r2.Sub(s.B, s.A)
	l2 := r2.Dot(d, d)
	if l2 == 0 {
		return s.A
	}
	t := r2.Dot(r2.Sub(pt, s.A), d) / l2
	t = math.Max(0, math.Min(1, t))
	return r2.Add(s.A, r2.Scale(t, d))
}

// DistanceToSegment returns the distance from pt to the nearest point of s.
func DistanceToSegment(pt r2.Vec, s Segment) float64 {
	return r2.Norm(r2.Sub(pt, ClosestPointOnSegment(pt, s)))
}

// Normal returns a unit normal of s (the direction rotated +90 degrees).
// ok is false for a degenerate segment.
func (s Segment) Normal() (r2.Vec, bool) {
	d := r2.Sub(s.B, s.A)
	l := r2.Norm(d)
	if l == 0 {
		return r2.Vec{}, false
	}
	return r2.Vec{X: -d.Y / l, Y: d.X / l}, true
}

// Side returns the sign of pt relative to the directed line A->B:
// positive on the left, negative on the right, zero on the line.
func (s Segment) Side(pt r2.Vec) float64 {
	return r2.Cross(r2.Sub(s.B, s.A), r2.Sub(pt, s.A))
}

// Unit returns v normalised, or the zero vector when v has zero length.
func Unit(v r2.Vec) r2.Vec {
	n := r2.Norm(v)
	if n == 0 {
		return r2.Vec{}
	}
	return r2.Scale(1/n, v)
}

// Dist returns the Euclidean distance between a and b.
func Dist(a, b r2.Vec) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Clamp limits v to the rectangle [minX,maxX]x[minY,maxY].
func Clamp(v r2.Vec, minX, minY, maxX, maxY float64) r2.Vec {
	return r2.Vec{
		X: math.Max(minX, math.Min(maxX, v.X)),
		Y: math.Max(minY, math.Min(maxY, v.Y)),
	}
}
