package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestSegmentsIntersect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p, q Segment
		want bool
	}{
		{"crossing", Seg(0, 0, 10, 10), Seg(0, 10, 10, 0), true},
		{"disjoint", Seg(0, 0, 1, 1), Seg(5, 5, 6, 7), false},
		{"touching endpoint", Seg(0, 0, 10, 0), Seg(10, 0, 10, 10), true},
		{"parallel", Seg(0, 0, 10, 0), Seg(0, 5, 10, 5), false},
		{"collinear overlap", Seg(0, 0, 10, 0), Seg(5, 0, 15, 0), false},
		{"t-junction short", Seg(0, 0, 10, 0), Seg(5, 1, 5, 10), false},
		{"degenerate", Seg(5, 5, 5, 5), Seg(0, 0, 10, 10), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentsIntersect(tt.p, tt.q))
			assert.Equal(t, tt.want, SegmentsIntersect(tt.q, tt.p), "symmetric")
		})
	}
}

func TestIntersectionPoint(t *testing.T) {
	t.Parallel()

	pt, ok := IntersectionPoint(Seg(0, 0, 10, 10), Seg(0, 10, 10, 0))
	assert.True(t, ok)
	assert.InDelta(t, 5, pt.X, 1e-9)
	assert.InDelta(t, 5, pt.Y, 1e-9)

	_, ok = IntersectionPoint(Seg(0, 0, 1, 0), Seg(0, 1, 1, 1))
	assert.False(t, ok)
}

func TestClosestPointOnSegment(t *testing.T) {
	t.Parallel()

	s := Seg(0, 0, 10, 0)
	assert.Equal(t, r2.Vec{X: 5, Y: 0}, ClosestPointOnSegment(r2.Vec{X: 5, Y: 3}, s))
	assert.Equal(t, r2.Vec{X: 0, Y: 0}, ClosestPointOnSegment(r2.Vec{X: -4, Y: 3}, s), "clamped to A")
	assert.Equal(t, r2.Vec{X: 10, Y: 0}, ClosestPointOnSegment(r2.Vec{X: 20, Y: -1}, s), "clamped to B")

	deg := Seg(3, 3, 3, 3)
	assert.Equal(t, r2.Vec{X: 3, Y: 3}, ClosestPointOnSegment(r2.Vec{X: 9, Y: 9}, deg))
}

func TestDistanceToSegment(t *testing.T) {
	t.Parallel()

	s := Seg(0, 0, 10, 0)
	assert.InDelta(t, 3, DistanceToSegment(r2.Vec{X: 5, Y: 3}, s), 1e-9)
	assert.InDelta(t, 5, DistanceToSegment(r2.Vec{X: 13, Y: 4}, s), 1e-9)
	assert.Zero(t, DistanceToSegment(r2.Vec{X: 2, Y: 0}, s))
}

func TestNormalAndSide(t *testing.T) {
	t.Parallel()

	s := Seg(0, 0, 10, 0)
	n, ok := s.Normal()
	assert.True(t, ok)
	assert.InDelta(t, 0, n.X, 1e-12)
	assert.InDelta(t, 1, n.Y, 1e-12)

	assert.Positive(t, s.Side(r2.Vec{X: 5, Y: 1}))
	assert.Negative(t, s.Side(r2.Vec{X: 5, Y: -1}))
	assert.Zero(t, s.Side(r2.Vec{X: 20, Y: 0}))

	_, ok = Seg(1, 1, 1, 1).Normal()
	assert.False(t, ok)
}

func TestUnitZero(t *testing.T) {
	t.Parallel()

	assert.Equal(t, r2.Vec{}, Unit(r2.Vec{}))
	u := Unit(r2.Vec{X: 3, Y: 4})
	assert.InDelta(t, 1, math.Hypot(u.X, u.Y), 1e-12)
}

func TestClamp(t *testing.T) {
	t.Parallel()

	got := Clamp(r2.Vec{X: -5, Y: 800}, 10, 10, 990, 690)
	assert.Equal(t, r2.Vec{X: 10, Y: 690}, got)
}
