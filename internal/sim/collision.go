package sim

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/evacsim/internal/floorplan"
	"github.com/banshee-data/evacsim/internal/geom"
)

// ResolveStep corrects a proposed move from old to proposed so it does not
// pass through a wall. Moves whose midpoint lies in a door's passage zone are
// allowed unchanged. Otherwise the first wall the move crosses pushes the
// agent slide units off old along that wall's normal, towards the side old
// is on. If even that nudge would cross another wall, old is returned.
func ResolveStep(old, proposed r2.Vec, floor *floorplan.Floor, slide, doorMargin float64) r2.Vec {
	if old == proposed {
		return proposed
	}
	move := geom.Segment{A: old, B: proposed}
	if floor.IsPassageAt(move.Midpoint(), doorMargin) {
		return proposed
	}

	for i := range floor.Walls {
		wall := floor.Walls[i].Segment()
		if wall.Degenerate() || !geom.SegmentsIntersect(move, wall) {
			continue
		}
		n, _ := wall.Normal()
		switch side := wall.Side(old); {
		case side < 0:
			n = r2.Scale(-1, n)
		case side == 0 && r2.Dot(n, r2.Sub(proposed, old)) > 0:
			// On the wall line: back away from the direction of travel.
			n = r2.Scale(-1, n)
		}
		corrected := r2.Add(old, r2.Scale(slide, n))
		if crossesOther(floor, i, old, corrected, doorMargin) {
			return old
		}
		return corrected
	}
	return proposed
}

func crossesOther(floor *floorplan.Floor, skip int, a, b r2.Vec, doorMargin float64) bool {
	step := geom.Segment{A: a, B: b}
	for j := range floor.Walls {
		if j == skip {
			continue
		}
		w := floor.Walls[j].Segment()
		if w.Degenerate() || !geom.SegmentsIntersect(step, w) {
			continue
		}
		if !floor.IsPassageAt(step.Midpoint(), doorMargin) {
			return true
		}
	}
	return false
}
