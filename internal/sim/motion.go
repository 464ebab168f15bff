package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/evacsim/internal/floorplan"
	"github.com/banshee-data/evacsim/internal/geom"
	"github.com/banshee-data/evacsim/internal/people"
)

// Target returns where the agent is heading and the path cursor after
// skipping waypoints already within the waypoint radius. With the path
// exhausted it falls back to fallback; ok is false when there is neither.
func Target(a *Agent, radius float64, fallback r2.Vec, hasFallback bool) (target r2.Vec, cursor int, ok bool) {
	cursor = a.PathIndex
	for cursor < len(a.Path) && geom.Dist(a.Pos, a.Path[cursor]) < radius {
		cursor++
	}
	if cursor < len(a.Path) {
		return a.Path[cursor], cursor, true
	}
	return fallback, cursor, hasFallback
}

// maxDriftShare bounds the crowd drift term to this fraction of the agent's
// desired speed.
const maxDriftShare = 0.5

// DesiredSpeed is the speed an unobstructed agent walks at.
func DesiredSpeed(p MotionParams, person *people.Person, simSpeed float64) float64 {
	return p.BaseSpeed * (person.Mobility / 100) * simSpeed * PanicFactor(person.PanicLevel, p.PanicSpeedGain)
}

// limit scales v down to at most max. Non-finite vectors become zero.
func limit(v r2.Vec, max float64) r2.Vec {
	n := r2.Norm(v)
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return r2.Vec{}
	}
	if n <= max {
		return v
	}
	if max <= 0 {
		return r2.Vec{}
	}
	return r2.Scale(max/n, v)
}

// Forces sums the steering forces on agent self. prev is the previous tick's
// full agent array and peers the indices of the other active agents on the
// same floor (self may be included and is skipped).
func Forces(p MotionParams, prev []Agent, self int, peers []int, floor *floorplan.Floor, target r2.Vec, hasTarget bool, simSpeed float64) r2.Vec {
	a := &prev[self]
	var f r2.Vec

	speed := DesiredSpeed(p, &a.Person, simSpeed)
	if hasTarget {
		f = r2.Add(f, r2.Scale(speed, geom.Unit(r2.Sub(target, a.Pos))))
	}

	var drift r2.Vec
	crowd := 0
	for _, j := range peers {
		if j == self {
			continue
		}
		o := &prev[j]
		away := r2.Sub(a.Pos, o.Pos)
		d := r2.Norm(away)
		if d == 0 {
			continue
		}
		if d < p.RepulsionRadius {
			f = r2.Add(f, r2.Scale(p.RepulsionStrength/(d*d*d), away))
		}
		if d < p.CrowdRadius {
			crowd++
			drift = r2.Add(drift, r2.Scale(p.CrowdDriftFactor, o.Velocity))
		}
	}
	if crowd > p.CrowdMinNeighbors {
		f = r2.Add(f, limit(drift, maxDriftShare*speed))
	}

	for i := range floor.Walls {
		w := floor.Walls[i].Segment()
		if w.Degenerate() {
			continue
		}
		cp := geom.ClosestPointOnSegment(a.Pos, w)
		away := r2.Sub(a.Pos, cp)
		d := r2.Norm(away)
		if d == 0 || d >= p.WallRepulsionRadius {
			continue
		}
		// The stretch of wall inside a door's passage zone is an opening.
		if floor.IsPassageAt(cp, p.DoorMargin) {
			continue
		}
		f = r2.Add(f, r2.Scale(p.WallRepulsionStrength/(d+1)/d, away))
	}
	return f
}

// Advance computes the agent's state for the next tick from the previous
// tick's agents. It never reads or writes the next buffer.
func Advance(p MotionParams, prev []Agent, self int, peers []int, floor *floorplan.Floor, fallback r2.Vec, hasFallback bool, simSpeed float64) Agent {
	next := prev[self]
	target, cursor, ok := Target(&next, p.WaypointRadius, fallback, hasFallback)
	next.PathIndex = cursor

	force := Forces(p, prev, self, peers, floor, target, ok, simSpeed)
	next.Velocity = r2.Add(r2.Scale(p.VelocityRetention, next.Velocity), r2.Scale(p.ForceGain, force))
	if p.MaxSpeedFactor > 0 {
		next.Velocity = limit(next.Velocity, p.MaxSpeedFactor*DesiredSpeed(p, &next.Person, simSpeed))
	} else {
		next.Velocity = limit(next.Velocity, math.Inf(1))
	}

	proposed := p.Bounds.Clamp(r2.Add(next.Pos, next.Velocity))
	corrected := ResolveStep(next.Pos, proposed, floor, p.SlideDistance, p.DoorMargin)
	next.Pos = p.Bounds.Clamp(corrected)
	return next
}
