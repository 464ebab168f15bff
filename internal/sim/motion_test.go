package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/evacsim/internal/floorplan"
	"github.com/banshee-data/evacsim/internal/people"
)

func agentAt(id string, x, y float64) Agent {
	return Agent{
		Person: people.Person{ID: id, Mobility: 100},
		Pos:    r2.Vec{X: x, Y: y},
		Floor:  1,
	}
}

func allIdx(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestForces_Attraction(t *testing.T) {
	t.Parallel()

	p := DefaultConfig().Motion
	prev := []Agent{agentAt("a", 500, 600)}
	prev[0].Person.PanicLevel = 100
	f := Forces(p, prev, 0, allIdx(1), &floorplan.Floor{ID: 1}, r2.Vec{X: 500, Y: 50}, true, 2)

	// 2 * (100/100) * 2 * (1 + 0.5)
	assert.InDelta(t, 0, f.X, 1e-12)
	assert.InDelta(t, -6, f.Y, 1e-12)
}

func TestForces_MobilityScalesLinearly(t *testing.T) {
	t.Parallel()

	p := DefaultConfig().Motion
	prev := []Agent{agentAt("a", 0, 0)}
	prev[0].Person.Mobility = 25
	f := Forces(p, prev, 0, allIdx(1), &floorplan.Floor{ID: 1}, r2.Vec{X: 100, Y: 0}, true, 1)
	assert.InDelta(t, 0.5, f.X, 1e-12)

	prev[0].Person.Mobility = 0
	f = Forces(p, prev, 0, allIdx(1), &floorplan.Floor{ID: 1}, r2.Vec{X: 100, Y: 0}, true, 1)
	assert.Zero(t, f.X)
}

func TestForces_Repulsion(t *testing.T) {
	t.Parallel()

	p := DefaultConfig().Motion
	prev := []Agent{agentAt("a", 100, 100), agentAt("b", 110, 100)}
	f := Forces(p, prev, 0, allIdx(2), &floorplan.Floor{ID: 1}, r2.Vec{}, false, 1)
	assert.InDelta(t, -0.5, f.X, 1e-12)
	assert.InDelta(t, 0, f.Y, 1e-12)

	// Out of range.
	prev[1].Pos = r2.Vec{X: 130, Y: 100}
	f = Forces(p, prev, 0, allIdx(2), &floorplan.Floor{ID: 1}, r2.Vec{}, false, 1)
	assert.Zero(t, f.X)
}

func TestForces_CoincidentAgentsNoNaN(t *testing.T) {
	t.Parallel()

	p := DefaultConfig().Motion
	prev := []Agent{agentAt("a", 100, 100), agentAt("b", 100, 100)}
	f := Forces(p, prev, 0, allIdx(2), &floorplan.Floor{ID: 1}, r2.Vec{X: 100, Y: 100}, true, 1)
	assert.False(t, math.IsNaN(f.X) || math.IsNaN(f.Y))
	assert.Equal(t, r2.Vec{}, f)
}

func TestForces_CrowdDrift(t *testing.T) {
	t.Parallel()

	p := DefaultConfig().Motion
	ring := func(n int) []Agent {
		prev := []Agent{agentAt("self", 500, 350)}
		for i := 0; i < n; i++ {
			ang := 2 * math.Pi * float64(i) / float64(n)
			o := agentAt("o", 500+50*math.Cos(ang), 350+50*math.Sin(ang))
			o.Velocity = r2.Vec{X: 1, Y: 0}
			prev = append(prev, o)
		}
		return prev
	}

	four := ring(4)
	f := Forces(p, four, 0, allIdx(len(four)), &floorplan.Floor{ID: 1}, r2.Vec{}, false, 1)
	assert.InDelta(t, 0.4, f.X, 1e-9)

	three := ring(3)
	f = Forces(p, three, 0, allIdx(len(three)), &floorplan.Floor{ID: 1}, r2.Vec{}, false, 1)
	assert.InDelta(t, 0, f.X, 1e-9, "three neighbours is not a crowd")

	// A fast crowd pulls no harder than half the desired speed.
	for i := 1; i < len(four); i++ {
		four[i].Velocity = r2.Vec{X: 100, Y: 0}
	}
	f = Forces(p, four, 0, allIdx(len(four)), &floorplan.Floor{ID: 1}, r2.Vec{}, false, 1)
	assert.InDelta(t, 1, f.X, 1e-9)
	assert.InDelta(t, 0, f.Y, 1e-9)
}

func TestForces_PeersLimitNeighbours(t *testing.T) {
	t.Parallel()

	p := DefaultConfig().Motion
	prev := []Agent{agentAt("a", 100, 100), agentAt("b", 110, 100)}
	f := Forces(p, prev, 0, []int{0}, &floorplan.Floor{ID: 1}, r2.Vec{}, false, 1)
	assert.Equal(t, r2.Vec{}, f)
}

func TestForces_WallRepulsion(t *testing.T) {
	t.Parallel()

	p := DefaultConfig().Motion
	floor := &floorplan.Floor{ID: 1, Walls: []floorplan.Wall{
		{X1: 0, Y1: 100, X2: 1000, Y2: 100},
		{X1: 300, Y1: 300, X2: 300, Y2: 300},
	}}
	prev := []Agent{agentAt("a", 500, 95)}
	f := Forces(p, prev, 0, allIdx(1), floor, r2.Vec{}, false, 1)
	assert.InDelta(t, 0, f.X, 1e-12)
	assert.InDelta(t, -100.0/6, f.Y, 1e-12)

	// On the wall: no direction, no force.
	prev[0].Pos = r2.Vec{X: 500, Y: 100}
	f = Forces(p, prev, 0, allIdx(1), floor, r2.Vec{}, false, 1)
	assert.Equal(t, r2.Vec{}, f)
}

func TestForces_NoWallRepulsionInDoorway(t *testing.T) {
	t.Parallel()

	p := DefaultConfig().Motion
	floor := &floorplan.Floor{
		ID:    1,
		Walls: []floorplan.Wall{{X1: 0, Y1: 350, X2: 1000, Y2: 350}},
		Doors: []floorplan.Door{{ID: "d", X: 500, Y: 350, Width: 60}},
	}
	prev := []Agent{agentAt("a", 510, 345)}
	f := Forces(p, prev, 0, allIdx(1), floor, r2.Vec{}, false, 1)
	assert.Equal(t, r2.Vec{}, f)

	prev[0].Pos = r2.Vec{X: 200, Y: 345}
	f = Forces(p, prev, 0, allIdx(1), floor, r2.Vec{}, false, 1)
	assert.Negative(t, f.Y)

	// The zone reaches Width/2 + DoorMargin = 70 from the door centre.
	edge := floor.Doors[0].Width/2 + p.DoorMargin
	prev[0].Pos = r2.Vec{X: 500 + edge - 1, Y: 345}
	f = Forces(p, prev, 0, allIdx(1), floor, r2.Vec{}, false, 1)
	assert.Equal(t, r2.Vec{}, f, "just inside the zone")

	prev[0].Pos = r2.Vec{X: 500 + edge + 1, Y: 345}
	f = Forces(p, prev, 0, allIdx(1), floor, r2.Vec{}, false, 1)
	assert.InDelta(t, -100.0/6, f.Y, 1e-12, "just outside the zone")
}

func TestTarget(t *testing.T) {
	t.Parallel()

	a := agentAt("a", 0, 0)
	a.Path = []r2.Vec{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 40, Y: 0}}
	target, cursor, ok := Target(&a, 25, r2.Vec{X: 99, Y: 99}, true)
	assert.True(t, ok)
	assert.Equal(t, 2, cursor)
	assert.Equal(t, r2.Vec{X: 40, Y: 0}, target)

	a.Pos = r2.Vec{X: 40, Y: 0}
	target, cursor, ok = Target(&a, 25, r2.Vec{X: 99, Y: 99}, true)
	assert.True(t, ok)
	assert.Equal(t, 3, cursor)
	assert.Equal(t, r2.Vec{X: 99, Y: 99}, target)

	_, _, ok = Target(&a, 25, r2.Vec{}, false)
	assert.False(t, ok)
}

func TestAdvance_IntegratesAndClamps(t *testing.T) {
	t.Parallel()

	p := DefaultConfig().Motion
	prev := []Agent{agentAt("a", 500, 600)}
	next := Advance(p, prev, 0, allIdx(1), &floorplan.Floor{ID: 1}, r2.Vec{X: 500, Y: 50}, true, 1)
	assert.InDelta(t, -0.4, next.Velocity.Y, 1e-12)
	assert.InDelta(t, 599.6, next.Pos.Y, 1e-12)
	assert.Equal(t, r2.Vec{X: 500, Y: 600}, prev[0].Pos, "previous buffer untouched")

	corner := []Agent{agentAt("c", 11, 11)}
	corner[0].Velocity = r2.Vec{X: -50, Y: -50}
	next = Advance(p, corner, 0, allIdx(1), &floorplan.Floor{ID: 1}, r2.Vec{}, false, 1)
	assert.GreaterOrEqual(t, next.Pos.X, 10.0)
	assert.GreaterOrEqual(t, next.Pos.Y, 10.0)
}

func TestAdvance_CapsVelocity(t *testing.T) {
	t.Parallel()

	p := DefaultConfig().Motion
	prev := []Agent{agentAt("a", 500, 350)}
	prev[0].Velocity = r2.Vec{X: 1000, Y: 0}
	next := Advance(p, prev, 0, allIdx(1), &floorplan.Floor{ID: 1}, r2.Vec{}, false, 1)

	// MaxSpeedFactor 2 times a desired speed of 2.
	assert.InDelta(t, 4, r2.Norm(next.Velocity), 1e-12)
	assert.InDelta(t, 504, next.Pos.X, 1e-12)

	prev[0].Velocity = r2.Vec{X: math.NaN(), Y: math.Inf(1)}
	next = Advance(p, prev, 0, allIdx(1), &floorplan.Floor{ID: 1}, r2.Vec{}, false, 1)
	assert.Equal(t, r2.Vec{}, next.Velocity)
	assert.Equal(t, r2.Vec{X: 500, Y: 350}, next.Pos)

	p.MaxSpeedFactor = 0
	prev[0].Velocity = r2.Vec{X: 100, Y: 0}
	next = Advance(p, prev, 0, allIdx(1), &floorplan.Floor{ID: 1}, r2.Vec{}, false, 1)
	assert.InDelta(t, 80, next.Velocity.X, 1e-12, "a zero factor disables the cap")
}

func TestDesiredSpeed(t *testing.T) {
	t.Parallel()

	p := DefaultConfig().Motion
	person := &people.Person{Mobility: 50, PanicLevel: 100}
	// 2 * 0.5 * 3 * (1 + 0.5)
	assert.InDelta(t, 4.5, DesiredSpeed(p, person, 3), 1e-12)
}

func TestAdvance_DoesNotCrossWall(t *testing.T) {
	t.Parallel()

	p := DefaultConfig().Motion
	floor := &floorplan.Floor{ID: 1, Walls: []floorplan.Wall{{X1: 0, Y1: 350, X2: 1000, Y2: 350}}}
	prev := []Agent{agentAt("a", 200, 340)}
	prev[0].Velocity = r2.Vec{X: 0, Y: 30}
	next := Advance(p, prev, 0, allIdx(1), floor, r2.Vec{X: 200, Y: 650}, true, 1)
	require.Less(t, next.Pos.Y, 350.0)
}
