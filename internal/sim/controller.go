package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/evacsim/internal/floorplan"
	"github.com/banshee-data/evacsim/internal/geom"
	"github.com/banshee-data/evacsim/internal/pathfind"
	"github.com/banshee-data/evacsim/internal/people"
	"github.com/banshee-data/evacsim/internal/timeutil"
)

var (
	// ErrNoPeople is returned by Start when there is nobody to evacuate.
	ErrNoPeople = errors.New("no people to simulate")
	// ErrNoFloors is returned by Start when the building has no floors.
	ErrNoFloors = errors.New("no floors to simulate")
	// ErrInvalidState is returned when an operation does not apply to the
	// controller's current state.
	ErrInvalidState = errors.New("invalid controller state")
)

// State is the lifecycle phase of a Controller.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StatePaused
	StateCompleted
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Finished reports whether the run has ended with a result.
func (s State) Finished() bool {
	return s == StateCompleted || s == StateTimedOut
}

// DoorQueue is the number of active agents inside a door's passage zone.
type DoorQueue struct {
	Floor  int    `json:"floor"`
	DoorID string `json:"doorId"`
	Count  int    `json:"count"`
}

// Snapshot is the published per-tick state. Every slice is freshly
// allocated.
type Snapshot struct {
	Tick       int         `json:"tick"`
	Elapsed    float64     `json:"elapsed"`
	State      string      `json:"state"`
	Agents     []AgentView `json:"agents"`
	DoorQueues []DoorQueue `json:"doorQueues"`
	Total      int         `json:"total"`
	Evacuated  int         `json:"evacuated"`
	Assembled  int         `json:"assembled"`
}

// Controller owns a single simulation run. It is not safe for concurrent
// use; a Runner or RunToCompletion drives it from one goroutine.
type Controller struct {
	cfg   Config
	clock timeutil.Clock

	state State
	runID uuid.UUID
	speed float64

	floors   []floorplan.Floor
	floorIdx map[int]int // floor ID -> index into floors
	usable   [][]int     // per floor index: usable exit marker indices
	pf       *pathfind.Pathfinder

	cur, next []Agent
	heat      *Heatmap
	queues    []DoorQueue
	peaks     []int
	trails    [][]TrailPoint
	skipped   map[int]bool
	rerouteAt []int // per agent: first tick a re-route is allowed

	elapsed float64
	ticks   int
	result  *Result
}

// NewController returns an idle controller. A nil clock uses the real clock.
func NewController(cfg Config, clock timeutil.Clock) *Controller {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Controller{
		cfg:   cfg,
		clock: clock,
		state: StateIdle,
		speed: ClampSpeed(cfg.SimSpeed),
	}
}

// State returns the current lifecycle phase.
func (c *Controller) State() State { return c.state }

// RunID identifies the current or last run.
func (c *Controller) RunID() uuid.UUID { return c.runID }

// Elapsed returns simulated seconds since the run started.
func (c *Controller) Elapsed() float64 { return c.elapsed }

// Ticks returns the number of completed ticks.
func (c *Controller) Ticks() int { return c.ticks }

// Speed returns the current speed multiplier.
func (c *Controller) Speed() float64 { return c.speed }

// Result returns the result of a finished run, or nil.
func (c *Controller) Result() *Result { return c.result }

// Pathfinder returns the run's pathfinder, or nil when idle.
func (c *Controller) Pathfinder() *pathfind.Pathfinder { return c.pf }

// Agents returns a copy of the current agent array.
func (c *Controller) Agents() []Agent { return slices.Clone(c.cur) }

// Start validates the inputs, builds the agents and enters Running. Floors
// and people are copied; the caller may reuse them.
func (c *Controller) Start(floors []floorplan.Floor, ps []people.Person) error {
	if c.state == StateRunning || c.state == StatePaused || c.state == StateInitializing {
		return fmt.Errorf("start while %s: %w", c.state, ErrInvalidState)
	}
	if len(ps) == 0 {
		opsf("start rejected: %v", ErrNoPeople)
		return ErrNoPeople
	}
	if len(floors) == 0 {
		opsf("start rejected: %v", ErrNoFloors)
		return ErrNoFloors
	}
	if err := floorplan.ValidateFloors(floors); err != nil {
		return fmt.Errorf("invalid floors: %w", err)
	}
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	c.reset()
	c.state = StateInitializing
	c.runID = uuid.New()
	diagf("run %s initializing: %d people, %d floors", c.runID, len(ps), len(floors))

	c.floors = make([]floorplan.Floor, len(floors))
	copy(c.floors, floors)
	slices.SortFunc(c.floors, func(a, b floorplan.Floor) int { return a.ID - b.ID })
	c.floorIdx = floorplan.FloorIndex(c.floors)
	c.usable = make([][]int, len(c.floors))
	for i := range c.floors {
		c.usable[i] = c.usableMarkers(i)
	}
	c.pf = pathfind.New(c.cfg.Pathfind)
	c.heat = NewHeatmap(len(c.floors), c.cfg.HeatmapRows, c.cfg.HeatmapCols, c.cfg.HeatmapCellSize, c.cfg.HeatmapDecay)

	for _, f := range c.floors {
		for _, d := range f.Doors {
			c.queues = append(c.queues, DoorQueue{Floor: f.ID, DoorID: d.ID})
		}
	}
	c.peaks = make([]int, len(c.queues))

	rng := rand.New(rand.NewPCG(c.cfg.Seed, c.cfg.Seed^0x5851f42d4c957f2d))
	lowest := c.floors[0].ID
	c.cur = make([]Agent, len(ps))
	c.next = make([]Agent, len(ps))
	c.trails = make([][]TrailPoint, len(ps))
	c.rerouteAt = make([]int, len(ps))
	for i, p := range ps {
		a := Agent{Person: p, Floor: lowest, Goal: -1}
		if p.Position != nil {
			a.Pos = p.Position.Vec()
			if p.Position.Floor != 0 {
				a.Floor = p.Position.Floor
			}
		} else {
			a.Pos = c.place(rng)
		}
		if fi, ok := c.floorIdx[a.Floor]; ok {
			a.Goal, a.Path, _ = c.route(fi, a.Pos)
		}
		c.cur[i] = a
		c.record(i, &a)
	}

	c.state = StateRunning
	diagf("run %s running", c.runID)
	return nil
}

func (c *Controller) reset() {
	c.floors = nil
	c.floorIdx = nil
	c.usable = nil
	c.pf = nil
	c.cur, c.next = nil, nil
	c.heat = nil
	c.queues = nil
	c.peaks = nil
	c.trails = nil
	c.skipped = make(map[int]bool)
	c.rerouteAt = nil
	c.elapsed = 0
	c.ticks = 0
	c.result = nil
}

// usableMarkers lists the markers an agent on floor index fi may head for:
// every exit, plus stairs when the floor below exists.
func (c *Controller) usableMarkers(fi int) []int {
	f := &c.floors[fi]
	_, hasLower := c.floorIdx[f.ID-1]
	var out []int
	for i, e := range f.Exits {
		switch e.Type {
		case floorplan.MarkerExit:
			out = append(out, i)
		case floorplan.MarkerStairs:
			if f.ID > 1 && hasLower {
				out = append(out, i)
			}
		}
	}
	return out
}

// placementAttempts bounds the retries for a random start that can reach
// an exit on the lowest floor.
const placementAttempts = 20

// place draws a random start on the lowest floor inside [100,800]x[100,600],
// preferring points with a route to some usable marker.
func (c *Controller) place(rng *rand.Rand) r2.Vec {
	var p r2.Vec
	for range placementAttempts {
		p = r2.Vec{X: 100 + rng.Float64()*700, Y: 100 + rng.Float64()*500}
		if _, _, found := c.route(0, p); found {
			return p
		}
	}
	return p
}

// route picks the usable marker on floor index fi with the shortest found
// path from p. When no marker is reachable it falls back to the nearest one
// with the pathfinder's direct fallback path.
func (c *Controller) route(fi int, p r2.Vec) (goal int, path []r2.Vec, found bool) {
	floor := &c.floors[fi]
	best := math.Inf(1)
	goal = -1
	for _, m := range c.usable[fi] {
		to := floor.Exits[m].Pos()
		res := c.pf.Route(p, to, floor)
		if !res.Found {
			continue
		}
		if l := pathfind.Length(p, res.Waypoints, to); l < best {
			best, goal, path, found = l, m, res.Waypoints, true
		}
	}
	if found {
		return goal, path, true
	}
	if m, _, ok := c.nearestUsable(fi, p); ok {
		return m, c.pf.FindPath(p, floor.Exits[m].Pos(), floor), false
	}
	return -1, nil, false
}

func (c *Controller) nearestUsable(fi int, p r2.Vec) (idx int, dist float64, ok bool) {
	dist = math.Inf(1)
	for _, m := range c.usable[fi] {
		if d := geom.Dist(c.floors[fi].Exits[m].Pos(), p); d < dist {
			idx, dist, ok = m, d, true
		}
	}
	return idx, dist, ok
}

// Stop abandons the run from any state and returns to Idle without a result.
func (c *Controller) Stop() {
	if c.state != StateIdle {
		diagf("run %s stopped in state %s after %d ticks", c.runID, c.state, c.ticks)
	}
	c.reset()
	c.state = StateIdle
}

// Pause suspends a running simulation.
func (c *Controller) Pause() error {
	if c.state != StateRunning {
		return fmt.Errorf("pause while %s: %w", c.state, ErrInvalidState)
	}
	c.state = StatePaused
	diagf("run %s paused at %.2fs", c.runID, c.elapsed)
	return nil
}

// Resume continues a paused simulation.
func (c *Controller) Resume() error {
	if c.state != StatePaused {
		return fmt.Errorf("resume while %s: %w", c.state, ErrInvalidState)
	}
	c.state = StateRunning
	diagf("run %s resumed at %.2fs", c.runID, c.elapsed)
	return nil
}

// SetSpeed sets the speed multiplier, clamped to [0.5, 5], and returns the
// value applied.
func (c *Controller) SetSpeed(s float64) float64 {
	c.speed = ClampSpeed(s)
	return c.speed
}

// Step advances one tick. It returns true once the run has finished.
func (c *Controller) Step() (bool, error) {
	if c.state != StateRunning {
		return c.state.Finished(), fmt.Errorf("step while %s: %w", c.state, ErrInvalidState)
	}
	c.elapsed += c.cfg.FrameStepSeconds * c.speed
	c.ticks++

	active := lo.Filter(lo.Range(len(c.cur)), func(i int, _ int) bool {
		return !c.cur[i].Evacuated
	})
	byFloor := lo.GroupBy(active, func(i int) int { return c.cur[i].Floor })

	for i := range c.cur {
		a := &c.cur[i]
		if a.Evacuated {
			c.next[i] = c.assemble(*a)
			continue
		}
		fi, ok := c.floorIdx[a.Floor]
		if !ok {
			if !c.skipped[i] {
				c.skipped[i] = true
				diagf("run %s: agent %s references missing floor %d, holding in place", c.runID, a.Person.ID, a.Floor)
			}
			c.next[i] = *a
			continue
		}
		floor := &c.floors[fi]
		var fallback r2.Vec
		m, hasMarker := a.Goal, a.Goal >= 0
		if !hasMarker {
			m, _, hasMarker = c.nearestUsable(fi, a.Pos)
		}
		if hasMarker {
			fallback = floor.Exits[m].Pos()
		}
		n := Advance(c.cfg.Motion, c.cur, i, byFloor[a.Floor], floor, fallback, hasMarker, c.speed)
		c.arrive(i, &n, fi)
		if !n.Evacuated {
			c.keepOnPath(i, &n)
		}
		c.next[i] = n
	}
	c.cur, c.next = c.next, c.cur

	c.heat.DecayAll()
	for i := range c.cur {
		a := &c.cur[i]
		if a.Evacuated {
			continue
		}
		if fi, ok := c.floorIdx[a.Floor]; ok {
			c.heat.Add(fi, a.Pos)
		}
	}
	c.updateQueues()

	if n := c.cfg.TrailSampleTicks; n > 0 && c.ticks%n == 0 {
		for i := range c.cur {
			if !c.cur[i].Evacuated {
				c.record(i, &c.cur[i])
			}
		}
	}

	tracef("run %s tick %d t=%.3f active=%d", c.runID, c.ticks, c.elapsed, len(active))
	return c.checkTermination(), nil
}

// arrive handles exit and stairs arrival for an agent that just moved.
func (c *Controller) arrive(i int, a *Agent, fi int) {
	m, d, ok := c.nearestUsable(fi, a.Pos)
	if !ok || d >= c.cfg.ExitArrivalRadius {
		return
	}
	floor := &c.floors[fi]
	marker := floor.Exits[m]
	switch marker.Type {
	case floorplan.MarkerExit:
		a.Evacuated = true
		a.EvacuationTime = c.elapsed
		a.ExitFloor = floor.ID
		a.ExitIndex = m
		a.Goal, a.Path, a.PathIndex = -1, nil, 0
		c.record(i, a)
	case floorplan.MarkerStairs:
		lower := c.floorIdx[floor.ID-1]
		a.Floor = c.floors[lower].ID
		a.Pos = marker.Pos()
		a.Velocity = r2.Vec{}
		a.PathIndex = 0
		a.Goal, a.Path, _ = c.route(lower, a.Pos)
		diagf("run %s: agent %s took stairs to floor %d (path %d waypoints)", c.runID, a.Person.ID, a.Floor, len(a.Path))
		c.record(i, a)
	}
}

// rerouteCooldown is the minimum number of ticks between re-routes of one
// agent.
const rerouteCooldown = 30

// keepOnPath re-plans an agent whose heading has fallen behind a wall, which
// happens when the crowd pushes it off its path.
func (c *Controller) keepOnPath(i int, a *Agent) {
	fi, ok := c.floorIdx[a.Floor]
	if !ok || c.ticks < c.rerouteAt[i] {
		return
	}
	floor := &c.floors[fi]
	var heading r2.Vec
	switch {
	case a.PathIndex < len(a.Path):
		heading = a.Path[a.PathIndex]
	case a.Goal >= 0:
		heading = floor.Exits[a.Goal].Pos()
	default:
		return
	}
	if floor.Sees(a.Pos, heading, c.cfg.Motion.DoorMargin) {
		return
	}
	c.rerouteAt[i] = c.ticks + rerouteCooldown
	a.Goal, a.Path, _ = c.route(fi, a.Pos)
	a.PathIndex = 0
	tracef("run %s: agent %s re-routed at (%.0f,%.0f), %d waypoints", c.runID, a.Person.ID, a.Pos.X, a.Pos.Y, len(a.Path))
}

// assemble moves an evacuated agent towards the assembly point.
func (c *Controller) assemble(a Agent) Agent {
	if !c.cfg.AssemblyEnabled || a.ReachedAssembly {
		return a
	}
	to := r2.Sub(c.cfg.AssemblyPoint, a.Pos)
	d := r2.Norm(to)
	step := c.cfg.AssemblySpeed * c.speed
	if d <= step {
		a.Pos = c.cfg.AssemblyPoint
	} else {
		a.Pos = r2.Add(a.Pos, r2.Scale(step/d, to))
	}
	if geom.Dist(a.Pos, c.cfg.AssemblyPoint) < c.cfg.AssemblyRadius {
		a.ReachedAssembly = true
		a.AssemblyTime = c.elapsed
	}
	return a
}

func (c *Controller) updateQueues() {
	q := 0
	for fi := range c.floors {
		f := &c.floors[fi]
		for di := range f.Doors {
			count := 0
			for i := range c.cur {
				a := &c.cur[i]
				if !a.Evacuated && a.Floor == f.ID && f.Doors[di].InZone(a.Pos, c.cfg.Motion.DoorMargin) {
					count++
				}
			}
			c.queues[q].Count = count
			c.peaks[q] = max(c.peaks[q], count)
			q++
		}
	}
}

func (c *Controller) record(i int, a *Agent) {
	c.trails[i] = append(c.trails[i], TrailPoint{T: c.elapsed, X: a.Pos.X, Y: a.Pos.Y, Floor: a.Floor})
}

// stranded reports whether an active agent can make no further progress:
// its floor is missing or has no usable marker.
func (c *Controller) stranded(a *Agent) bool {
	if a.Evacuated {
		return false
	}
	fi, ok := c.floorIdx[a.Floor]
	return !ok || len(c.usable[fi]) == 0
}

func (c *Controller) checkTermination() bool {
	assembly := c.cfg.AssemblyEnabled
	if lo.EveryBy(c.cur, func(a Agent) bool { return a.Done(assembly) }) {
		c.finish(StateCompleted, "all agents out")
		return true
	}
	if c.elapsed >= c.cfg.MaxSimSeconds {
		c.finish(StateTimedOut, fmt.Sprintf("time limit %.0fs reached", c.cfg.MaxSimSeconds))
		return true
	}
	pending := lo.Filter(c.cur, func(a Agent, _ int) bool { return !a.Done(assembly) })
	if lo.EveryBy(pending, func(a Agent) bool { return c.stranded(&a) }) {
		c.finish(StateTimedOut, fmt.Sprintf("deadlock: %d agents cannot reach any exit", len(pending)))
		return true
	}
	return false
}

func (c *Controller) finish(s State, reason string) {
	c.state = s
	c.result = c.buildResult(s == StateTimedOut)
	msg := fmt.Sprintf("run %s %s after %d ticks (%.2fs): %s, evacuated %d/%d",
		c.runID, s, c.ticks, c.elapsed, reason, c.result.EvacuatedCount, c.result.PeopleCount)
	if s == StateTimedOut {
		opsf("%s", msg)
	} else {
		diagf("%s", msg)
	}
}

func (c *Controller) buildResult(timedOut bool) *Result {
	floorIDs := lo.Map(c.floors, func(f floorplan.Floor, _ int) int { return f.ID })

	var exitStats []ExitStat
	for _, f := range c.floors {
		for m, e := range f.Exits {
			if e.Type != floorplan.MarkerExit {
				continue
			}
			users := lo.Filter(c.cur, func(a Agent, _ int) bool {
				return a.Evacuated && a.ExitFloor == f.ID && a.ExitIndex == m
			})
			st := ExitStat{Floor: f.ID, ExitIndex: m, X: e.X, Y: e.Y, Count: len(users)}
			if len(users) > 0 {
				st.AvgTime = lo.SumBy(users, func(a Agent) float64 { return a.EvacuationTime }) / float64(len(users))
			}
			exitStats = append(exitStats, st)
		}
	}

	doorStats := make([]DoorStat, len(c.queues))
	for q, dq := range c.queues {
		doorStats[q] = DoorStat{Floor: dq.Floor, DoorID: dq.DoorID, PeakQueue: c.peaks[q]}
	}

	outcomes := make([]Outcome, len(c.cur))
	for i := range c.cur {
		a := &c.cur[i]
		outcomes[i] = Outcome{
			PersonID:        a.Person.ID,
			Evacuated:       a.Evacuated,
			EvacuationTime:  a.EvacuationTime,
			ExitFloor:       a.ExitFloor,
			ExitIndex:       a.ExitIndex,
			ReachedAssembly: a.ReachedAssembly,
			AssemblyTime:    a.AssemblyTime,
			Trail:           slices.Clone(c.trails[i]),
		}
	}

	return &Result{
		ID:             uuid.New(),
		Timestamp:      c.clock.Now().UTC(),
		EvacuationTime: c.elapsed,
		Bottlenecks:    c.heat.Bottlenecks(floorIDs, c.cfg.BottleneckThreshold, c.cfg.BottleneckTopN),
		ExitStats:      exitStats,
		DoorStats:      doorStats,
		Heatmap:        c.heat.Snapshot(),
		PeakHeatmap:    c.heat.PeakSnapshot(),
		PeopleCount:    len(c.cur),
		FloorCount:     len(c.floors),
		EvacuatedCount: lo.CountBy(c.cur, func(a Agent) bool { return a.Evacuated }),
		AssembledCount: lo.CountBy(c.cur, func(a Agent) bool { return a.ReachedAssembly }),
		StrandedCount:  lo.CountBy(c.cur, func(a Agent) bool { return !a.Evacuated }),
		TimedOut:       timedOut,
		Ticks:          c.ticks,
		Outcomes:       outcomes,
	}
}

// Snapshot returns a copy of the current state for observers.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Tick:       c.ticks,
		Elapsed:    c.elapsed,
		State:      c.state.String(),
		Agents:     lo.Map(c.cur, func(a Agent, _ int) AgentView { return a.view() }),
		DoorQueues: slices.Clone(c.queues),
		Total:      len(c.cur),
		Evacuated:  lo.CountBy(c.cur, func(a Agent) bool { return a.Evacuated }),
		Assembled:  lo.CountBy(c.cur, func(a Agent) bool { return a.ReachedAssembly }),
	}
}
