// Package pathfind computes wall-respecting routes across a floor using A*
// over an implicit square grid. Walls block movement except where a door's
// passage zone covers the crossing.
package pathfind

import (
	"container/heap"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/evacsim/internal/config"
	"github.com/banshee-data/evacsim/internal/floorplan"
	"github.com/banshee-data/evacsim/internal/geom"
)

// Config controls the search grid.
type Config struct {
	GridSize   float64          // spacing between grid nodes
	DoorMargin float64          // clearance added to half a door width
	Bounds     floorplan.Bounds // grid covers [0,Width]x[0,Height] inclusive
}

// DefaultConfig returns the built-in grid settings.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a pathfinder Config from tuning values.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		GridSize:   cfg.GetGridSize(),
		DoorMargin: cfg.GetDoorMargin(),
		Bounds: floorplan.Bounds{
			Width:  cfg.GetPlaneWidth(),
			Height: cfg.GetPlaneHeight(),
			Margin: cfg.GetPlaneMargin(),
		},
	}
}

// Result is the outcome of one search.
type Result struct {
	Waypoints []r2.Vec
	Found     bool // false when the open set was exhausted
	Expanded  int  // nodes popped from the open set
}

// 8-connected neighbourhood. Order matters for tie-breaking.
var directions = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {-1, -1}, {1, -1}, {-1, 1},
}

type node struct {
	ix, iy  int
	g, f    float64
	parent  int32
	seq     uint64
	heapIdx int
	closed  bool
}

// grid is the per-search arena. slot maps a cell to its node index or -1.
type grid struct {
	cols, rows int
	size       float64
	slot       []int32
	nodes      []node
	seq        uint64
}

func newGrid(cfg Config) *grid {
	cols := int(math.Floor(cfg.Bounds.Width/cfg.GridSize)) + 1
	rows := int(math.Floor(cfg.Bounds.Height/cfg.GridSize)) + 1
	slot := make([]int32, cols*rows)
	for i := range slot {
		slot[i] = -1
	}
	return &grid{cols: cols, rows: rows, size: cfg.GridSize, slot: slot}
}

func (g *grid) pos(ix, iy int) r2.Vec {
	return r2.Vec{X: float64(ix) * g.size, Y: float64(iy) * g.size}
}

func (g *grid) inside(ix, iy int) bool {
	return ix >= 0 && ix < g.cols && iy >= 0 && iy < g.rows
}

// openSet is a min-heap of node indices ordered by f, then insertion order.
type openSet struct {
	g     *grid
	items []int32
}

func (o *openSet) Len() int { return len(o.items) }

func (o *openSet) Less(i, j int) bool {
	a, b := &o.g.nodes[o.items[i]], &o.g.nodes[o.items[j]]
	if a.f != b.f {
		return a.f < b.f
	}
	return a.seq < b.seq
}

func (o *openSet) Swap(i, j int) {
	o.items[i], o.items[j] = o.items[j], o.items[i]
	o.g.nodes[o.items[i]].heapIdx = i
	o.g.nodes[o.items[j]].heapIdx = j
}

func (o *openSet) Push(x any) {
	idx := x.(int32)
	o.g.nodes[idx].heapIdx = len(o.items)
	o.items = append(o.items, idx)
}

func (o *openSet) Pop() any {
	n := len(o.items)
	idx := o.items[n-1]
	o.items = o.items[:n-1]
	o.g.nodes[idx].heapIdx = -1
	return idx
}

// CellOf returns the grid cell nearest to p.
func CellOf(p r2.Vec, gridSize float64) (ix, iy int) {
	return int(math.Round(p.X / gridSize)), int(math.Round(p.Y / gridSize))
}

// Search runs A* from start (snapped to the grid) towards goal. It succeeds
// as soon as a popped node lies within two grid steps of goal and returns
// the node chain from the start node to that node; goal itself is not
// appended. When the open set empties the result is [goal] with Found false.
func Search(start, goal r2.Vec, floor *floorplan.Floor, cfg Config) Result {
	g := newGrid(cfg)
	reach := 2 * cfg.GridSize
	diag := cfg.GridSize * math.Sqrt2

	sx, sy := CellOf(start, cfg.GridSize)
	sx = max(0, min(g.cols-1, sx))
	sy = max(0, min(g.rows-1, sy))

	open := &openSet{g: g}
	add := func(ix, iy int, gScore float64, parent int32) int32 {
		idx := int32(len(g.nodes))
		g.nodes = append(g.nodes, node{
			ix:     ix,
			iy:     iy,
			g:      gScore,
			f:      gScore + geom.Dist(g.pos(ix, iy), goal),
			parent: parent,
			seq:    g.seq,
		})
		g.seq++
		g.slot[iy*g.cols+ix] = idx
		heap.Push(open, idx)
		return idx
	}
	add(sx, sy, 0, -1)

	expanded := 0
	for open.Len() > 0 {
		cur := heap.Pop(open).(int32)
		n := &g.nodes[cur]
		n.closed = true
		expanded++

		here := g.pos(n.ix, n.iy)
		if geom.Dist(here, goal) < reach {
			path := reconstruct(g, cur)
			tracef("search floor=%d found len=%d expanded=%d", floor.ID, len(path), expanded)
			return Result{Waypoints: path, Found: true, Expanded: expanded}
		}

		curIX, curIY, curG := n.ix, n.iy, n.g
		for _, d := range directions {
			nx, ny := curIX+d[0], curIY+d[1]
			if !g.inside(nx, ny) {
				continue
			}
			next := g.pos(nx, ny)
			if floor.Blocks(here, next, cfg.DoorMargin) {
				continue
			}
			step := cfg.GridSize
			if d[0] != 0 && d[1] != 0 {
				step = diag
			}
			tentative := curG + step

			slot := g.slot[ny*g.cols+nx]
			if slot < 0 {
				add(nx, ny, tentative, cur)
				continue
			}
			other := &g.nodes[slot]
			if other.closed || tentative >= other.g {
				continue
			}
			other.f = tentative + (other.f - other.g)
			other.g = tentative
			other.parent = cur
			heap.Fix(open, other.heapIdx)
		}
	}

	diagf("search floor=%d exhausted after %d nodes from (%.0f,%.0f) to (%.0f,%.0f), falling back to goal",
		floor.ID, expanded, start.X, start.Y, goal.X, goal.Y)
	return Result{Waypoints: []r2.Vec{goal}, Found: false, Expanded: expanded}
}

func reconstruct(g *grid, idx int32) []r2.Vec {
	var n int
	for i := idx; i >= 0; i = g.nodes[i].parent {
		n++
	}
	path := make([]r2.Vec, n)
	for i := idx; i >= 0; i = g.nodes[i].parent {
		n--
		path[n] = g.pos(g.nodes[i].ix, g.nodes[i].iy)
	}
	return path
}

// Legal reports whether every leg of path stays clear of walls outside door
// passage zones.
func Legal(path []r2.Vec, floor *floorplan.Floor, margin float64) bool {
	for i := 1; i < len(path); i++ {
		if floor.Blocks(path[i-1], path[i], margin) {
			return false
		}
	}
	return true
}
