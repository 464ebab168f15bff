package pathfind

import (
	"slices"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/evacsim/internal/floorplan"
	"github.com/banshee-data/evacsim/internal/geom"
)

type cacheKey struct {
	floor  int
	ix, iy int
	goal   r2.Vec
}

// Cache memoises search results per (floor, start cell, goal). Entries are
// only valid for the set of floors they were computed against, so a Cache
// belongs to one building.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]Result
	hits    int
	misses  int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]Result)}
}

func (c *Cache) get(k cacheKey) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[k]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return p, ok
}

func (c *Cache) put(k cacheKey, p Result) {
	c.mu.Lock()
	c.entries[k] = p
	c.mu.Unlock()
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached paths.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Pathfinder answers path queries for one building, caching results.
// It is safe for concurrent use.
type Pathfinder struct {
	cfg   Config
	cache *Cache
}

// New returns a Pathfinder with an empty cache.
func New(cfg Config) *Pathfinder {
	if cfg.GridSize <= 0 {
		opsf("invalid grid size %f, using default", cfg.GridSize)
		cfg = DefaultConfig()
	}
	return &Pathfinder{cfg: cfg, cache: NewCache()}
}

// Config returns the search settings.
func (p *Pathfinder) Config() Config { return p.cfg }

// Cache exposes the result cache for inspection.
func (p *Pathfinder) Cache() *Cache { return p.cache }

// Route searches from start towards goal on floor. Starts that snap to the
// same grid cell share a cached result. The returned waypoints are owned by
// the caller.
func (p *Pathfinder) Route(start, goal r2.Vec, floor *floorplan.Floor) Result {
	ix, iy := CellOf(start, p.cfg.GridSize)
	k := cacheKey{floor: floor.ID, ix: ix, iy: iy, goal: goal}
	res, ok := p.cache.get(k)
	if !ok {
		res = Search(start, goal, floor, p.cfg)
		p.cache.put(k, res)
	}
	res.Waypoints = slices.Clone(res.Waypoints)
	return res
}

// FindPath returns the waypoints of Route.
func (p *Pathfinder) FindPath(start, goal r2.Vec, floor *floorplan.Floor) []r2.Vec {
	return p.Route(start, goal, floor).Waypoints
}

// Length returns the travel distance from start along waypoints to goal.
func Length(start r2.Vec, waypoints []r2.Vec, goal r2.Vec) float64 {
	var total float64
	prev := start
	for _, w := range waypoints {
		total += geom.Dist(prev, w)
		prev = w
	}
	return total + geom.Dist(prev, goal)
}

// FindPath runs an uncached search with the default grid.
func FindPath(start, goal r2.Vec, floor *floorplan.Floor) []r2.Vec {
	return Search(start, goal, floor, DefaultConfig()).Waypoints
}
