// Package floorplan holds the static building geometry consumed by a
// simulation run: floors with their walls, doors and egress markers.
package floorplan

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/evacsim/internal/geom"
)

// DefaultDoorMargin is the clearance added to half a door's width when
// deciding whether a point lies in the door's passage zone.
const DefaultDoorMargin = 40.0

// Orientation of a door opening.
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

// Direction of travel a door allows. Recorded for import/export only.
type Direction string

const (
	Inward  Direction = "inward"
	Outward Direction = "outward"
	Both    Direction = "both"
)

// MarkerType distinguishes terminal exits from stairs to the floor below.
type MarkerType string

const (
	MarkerExit   MarkerType = "exit"
	MarkerStairs MarkerType = "stairs"
)

// Wall is an undirected, impassable segment.
type Wall struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Segment returns the wall as a geom.Segment.
func (w Wall) Segment() geom.Segment {
	return geom.Seg(w.X1, w.Y1, w.X2, w.Y2)
}

// Door opens a gap in any wall passing near it. It never blocks.
type Door struct {
	ID           string      `json:"id,omitempty"`
	X            float64     `json:"x"`
	Y            float64     `json:"y"`
	Width        float64     `json:"width"`
	Capacity     int         `json:"capacity"`
	Orientation  Orientation `json:"orientation"`
	Throughput   float64     `json:"throughput,omitempty"`
	Direction    Direction   `json:"direction,omitempty"`
	AutoOpen     bool        `json:"autoOpen,omitempty"`
	CurrentQueue int         `json:"currentQueue,omitempty"`
}

// Pos returns the door centre.
func (d Door) Pos() r2.Vec { return r2.Vec{X: d.X, Y: d.Y} }

// InZone reports whether p is strictly within Width/2 + margin of the door.
func (d Door) InZone(p r2.Vec, margin float64) bool {
	return geom.Dist(d.Pos(), p) < d.Width/2+margin
}

// Exit is an egress marker: a terminal exit, or stairs to floor-1.
type Exit struct {
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
	Floor int        `json:"floor"`
	Type  MarkerType `json:"type"`
}

// Pos returns the marker position.
func (e Exit) Pos() r2.Vec { return r2.Vec{X: e.X, Y: e.Y} }

// Floor is one storey. It is never mutated while a run is in progress.
type Floor struct {
	ID    int    `json:"id"`
	Walls []Wall `json:"walls"`
	Doors []Door `json:"doors"`
	Exits []Exit `json:"exits"`
}

// IsPassageAt reports whether p lies inside the passage zone of any door on
// the floor.
func (f *Floor) IsPassageAt(p r2.Vec, margin float64) bool {
	for i := range f.Doors {
		if f.Doors[i].InZone(p, margin) {
			return true
		}
	}
	return false
}

// Blocks reports whether moving straight from a to b crosses a wall outside
// every door's passage zone. The passage test uses the move's midpoint.
func (f *Floor) Blocks(a, b r2.Vec, margin float64) bool {
	move := geom.Segment{A: a, B: b}
	for i := range f.Walls {
		if geom.SegmentsIntersect(move, f.Walls[i].Segment()) {
			if !f.IsPassageAt(move.Midpoint(), margin) {
				return true
			}
		}
	}
	return false
}

// Sees reports whether the straight line from a to b stays clear of walls,
// counting only crossings that fall inside a door's passage zone as open.
func (f *Floor) Sees(a, b r2.Vec, margin float64) bool {
	line := geom.Segment{A: a, B: b}
	for i := range f.Walls {
		if x, ok := geom.IntersectionPoint(line, f.Walls[i].Segment()); ok && !f.IsPassageAt(x, margin) {
			return false
		}
	}
	return true
}

// Bounds is the rectangular plane every floor lives in.
type Bounds struct {
	Width  float64
	Height float64
	Margin float64
}

// DefaultBounds is the 1000 x 700 plane with a 10 unit margin.
var DefaultBounds = Bounds{Width: 1000, Height: 700, Margin: 10}

// Clamp keeps p inside the plane minus the margin.
func (b Bounds) Clamp(p r2.Vec) r2.Vec {
	return geom.Clamp(p, b.Margin, b.Margin, b.Width-b.Margin, b.Height-b.Margin)
}

// Contains reports whether p lies inside the plane, edges included.
func (b Bounds) Contains(p r2.Vec) bool {
	return p.X >= 0 && p.X <= b.Width && p.Y >= 0 && p.Y <= b.Height
}

// FloorIndex maps floor IDs to their position in floors.
func FloorIndex(floors []Floor) map[int]int {
	idx := make(map[int]int, len(floors))
	for i := range floors {
		idx[floors[i].ID] = i
	}
	return idx
}

// ValidateFloors checks IDs are unique and positive and that every marker is
// tagged with a known type.
func ValidateFloors(floors []Floor) error {
	seen := make(map[int]bool, len(floors))
	for _, f := range floors {
		if f.ID < 1 {
			return fmt.Errorf("floor id must be >= 1, got %d", f.ID)
		}
		if seen[f.ID] {
			return fmt.Errorf("duplicate floor id %d", f.ID)
		}
		seen[f.ID] = true
		for j, e := range f.Exits {
			if e.Type != MarkerExit && e.Type != MarkerStairs {
				return fmt.Errorf("floor %d exit %d: unknown type %q", f.ID, j, e.Type)
			}
		}
		for j, d := range f.Doors {
			if d.Width < 0 {
				return fmt.Errorf("floor %d door %d: negative width %f", f.ID, j, d.Width)
			}
		}
	}
	return nil
}
