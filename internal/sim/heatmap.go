package sim

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// Heatmap is a per-floor grid of decaying occupancy counters indexed
// [floor][row][col], where row follows y and col follows x. Alongside the
// live counters it keeps the highest value each cell reached.
type Heatmap struct {
	Rows, Cols int
	CellSize   float64
	Decay      float64
	cells      [][][]float64
	peak       [][][]float64
}

// NewHeatmap allocates a zeroed heatmap for floors storeys.
func NewHeatmap(floors, rows, cols int, cellSize, decay float64) *Heatmap {
	return &Heatmap{
		Rows:     rows,
		Cols:     cols,
		CellSize: cellSize,
		Decay:    decay,
		cells:    grid(floors, rows, cols),
		peak:     grid(floors, rows, cols),
	}
}

func grid(floors, rows, cols int) [][][]float64 {
	g := make([][][]float64, floors)
	for f := range g {
		g[f] = make([][]float64, rows)
		for r := range g[f] {
			g[f][r] = make([]float64, cols)
		}
	}
	return g
}

// Floors returns the number of floor layers.
func (h *Heatmap) Floors() int { return len(h.cells) }

// DecayAll multiplies every cell by the decay factor.
func (h *Heatmap) DecayAll() {
	for _, floor := range h.cells {
		for _, row := range floor {
			for c := range row {
				row[c] *= h.Decay
			}
		}
	}
}

// Cell returns the row and column under p.
func (h *Heatmap) Cell(p r2.Vec) (row, col int) {
	return int(math.Floor(p.Y / h.CellSize)), int(math.Floor(p.X / h.CellSize))
}

// Add increments the cell under p on the given floor layer. Positions or
// layers outside the grid are ignored.
func (h *Heatmap) Add(floor int, p r2.Vec) {
	if floor < 0 || floor >= len(h.cells) {
		return
	}
	r, c := h.Cell(p)
	if r < 0 || r >= h.Rows || c < 0 || c >= h.Cols {
		return
	}
	h.cells[floor][r][c]++
	h.peak[floor][r][c] = math.Max(h.peak[floor][r][c], h.cells[floor][r][c])
}

// At returns a single cell value, or 0 when out of range.
func (h *Heatmap) At(floor, row, col int) float64 {
	if floor < 0 || floor >= len(h.cells) || row < 0 || row >= h.Rows || col < 0 || col >= h.Cols {
		return 0
	}
	return h.cells[floor][row][col]
}

// Max returns the largest cell value across all floors.
func (h *Heatmap) Max() float64 {
	var m float64
	for _, floor := range h.cells {
		for _, row := range floor {
			for _, v := range row {
				m = math.Max(m, v)
			}
		}
	}
	return m
}

// Snapshot returns a deep copy of the live cells.
func (h *Heatmap) Snapshot() [][][]float64 { return clone(h.cells) }

// PeakSnapshot returns a deep copy of the per-cell peaks.
func (h *Heatmap) PeakSnapshot() [][][]float64 { return clone(h.peak) }

func clone(cells [][][]float64) [][][]float64 {
	out := make([][][]float64, len(cells))
	for f, floor := range cells {
		out[f] = make([][]float64, len(floor))
		for r, row := range floor {
			out[f][r] = append([]float64(nil), row...)
		}
	}
	return out
}

// Bottleneck is a heatmap cell whose density exceeded the threshold.
type Bottleneck struct {
	Floor   int     `json:"floor"` // floor ID
	Row     int     `json:"row"`
	Col     int     `json:"col"`
	X       float64 `json:"x"` // cell origin
	Y       float64 `json:"y"`
	Density float64 `json:"density"`
}

// Bottlenecks returns up to topN cells whose peak density was strictly above
// threshold, densest first. Ties are broken by floor, row then column.
// floorIDs maps a heatmap layer to its floor ID.
func (h *Heatmap) Bottlenecks(floorIDs []int, threshold float64, topN int) []Bottleneck {
	var out []Bottleneck
	for f, floor := range h.peak {
		id := f + 1
		if f < len(floorIDs) {
			id = floorIDs[f]
		}
		for r, row := range floor {
			for c, v := range row {
				if v > threshold {
					out = append(out, Bottleneck{
						Floor:   id,
						Row:     r,
						Col:     c,
						X:       float64(c) * h.CellSize,
						Y:       float64(r) * h.CellSize,
						Density: v,
					})
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Density != b.Density {
			return a.Density > b.Density
		}
		if a.Floor != b.Floor {
			return a.Floor < b.Floor
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	if topN >= 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
