// Package analytics derives summary statistics from finished simulation runs
// and from the run history.
package analytics

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/evacsim/internal/people"
	"github.com/banshee-data/evacsim/internal/sim"
)

// TimeStats describes the distribution of per-person evacuation times.
type TimeStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary is the analytics view of one run.
type Summary struct {
	EvacuationTime float64   `json:"evacuationTime"`
	PeopleCount    int       `json:"peopleCount"`
	EvacuatedCount int       `json:"evacuatedCount"`
	AssembledCount int       `json:"assembledCount"`
	StrandedCount  int       `json:"strandedCount"`
	EvacuatedRatio float64   `json:"evacuatedRatio"`
	Throughput     float64   `json:"throughput"` // people per simulated second
	TimedOut       bool      `json:"timedOut"`
	Times          TimeStats `json:"times"`

	// PeakDensity is the highest heatmap value reached on each floor layer.
	PeakDensity   []float64          `json:"peakDensity"`
	TopBottleneck *sim.Bottleneck    `json:"topBottleneck,omitempty"`
	BusiestExit   *sim.ExitStat      `json:"busiestExit,omitempty"`
	BusiestDoor   *sim.DoorStat      `json:"busiestDoor,omitempty"`
	ExitShare     map[string]float64 `json:"exitShare,omitempty"`
}

// Times computes distribution statistics for xs. The input is not modified.
func Times(xs []float64) TimeStats {
	if len(xs) == 0 {
		return TimeStats{}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	ts := TimeStats{
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, sorted, nil),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
	}
	if len(sorted) > 1 {
		ts.StdDev = stat.StdDev(sorted, nil)
	}
	return ts
}

// Summarize derives the analytics summary of a finished run.
func Summarize(res *sim.Result) Summary {
	s := Summary{
		EvacuationTime: res.EvacuationTime,
		PeopleCount:    res.PeopleCount,
		EvacuatedCount: res.EvacuatedCount,
		AssembledCount: res.AssembledCount,
		StrandedCount:  res.StrandedCount,
		TimedOut:       res.TimedOut,
		Times:          Times(res.EvacuationTimes()),
	}
	if res.PeopleCount > 0 {
		s.EvacuatedRatio = float64(res.EvacuatedCount) / float64(res.PeopleCount)
	}
	if res.EvacuationTime > 0 {
		s.Throughput = float64(res.EvacuatedCount) / res.EvacuationTime
	}

	grid := res.PeakHeatmap
	if grid == nil {
		grid = res.Heatmap
	}
	s.PeakDensity = lo.Map(grid, func(floor [][]float64, _ int) float64 {
		var m float64
		for _, row := range floor {
			if len(row) > 0 {
				m = max(m, floats.Max(row))
			}
		}
		return m
	})

	if len(res.Bottlenecks) > 0 {
		top := res.Bottlenecks[0]
		s.TopBottleneck = &top
	}
	if len(res.ExitStats) > 0 {
		busiest := lo.MaxBy(res.ExitStats, func(a, b sim.ExitStat) bool { return a.Count > b.Count })
		if busiest.Count > 0 {
			s.BusiestExit = &busiest
		}
		if res.EvacuatedCount > 0 {
			s.ExitShare = make(map[string]float64, len(res.ExitStats))
			for _, e := range res.ExitStats {
				s.ExitShare[ExitKey(e.Floor, e.ExitIndex)] = float64(e.Count) / float64(res.EvacuatedCount)
			}
		}
	}
	if len(res.DoorStats) > 0 {
		busiest := lo.MaxBy(res.DoorStats, func(a, b sim.DoorStat) bool { return a.PeakQueue > b.PeakQueue })
		if busiest.PeakQueue > 0 {
			s.BusiestDoor = &busiest
		}
	}
	return s
}

// ExitKey names an exit marker as "floor/index".
func ExitKey(floor, index int) string {
	return fmt.Sprintf("%d/%d", floor, index)
}

// Population describes the people taking part in a run.
type Population struct {
	Count        int     `json:"count"`
	MeanAge      float64 `json:"meanAge"`
	MeanMobility float64 `json:"meanMobility"`
	MeanPanic    float64 `json:"meanPanic"`
	Placed       int     `json:"placed"` // people with an explicit start position
}

// DescribePopulation summarises the roster.
func DescribePopulation(ps []people.Person) Population {
	if len(ps) == 0 {
		return Population{}
	}
	return Population{
		Count:        len(ps),
		MeanAge:      stat.Mean(lo.Map(ps, func(p people.Person, _ int) float64 { return float64(p.Age) }), nil),
		MeanMobility: stat.Mean(lo.Map(ps, func(p people.Person, _ int) float64 { return p.Mobility }), nil),
		MeanPanic:    stat.Mean(lo.Map(ps, func(p people.Person, _ int) float64 { return p.PanicLevel }), nil),
		Placed:       lo.CountBy(ps, func(p people.Person) bool { return p.Position != nil }),
	}
}
