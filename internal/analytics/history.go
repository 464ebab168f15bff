package analytics

import (
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Run is the part of a stored run the history statistics need.
type Run struct {
	EvacuationTime float64
	PeopleCount    int
	TimedOut       bool
}

// HistorySummary aggregates a set of past runs.
type HistorySummary struct {
	Runs           int     `json:"runs"`
	TimedOut       int     `json:"timedOut"`
	FastestTime    float64 `json:"fastestTime"`
	SlowestTime    float64 `json:"slowestTime"`
	MeanTime       float64 `json:"meanTime"`
	MeanThroughput float64 `json:"meanThroughput"` // people per simulated second
}

// SummarizeHistory aggregates past runs. Runs with a zero evacuation time
// are counted but excluded from the throughput mean.
func SummarizeHistory(runs []Run) HistorySummary {
	if len(runs) == 0 {
		return HistorySummary{}
	}
	times := lo.Map(runs, func(r Run, _ int) float64 { return r.EvacuationTime })
	h := HistorySummary{
		Runs:        len(runs),
		TimedOut:    lo.CountBy(runs, func(r Run) bool { return r.TimedOut }),
		FastestTime: floats.Min(times),
		SlowestTime: floats.Max(times),
		MeanTime:    stat.Mean(times, nil),
	}
	timed := lo.Filter(runs, func(r Run, _ int) bool { return r.EvacuationTime > 0 })
	if len(timed) > 0 {
		h.MeanThroughput = stat.Mean(lo.Map(timed, func(r Run, _ int) float64 {
			return float64(r.PeopleCount) / r.EvacuationTime
		}), nil)
	}
	return h
}

// Delta is the change from a baseline summary to a candidate. Positive
// time deltas mean the candidate was slower.
type Delta struct {
	EvacuationTime float64 `json:"evacuationTime"`
	MeanTime       float64 `json:"meanTime"`
	P90Time        float64 `json:"p90Time"`
	EvacuatedRatio float64 `json:"evacuatedRatio"`
	Throughput     float64 `json:"throughput"`
	PeakDensity    float64 `json:"peakDensity"` // change in the building-wide peak
}

// Compare reports candidate minus baseline for the headline figures.
func Compare(baseline, candidate Summary) Delta {
	return Delta{
		EvacuationTime: candidate.EvacuationTime - baseline.EvacuationTime,
		MeanTime:       candidate.Times.Mean - baseline.Times.Mean,
		P90Time:        candidate.Times.P90 - baseline.Times.P90,
		EvacuatedRatio: candidate.EvacuatedRatio - baseline.EvacuatedRatio,
		Throughput:     candidate.Throughput - baseline.Throughput,
		PeakDensity:    peak(candidate.PeakDensity) - peak(baseline.PeakDensity),
	}
}

func peak(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return floats.Max(xs)
}
