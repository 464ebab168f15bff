package sim

import (
	"time"

	"github.com/google/uuid"
)

// ExitStat summarises the agents that left through one exit marker.
type ExitStat struct {
	Floor     int     `json:"floor"`
	ExitIndex int     `json:"exitIndex"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Count     int     `json:"count"`
	AvgTime   float64 `json:"avgTime"`
}

// DoorStat records the busiest moment of a door's passage zone.
type DoorStat struct {
	Floor     int    `json:"floor"`
	DoorID    string `json:"doorId"`
	PeakQueue int    `json:"peakQueue"`
}

// TrailPoint is one sample of an agent's route.
type TrailPoint struct {
	T     float64 `json:"t"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Floor int     `json:"floor"`
}

// Outcome is the fate of one person.
type Outcome struct {
	PersonID        string       `json:"personId"`
	Evacuated       bool         `json:"evacuated"`
	EvacuationTime  float64      `json:"evacuationTime,omitempty"`
	ExitFloor       int          `json:"exitFloor,omitempty"`
	ExitIndex       int          `json:"exitIndex,omitempty"`
	ReachedAssembly bool         `json:"reachedAssembly"`
	AssemblyTime    float64      `json:"assemblyTime,omitempty"`
	Trail           []TrailPoint `json:"trail,omitempty"`
}

// Result is the immutable summary of a finished run.
type Result struct {
	ID             uuid.UUID     `json:"id"`
	Timestamp      time.Time     `json:"timestamp"`
	EvacuationTime float64       `json:"evacuationTime"` // sim seconds when the run ended
	Bottlenecks    []Bottleneck  `json:"bottlenecks"`
	ExitStats      []ExitStat    `json:"exitStats"`
	DoorStats      []DoorStat    `json:"doorStats,omitempty"`
	Heatmap        [][][]float64 `json:"heatmapData"`
	PeakHeatmap    [][][]float64 `json:"peakHeatmap,omitempty"`
	PeopleCount    int           `json:"peopleCount"`
	FloorCount     int           `json:"floorCount"`

	EvacuatedCount int       `json:"evacuatedCount"`
	AssembledCount int       `json:"assembledCount"`
	StrandedCount  int       `json:"strandedCount"`
	TimedOut       bool      `json:"timedOut"`
	Ticks          int       `json:"ticks"`
	Outcomes       []Outcome `json:"outcomes,omitempty"`
}

// EvacuationTimes returns the exit times of every evacuated person.
func (r *Result) EvacuationTimes() []float64 {
	out := make([]float64, 0, r.EvacuatedCount)
	for _, o := range r.Outcomes {
		if o.Evacuated {
			out = append(out, o.EvacuationTime)
		}
	}
	return out
}
