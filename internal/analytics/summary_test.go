package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/evacsim/internal/floorplan"
	"github.com/banshee-data/evacsim/internal/people"
	"github.com/banshee-data/evacsim/internal/sim"
)

func TestTimes(t *testing.T) {
	t.Parallel()

	xs := []float64{7, 3, 10, 1, 5, 9, 2, 8, 4, 6}
	ts := Times(xs)
	assert.Equal(t, 10, ts.Count)
	assert.InDelta(t, 5.5, ts.Mean, 1e-12)
	assert.Equal(t, 5.0, ts.Median)
	assert.Equal(t, 9.0, ts.P90)
	assert.Equal(t, 1.0, ts.Min)
	assert.Equal(t, 10.0, ts.Max)
	assert.InDelta(t, 3.02765, ts.StdDev, 1e-5)
	assert.Equal(t, 7.0, xs[0], "input must not be reordered")

	one := Times([]float64{4})
	assert.Equal(t, 4.0, one.Median)
	assert.Zero(t, one.StdDev)

	assert.Equal(t, TimeStats{}, Times(nil))
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	res := &sim.Result{
		EvacuationTime: 20,
		PeopleCount:    4,
		EvacuatedCount: 3,
		AssembledCount: 2,
		StrandedCount:  1,
		Bottlenecks:    []sim.Bottleneck{{Floor: 1, Density: 90}, {Floor: 2, Density: 60}},
		ExitStats: []sim.ExitStat{
			{Floor: 1, ExitIndex: 0, Count: 1, AvgTime: 10},
			{Floor: 1, ExitIndex: 2, Count: 2, AvgTime: 15},
		},
		DoorStats: []sim.DoorStat{{Floor: 1, DoorID: "a", PeakQueue: 1}, {Floor: 2, DoorID: "b", PeakQueue: 4}},
		Heatmap:   [][][]float64{{{1, 2}}, {{0, 0}}},
		PeakHeatmap: [][][]float64{
			{{3, 90}, {12, 0}},
			{{60, 0}, {0, 1}},
		},
		Outcomes: []sim.Outcome{
			{PersonID: "a", Evacuated: true, EvacuationTime: 10},
			{PersonID: "b", Evacuated: true, EvacuationTime: 14},
			{PersonID: "c", Evacuated: true, EvacuationTime: 16},
			{PersonID: "d"},
		},
	}

	s := Summarize(res)
	assert.Equal(t, 0.75, s.EvacuatedRatio)
	assert.Equal(t, 0.15, s.Throughput)
	assert.Equal(t, 3, s.Times.Count)
	assert.Equal(t, 14.0, s.Times.Median)
	assert.Equal(t, 16.0, s.Times.Max)
	assert.Equal(t, []float64{90, 60}, s.PeakDensity)

	require.NotNil(t, s.TopBottleneck)
	assert.Equal(t, 90.0, s.TopBottleneck.Density)
	require.NotNil(t, s.BusiestExit)
	assert.Equal(t, 2, s.BusiestExit.ExitIndex)
	require.NotNil(t, s.BusiestDoor)
	assert.Equal(t, "b", s.BusiestDoor.DoorID)
	assert.InDelta(t, 2.0/3, s.ExitShare["1/2"], 1e-12)
	assert.InDelta(t, 1.0/3, s.ExitShare["1/0"], 1e-12)
}

func TestSummarize_EmptyRun(t *testing.T) {
	t.Parallel()

	s := Summarize(&sim.Result{PeopleCount: 2, StrandedCount: 2, TimedOut: true, Heatmap: [][][]float64{{{0}}}})
	assert.Zero(t, s.EvacuatedRatio)
	assert.Zero(t, s.Throughput)
	assert.Equal(t, []float64{0}, s.PeakDensity, "falls back to the final heatmap")
	assert.Nil(t, s.TopBottleneck)
	assert.Nil(t, s.BusiestExit)
	assert.Nil(t, s.BusiestDoor)
	assert.Nil(t, s.ExitShare)
	assert.True(t, s.TimedOut)
}

func TestSummarize_SimulatedRun(t *testing.T) {
	t.Parallel()

	tpl, err := floorplan.LoadTemplate("shop")
	require.NoError(t, err)
	c := sim.NewController(sim.DefaultConfig(), nil)
	require.NoError(t, c.Start(tpl.Floors, people.Generate(15, 9)))
	res, err := sim.RunToCompletion(context.Background(), c, 0)
	require.NoError(t, err)

	s := Summarize(res)
	assert.Equal(t, res.EvacuatedCount, s.Times.Count)
	if s.Times.Count > 0 {
		assert.LessOrEqual(t, s.Times.Min, s.Times.Median)
		assert.LessOrEqual(t, s.Times.Median, s.Times.P90)
		assert.LessOrEqual(t, s.Times.P90, s.Times.Max)
		assert.LessOrEqual(t, s.Times.Max, res.EvacuationTime)
	}
	require.Len(t, s.PeakDensity, len(tpl.Floors))
	assert.Positive(t, s.PeakDensity[0])
}

func TestDescribePopulation(t *testing.T) {
	t.Parallel()

	ps := []people.Person{
		{ID: "a", Age: 30, Mobility: 100, PanicLevel: 10, Position: &people.Position{X: 1, Y: 1}},
		{ID: "b", Age: 50, Mobility: 60, PanicLevel: 30},
	}
	p := DescribePopulation(ps)
	assert.Equal(t, Population{Count: 2, MeanAge: 40, MeanMobility: 80, MeanPanic: 20, Placed: 1}, p)
	assert.Equal(t, Population{}, DescribePopulation(nil))
}
