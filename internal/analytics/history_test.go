package analytics

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestSummarizeHistory(t *testing.T) {
	tests := []struct {
		name string
		runs []Run
		want HistorySummary
	}{
		{
			name: "empty",
			want: HistorySummary{},
		},
		{
			name: "mixed",
			runs: []Run{
				{EvacuationTime: 20, PeopleCount: 40},
				{EvacuationTime: 10, PeopleCount: 10},
				{EvacuationTime: 600, PeopleCount: 5, TimedOut: true},
			},
			want: HistorySummary{
				Runs:           3,
				TimedOut:       1,
				FastestTime:    10,
				SlowestTime:    600,
				MeanTime:       210,
				MeanThroughput: (2 + 1 + 5.0/600) / 3,
			},
		},
		{
			name: "zero time excluded from throughput",
			runs: []Run{{EvacuationTime: 0, PeopleCount: 3}, {EvacuationTime: 4, PeopleCount: 8}},
			want: HistorySummary{Runs: 2, SlowestTime: 4, MeanTime: 2, MeanThroughput: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SummarizeHistory(tt.runs)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("SummarizeHistory mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	base := Summary{
		EvacuationTime: 30,
		EvacuatedRatio: 0.9,
		Throughput:     1.5,
		Times:          TimeStats{Mean: 12, P90: 20},
		PeakDensity:    []float64{40, 80},
	}
	cand := Summary{
		EvacuationTime: 25,
		EvacuatedRatio: 1,
		Throughput:     2,
		Times:          TimeStats{Mean: 10, P90: 21},
		PeakDensity:    []float64{50},
	}
	want := Delta{
		EvacuationTime: -5,
		MeanTime:       -2,
		P90Time:        1,
		EvacuatedRatio: 0.1,
		Throughput:     0.5,
		PeakDensity:    -30,
	}
	if diff := cmp.Diff(want, Compare(base, cand), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Compare mismatch (-want +got):\n%s", diff)
	}
	if got := Compare(Summary{}, Summary{}); got != (Delta{}) {
		t.Errorf("Compare of empty summaries = %+v, want zero", got)
	}
}
