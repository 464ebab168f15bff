package sim

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/evacsim/internal/people"
)

// Agent is a person plus the live state of one run. Agents belong to the
// Controller; callers only ever see AgentView copies.
type Agent struct {
	Person people.Person

	Pos      r2.Vec
	Floor    int // floor ID
	Velocity r2.Vec

	Evacuated      bool
	EvacuationTime float64
	ExitFloor      int // floor ID of the exit used
	ExitIndex      int // index into that floor's Exits

	ReachedAssembly bool
	AssemblyTime    float64

	Goal      int // marker index on Floor the path leads to, -1 when none
	Path      []r2.Vec
	PathIndex int
}

// Done reports whether the agent has reached its terminal state.
func (a *Agent) Done(assembly bool) bool {
	if assembly {
		return a.ReachedAssembly
	}
	return a.Evacuated
}

// PanicFactor returns the speed multiplier from panic.
func PanicFactor(panic, gain float64) float64 {
	return 1 + (panic/100)*gain
}

// AgentView is the read-only per-tick state published to observers.
type AgentView struct {
	ID              string  `json:"id"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Floor           int     `json:"floor"`
	Evacuated       bool    `json:"evacuated"`
	ReachedAssembly bool    `json:"reachedAssembly"`
	PanicLevel      float64 `json:"panicLevel"`
}

func (a *Agent) view() AgentView {
	return AgentView{
		ID:              a.Person.ID,
		X:               a.Pos.X,
		Y:               a.Pos.Y,
		Floor:           a.Floor,
		Evacuated:       a.Evacuated,
		ReachedAssembly: a.ReachedAssembly,
		PanicLevel:      a.Person.PanicLevel,
	}
}
