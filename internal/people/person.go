// Package people describes the occupants placed into a simulation.
package people

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r2"
)

// Position is an optional starting location.
type Position struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Floor int     `json:"floor"`
}

// Vec returns the planar part of the position.
func (p Position) Vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

// Person is a building occupant. Mobility scales walking speed linearly
// (0 = immobile, 100 = full speed); PanicLevel adds up to 50% speed.
type Person struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	Mobility     float64   `json:"mobility"`
	PanicLevel   float64   `json:"panicLevel"`
	Volume       float64   `json:"volume"`
	Disabilities []string  `json:"disabilities,omitempty"`
	Connections  []string  `json:"connections,omitempty"`
	Position     *Position `json:"position,omitempty"`
}

// Validate checks the attribute ranges.
func (p Person) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("person %q: empty id", p.Name)
	}
	if p.Mobility < 0 || p.Mobility > 100 {
		return fmt.Errorf("person %s: mobility %f outside [0,100]", p.ID, p.Mobility)
	}
	if p.PanicLevel < 0 || p.PanicLevel > 100 {
		return fmt.Errorf("person %s: panic level %f outside [0,100]", p.ID, p.PanicLevel)
	}
	return nil
}

// ValidateAll validates each person and rejects duplicate IDs.
func ValidateAll(ps []Person) error {
	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate person id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// Generate builds n occupants with seeded random attributes, useful for
// templates that carry no people. Positions are left unset so the
// simulation places them.
func Generate(n int, seed uint64) []Person {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]Person, n)
	for i := range out {
		out[i] = Person{
			ID:         fmt.Sprintf("person-%d", i+1),
			Name:       fmt.Sprintf("Occupant %d", i+1),
			Age:        18 + rng.IntN(60),
			Mobility:   float64(50 + rng.IntN(51)),
			PanicLevel: float64(rng.IntN(101)),
			Volume:     50,
		}
	}
	return out
}
