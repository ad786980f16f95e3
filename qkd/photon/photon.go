// Package photon models qubits encoded as linearly-polarized photons, and the
// lossy, noisy optical fiber they travel through.
package photon

import (
	"fmt"
	"math"
	"math/rand"
)

// A Basis is a polarization measurement/preparation basis.
type Basis uint8

const (
	// Rectilinear encodes 0 as horizontal and 1 as vertical polarization.
	Rectilinear Basis = iota
	// Diagonal encodes 0 as +45° and 1 as -45° polarization.
	Diagonal
)

func (b Basis) String() string {
	switch b {
	case Rectilinear:
		return "+"
	case Diagonal:
		return "x"
	}
	return fmt.Sprintf("Basis(%d)", uint8(b))
}

// RandomBasis draws a basis uniformly at random.
func RandomBasis(r *rand.Rand) Basis {
	return Basis(r.Intn(2))
}

// RandomBit draws a bit uniformly at random.
func RandomBit(r *rand.Rand) uint8 {
	return uint8(r.Intn(2))
}

// A State is a single transmitted photon. States are values: the channel and
// measurement functions return new States rather than mutating their inputs.
type State struct {
	Basis Basis
	Bit   uint8

	// Amplitude tracks the probability that the photon has survived the lossy
	// events it has passed through so far.
	Amplitude float64

	// Phase is the relative phase of the polarization. A freshly prepared
	// photon has zero phase; dephasing randomizes it.
	Phase float64
}

// Prepare returns a freshly-prepared, undisturbed photon.
func Prepare(basis Basis, bit uint8) State {
	return State{Basis: basis, Bit: bit & 1, Amplitude: 1}
}

// Coherence returns the probability that s reads out its encoded bit when
// measured in its own basis. Rectilinear states are eigenstates of the
// dephasing channel and are unaffected by phase; diagonal states lose their
// coherence as the phase drifts away from zero.
func (s State) Coherence() float64 {
	if s.Basis == Rectilinear {
		return 1
	}
	return (1 + math.Cos(s.Phase)) / 2
}

// Readout returns the bit s yields when measured in its own basis.
func Readout(s State, r *rand.Rand) uint8 {
	if r.Float64() < s.Coherence() {
		return s.Bit
	}
	return s.Bit ^ 1
}

// Measure measures s in basis b. A basis mismatch yields a uniformly random
// outcome; a match yields s's bit, subject to its coherence. Measure always
// consumes exactly two draws from r.
func Measure(s State, b Basis, r *rand.Rand) uint8 {
	coin := RandomBit(r)
	matched := Readout(s, r)
	if b != s.Basis {
		return coin
	}
	return matched
}
