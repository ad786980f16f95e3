package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// ClassicalBound is the largest |S| reachable by local hidden variables.
	ClassicalBound = 2.0
)

// TsirelsonBound is the largest |S| quantum mechanics allows, 2√2.
var TsirelsonBound = 2 * math.Sqrt2

// A Term identifies one of the four CHSH correlation terms.
type Term int

const (
	// AB is E(a, b).
	AB Term = iota
	// ABPrime is E(a, b′).
	ABPrime
	// APrimeB is E(a′, b).
	APrimeB
	// APrimeBPrime is E(a′, b′).
	APrimeBPrime
)

func (t Term) String() string {
	return [...]string{"E(a,b)", "E(a,b')", "E(a',b)", "E(a',b')"}[t]
}

// A CorrelationSample is the pair of ±1-encoded outcomes observed for one
// entangled pair measured at the settings of Term.
type CorrelationSample struct {
	Term       Term
	Alice, Bob uint8
}

// A CHSHResult is the outcome of a Bell test.
type CHSHResult struct {
	S float64
	// E holds each correlation term, indexed by Term.
	E [4]float64
	// Samples holds the number of pairs behind each term.
	Samples [4]int
	// Complete is false if any term had no samples, in which case S is not
	// meaningful.
	Complete bool
}

// Violated reports whether the result violates the CHSH inequality.
func (c CHSHResult) Violated() bool {
	return c.Complete && math.Abs(c.S) > ClassicalBound
}

// CHSH computes S = E(a,b) − E(a,b′) + E(a′,b) + E(a′,b′), where each E is the
// mean product of ±1-encoded outcomes (bit 0 ↦ +1, bit 1 ↦ −1).
func CHSH(samples []CorrelationSample) CHSHResult {
	var products [4][]float64
	for _, s := range samples {
		products[s.Term] = append(products[s.Term], spin(s.Alice)*spin(s.Bob))
	}
	r := CHSHResult{Complete: true}
	for t, p := range products {
		r.Samples[t] = len(p)
		if len(p) == 0 {
			r.Complete = false
			continue
		}
		r.E[t] = stat.Mean(p, nil)
	}
	r.S = r.E[AB] - r.E[ABPrime] + r.E[APrimeB] + r.E[APrimeBPrime]
	return r
}

func spin(bit uint8) float64 {
	if bit == 0 {
		return 1
	}
	return -1
}
