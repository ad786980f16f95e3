package analysis

import "math"

// A Heuristic holds the additive back-of-the-envelope formulas the teaching
// material uses to predict a run's outcome before it happens. They are
// deliberately simple, configurable approximations rather than a physical
// derivation, and nothing in the security check depends on them.
type Heuristic struct {
	// EveWeight scales the interception probability's contribution to the
	// expected QBER.
	EveWeight float64 `koanf:"eve_weight" validate:"gte=0,lte=1"`
	// NoiseWeight scales the depolarization contribution to the expected
	// QBER.
	NoiseWeight float64 `koanf:"noise_weight" validate:"gte=0,lte=1"`
	// Floor is an intrinsic error rate added regardless of the channel, e.g.
	// detector misalignment.
	Floor float64 `koanf:"floor" validate:"gte=0,lte=1"`
}

// DefaultHeuristic reproduces (p_depol + p_eve)/2 + p_dark with no floor.
var DefaultHeuristic = Heuristic{EveWeight: 0.5, NoiseWeight: 0.5}

// An Expectation is the heuristic forecast for a run.
type Expectation struct {
	QBER    float64
	KeyRate float64
	// S is the expected CHSH value. Zero for prepare-and-measure protocols.
	S float64
}

// ExpectedQBER returns the heuristic QBER forecast, clamped to [0, 0.5].
func (h Heuristic) ExpectedQBER(eveProb, depolarization, darkProb float64) float64 {
	q := h.EveWeight*eveProb + h.NoiseWeight*depolarization + darkProb + h.Floor
	return math.Max(0, math.Min(0.5, q))
}

// ExpectedKeyRate returns the heuristic sifted-key yield of a protocol with
// ideal yield baseYield (1/2 for BB84, 1/4 for B92, 2/9 for E91), after loss
// and disturbance.
func (h Heuristic) ExpectedKeyRate(baseYield, lossProb, depolarization, eveProb float64) float64 {
	return baseYield * (1 - lossProb) * math.Max(0, 1-depolarization-eveProb)
}

// ExpectedS returns the heuristic CHSH forecast 2√2·(1 − p_depol − p_eve),
// floored at zero.
func (h Heuristic) ExpectedS(depolarization, eveProb float64) float64 {
	return TsirelsonBound * math.Max(0, 1-depolarization-eveProb)
}
