// Package eve models an eavesdropper sitting on the quantum channel between
// Alice and Bob.
package eve

import (
	"math/rand"

	"github.com/alan-christopher/qkdsim/qkd/photon"
)

// An Attack names an eavesdropping strategy.
type Attack string

// InterceptResend is the only supported attack: Eve measures each photon she
// catches in a basis of her choosing and sends Bob a fresh photon prepared
// from her own result.
const InterceptResend Attack = "intercept-resend"

// A Config describes the eavesdropper. A nil *Config means there is no
// eavesdropper at all. An empty Attack means InterceptResend.
type Config struct {
	Attack                  Attack  `koanf:"attack" validate:"omitempty,oneof=intercept-resend"`
	InterceptionProbability float64 `koanf:"interception_probability" validate:"gte=0,lte=1"`
}

// A Fidelity gives the probability that Eve reads the bit Alice encoded,
// depending on whether her basis matched Alice's.
type Fidelity struct {
	Match    float64 `koanf:"match" validate:"gte=0,lte=1"`
	Mismatch float64 `koanf:"mismatch" validate:"gte=0,lte=1"`
}

var (
	// DefaultBB84Fidelity models an ideal projective measurement on one of
	// four BB84 states.
	DefaultBB84Fidelity = Fidelity{Match: 1, Mismatch: 0.5}

	// DefaultB92Fidelity is the approximation used against the two
	// non-orthogonal B92 states. It is a hard-coded approximation, not a
	// derived bound; override it as needed.
	DefaultB92Fidelity = Fidelity{Match: 0.95, Mismatch: 0.5}
)

// An Interception records what Eve did to a single photon.
type Interception struct {
	Basis photon.Basis
	Bit   uint8
}

// Intercept possibly intercepts s. If Eve acts on this photon it returns the
// photon she resends, prepared in her own basis from her own result, together
// with a record of her measurement. Otherwise it returns s unchanged and a
// nil Interception. Intercept always consumes three draws from r, and never
// acts when c is nil.
func (c *Config) Intercept(s photon.State, f Fidelity, r *rand.Rand) (photon.State, *Interception) {
	uAct := r.Float64()
	basis := photon.RandomBasis(r)
	uRead := r.Float64()

	if c == nil || uAct >= c.InterceptionProbability {
		return s, nil
	}
	p := f.Mismatch
	if basis == s.Basis {
		coh := s.Coherence()
		p = f.Match*coh + (1-f.Match)*(1-coh)
	}
	bit := s.Bit ^ 1
	if uRead < p {
		bit = s.Bit
	}
	return photon.Prepare(basis, bit), &Interception{Basis: basis, Bit: bit}
}

// Acts reports whether Eve intercepts the next signal. It is used where the
// caller models the measurement itself, as with entangled pairs. Acts always
// consumes one draw from r, and is false when c is nil.
func (c *Config) Acts(r *rand.Rand) bool {
	u := r.Float64()
	return c != nil && u < c.InterceptionProbability
}
