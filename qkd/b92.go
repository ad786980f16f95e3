package qkd

import (
	"math/rand"

	"github.com/alan-christopher/qkdsim/qkd/ledger"
	"github.com/alan-christopher/qkdsim/qkd/photon"
)

// b92State returns the B92 encoding of bit: |0⟩ for 0 and |+⟩ for 1.
func b92State(bit uint8) photon.State {
	if bit == 0 {
		return photon.Prepare(photon.Rectilinear, 0)
	}
	return photon.Prepare(photon.Diagonal, 0)
}

// b92Inference returns the bit Bob infers from a conclusive outcome in basis
// b. Reading |1⟩ rules out |0⟩, so Alice sent 1; reading |−⟩ rules out |+⟩,
// so Alice sent 0.
func b92Inference(b photon.Basis) uint8 {
	if b == photon.Rectilinear {
		return 1
	}
	return 0
}

// b92Step returns the B92 per-signal simulation. Alice sends one of two
// non-orthogonal states; Bob measures in a random basis and keeps only
// conclusive outcomes, i.e. a 1 in either basis. For B92 records BobBit is
// the inferred key bit when Conclusive, and the raw outcome otherwise.
func b92Step(c Config) stepFunc {
	eff := c.B92.efficiency()
	fid := c.B92.fidelity()
	return func(i int, r *rand.Rand) ledger.Record {
		rec := ledger.Record{
			Index:    i,
			AliceBit: photon.RandomBit(r),
			BobBasis: photon.RandomBasis(r),
		}
		s := b92State(rec.AliceBit)
		rec.AliceBasis = s.Basis

		s, icp := c.Eve.Intercept(s, fid, r)
		rec.Eve = interception(icp)

		var outcome uint8
		rec.Detected, rec.DarkCount, outcome = receive(s, rec.BobBasis, c.Channel, r)
		uConclusive := r.Float64()

		rec.BobBit = outcome
		if rec.Detected && outcome == 1 && uConclusive < eff {
			rec.Conclusive = true
			rec.BobBit = b92Inference(rec.BobBasis)
		}
		rec.InKey = rec.Conclusive
		return rec
	}
}
