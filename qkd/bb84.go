package qkd

import (
	"math/rand"

	"github.com/alan-christopher/qkdsim/qkd/eve"
	"github.com/alan-christopher/qkdsim/qkd/ledger"
	"github.com/alan-christopher/qkdsim/qkd/photon"
)

// bb84Step returns the BB84 per-signal simulation. Alice encodes a random bit
// in a random basis, Eve may intercept and resend, the photon crosses the
// channel, and Bob measures in his own random basis. The signal is kept iff
// Alice's and Bob's bases match, whether or not Bob saw anything.
func bb84Step(c Config) stepFunc {
	return func(i int, r *rand.Rand) ledger.Record {
		rec := ledger.Record{
			Index:      i,
			AliceBit:   photon.RandomBit(r),
			AliceBasis: photon.RandomBasis(r),
			BobBasis:   photon.RandomBasis(r),
		}
		s := photon.Prepare(rec.AliceBasis, rec.AliceBit)

		s, icp := c.Eve.Intercept(s, eve.DefaultBB84Fidelity, r)
		rec.Eve = interception(icp)

		rec.Detected, rec.DarkCount, rec.BobBit = receive(s, rec.BobBasis, c.Channel, r)
		rec.InKey = rec.AliceBasis == rec.BobBasis
		return rec
	}
}

// receive sends s through the channel to Bob's detector and measures it in
// basis b. A dark count yields a uniformly random bit. receive always
// consumes the same number of draws from r.
func receive(s photon.State, b photon.Basis, p photon.ChannelParams, r *rand.Rand) (detected, dark bool, bit uint8) {
	s, ok := photon.ApplyOpticalNoise(s, p, r)
	click := photon.Detect(ok, p, r)
	measured := photon.Measure(s, b, r)
	coin := photon.RandomBit(r)

	switch click {
	case photon.PhotonClick:
		return true, false, measured
	case photon.DarkClick:
		return true, true, coin
	}
	return false, false, 0
}

func interception(icp *eve.Interception) *ledger.Interception {
	if icp == nil {
		return nil
	}
	return &ledger.Interception{Basis: icp.Basis, Bit: icp.Bit}
}
