package qkd

import (
	"math/rand"

	"github.com/alan-christopher/qkdsim/qkd/analysis"
	"github.com/alan-christopher/qkdsim/qkd/ledger"
	"github.com/alan-christopher/qkdsim/qkd/photon"
)

// Ekert's analyzer settings, as multiples of 45° on the Bloch sphere. Alice
// measures at 0°, 45° or 90°, Bob at 45°, 90° or 135°. On the polarizer that
// is 0°, 22.5°, 45° and 22.5°, 45°, 67.5°.
var (
	aliceSettings = [...]ledger.Setting{0, 1, 2}
	bobSettings   = [...]ledger.Setting{1, 2, 3}
)

// chshTerms maps the four Bell test setting pairs to their CHSH terms, with
// a = 0°, a′ = 90°, b = 45° and b′ = 135°.
var chshTerms = map[[2]ledger.Setting]analysis.Term{
	{0, 1}: analysis.AB,
	{0, 3}: analysis.ABPrime,
	{2, 1}: analysis.APrimeB,
	{2, 3}: analysis.APrimeBPrime,
}

// bobAngle is the Bloch angle of Bob's analyzer at setting s. For Bell states
// whose correlation depends on the angle sum Bob reflects his analyzer.
func bobAngle(bs BellState, s ledger.Setting) float64 {
	if bs.mirrored() {
		return -s.BlochDegrees()
	}
	return s.BlochDegrees()
}

// agreeing returns the outcome at the far end of a pair whose outcomes agree
// with probability (1+e)/2, given the near outcome.
func agreeing(near uint8, e float64, u float64) uint8 {
	if u < (1+e)/2 {
		return near
	}
	return near ^ 1
}

// settingBasis is the basis Bob's detector frame resembles at setting s:
// settings an odd multiple of 45° on the Bloch sphere lie between the
// rectilinear axes and are exposed to dephasing.
func settingBasis(s ledger.Setting) photon.Basis {
	if s%2 == 1 {
		return photon.Diagonal
	}
	return photon.Rectilinear
}

// e91Step returns the E91 per-pair simulation. Alice's outcome is uniform and
// Bob's is sampled to reproduce the Bell state's correlation at the chosen
// settings. Bob's photon then crosses the channel. Eve, when she acts,
// measures Bob's photon at a random Bob setting and resends a product state,
// which destroys the entanglement.
//
// Equal settings, (45°, 45°) and (90°, 90°), feed the key. The four
// Bell test pairs feed the CHSH statistic. All other pairs are discarded.
func e91Step(c Config) stepFunc {
	bs := c.bellState()
	return func(i int, r *rand.Rand) ledger.Record {
		rec := ledger.Record{
			Index:        i,
			AliceSetting: aliceSettings[r.Intn(len(aliceSettings))],
			BobSetting:   bobSettings[r.Intn(len(bobSettings))],
			AliceBit:     photon.RandomBit(r),
		}
		uBob := r.Float64()
		acts := c.Eve.Acts(r)
		eveSetting := bobSettings[r.Intn(len(bobSettings))]
		uEve := r.Float64()

		alice := rec.AliceSetting.BlochDegrees()
		var bobBit uint8
		if acts {
			eveAngle := bobAngle(bs, eveSetting)
			eveBit := agreeing(rec.AliceBit, bs.Correlation(alice, eveAngle), uEve)
			rec.Eve = &ledger.Interception{Setting: eveSetting, Bit: eveBit}
			// Eve resends a product state along her own axis.
			bobBit = agreeing(eveBit, PhiPlus.Correlation(eveAngle, bobAngle(bs, rec.BobSetting)), uBob)
		} else {
			bobBit = agreeing(rec.AliceBit, bs.Correlation(alice, bobAngle(bs, rec.BobSetting)), uBob)
		}

		basis := settingBasis(rec.BobSetting)
		rec.BobBasis = basis
		rec.Detected, rec.DarkCount, rec.BobBit = receive(photon.Prepare(basis, bobBit), basis, c.Channel, r)

		_, bell := chshTerms[[2]ledger.Setting{rec.AliceSetting, rec.BobSetting}]
		rec.ForCHSH = bell
		rec.InKey = rec.AliceSetting == rec.BobSetting
		return rec
	}
}

// correlationSamples collects the detected Bell test pairs of l.
func correlationSamples(l ledger.Ledger) []analysis.CorrelationSample {
	var samples []analysis.CorrelationSample
	for _, rec := range l {
		if !rec.ForCHSH || !rec.Detected {
			continue
		}
		term := chshTerms[[2]ledger.Setting{rec.AliceSetting, rec.BobSetting}]
		samples = append(samples, analysis.CorrelationSample{Term: term, Alice: rec.AliceBit, Bob: rec.BobBit})
	}
	return samples
}
