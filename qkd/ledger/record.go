// Package ledger holds the per-signal evidence produced by a protocol run.
//
// A Ledger is append-only: engines add one Record per transmitted photon (or
// entangled pair) and never revise it. Every statistic reported about a run is
// a fold over its Ledger plus the run's configuration.
package ledger

import (
	"github.com/alan-christopher/qkdsim/qkd/bitmap"
	"github.com/alan-christopher/qkdsim/qkd/photon"
)

// A Setting is an E91 analyzer setting, measured in multiples of 45° on the
// Bloch sphere. The physical polarizer angle is half that.
type Setting uint8

// BlochDegrees returns the setting's angle on the Bloch sphere.
func (s Setting) BlochDegrees() float64 {
	return 45 * float64(s)
}

// PolarizerDegrees returns the physical polarizer angle of the setting.
func (s Setting) PolarizerDegrees() float64 {
	return 22.5 * float64(s)
}

// An Interception is Eve's view of a single signal.
type Interception struct {
	Basis   photon.Basis
	Setting Setting
	Bit     uint8
}

// A Record is the immutable account of one transmitted signal.
type Record struct {
	Index int

	// BB84/B92: the bit Alice encoded and the basis she used. E91: Alice's
	// measurement outcome on her half of the pair.
	AliceBit   uint8
	AliceBasis photon.Basis

	// E91 only.
	AliceSetting Setting
	BobSetting   Setting

	// Eve is nil if the signal was not intercepted.
	Eve *Interception

	BobBasis photon.Basis
	// Detected is false if nothing registered at Bob, in which case BobBit is
	// meaningless.
	Detected bool
	// DarkCount marks a detection caused by detector noise rather than the
	// photon.
	DarkCount bool
	BobBit    uint8

	// Conclusive marks an unambiguous B92 detection.
	Conclusive bool

	// InKey marks signals selected for the sifted key. For BB84 a basis match
	// is enough, even if the photon was then lost; use Sifted to also require
	// a detection.
	InKey bool
	// ForCHSH marks E91 pairs feeding the Bell test. It is never set together
	// with InKey.
	ForCHSH bool
}

// Sifted reports whether r contributes a bit to the sifted key.
func (r Record) Sifted() bool {
	return r.InKey && r.Detected
}

// Lost reports whether r was selected for the key but never detected. Such
// signals reduce the yield but do not contribute to the error rate.
func (r Record) Lost() bool {
	return r.InKey && !r.Detected
}

// A Ledger is the ordered list of Records produced by one run.
type Ledger []Record

// Counts summarizes a Ledger.
type Counts struct {
	Total       int
	Detected    int
	InKey       int
	Sifted      int
	Lost        int
	Intercepted int
	CHSH        int
}

// Count folds l into a Counts.
func (l Ledger) Count() Counts {
	c := Counts{Total: len(l)}
	for _, r := range l {
		if r.Detected {
			c.Detected++
		}
		if r.InKey {
			c.InKey++
		}
		if r.Sifted() {
			c.Sifted++
		}
		if r.Lost() {
			c.Lost++
		}
		if r.Eve != nil {
			c.Intercepted++
		}
		if r.ForCHSH {
			c.CHSH++
		}
	}
	return c
}

// SiftedKeys returns Alice's and Bob's sifted keys. If flipBob is set, Bob's
// bits are complemented, as is needed for anti-correlated entangled pairs.
func (l Ledger) SiftedKeys(flipBob bool) (alice, bob bitmap.Dense) {
	for _, r := range l {
		if !r.Sifted() {
			continue
		}
		alice.AppendBit(r.AliceBit == 1)
		bob.AppendBit((r.BobBit == 1) != flipBob)
	}
	return alice, bob
}

// Filter returns the Records for which keep returns true, in order.
func (l Ledger) Filter(keep func(Record) bool) Ledger {
	var r Ledger
	for _, rec := range l {
		if keep(rec) {
			r = append(r, rec)
		}
	}
	return r
}
