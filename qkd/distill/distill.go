// Package distill turns a pair of sifted keys into a shared secret key: Winnow
// reconciliation corrects Bob's errors, then Toeplitz hashing removes whatever
// an eavesdropper might know.
package distill

import (
	"math"
	"math/rand"

	"github.com/alan-christopher/qkdsim/qkd/bitmap"
)

var (
	// DefaultEpsilon is the privacy amplification security parameter used when
	// Options.Epsilon is zero.
	DefaultEpsilon = 1e-12

	// DefaultWinnowIters is the sequence of Hamming parity bit counts used when
	// Options.Iters is empty. Each pass uses blocks of 2^k bits.
	DefaultWinnowIters = []int{3, 3, 3, 4, 6, 7, 7, 7}
)

// Options tunes distillation. Zero fields take their defaults.
type Options struct {
	// Iters specifies the sequence of hamming bit counts to use during
	// reconciliation. Every entry must be at least 2.
	Iters []int `koanf:"iters" validate:"dive,gte=2,lte=16"`
	// Epsilon bounds the distance of the final key from uniform, from Eve's
	// point of view.
	Epsilon float64 `koanf:"epsilon" validate:"gte=0,lt=1"`
}

func (o Options) iters() []int {
	if len(o.Iters) == 0 {
		return DefaultWinnowIters
	}
	return o.Iters
}

func (o Options) epsilon() float64 {
	if o.Epsilon == 0 {
		return DefaultEpsilon
	}
	return o.Epsilon
}

// A Distillation is the outcome of reconciling and amplifying a pair of
// sifted keys.
type Distillation struct {
	// Key is Alice's final key.
	Key    bitmap.Dense
	KeyHex string
	// Agree reports whether Bob's final key matches Alice's.
	Agree bool
	// Reconciled is the key length after reconciliation and before hashing.
	Reconciled int
	// Announced is the number of parity bits published during reconciliation.
	Announced int
	// ResidualErrors is the number of mismatches Winnow failed to correct.
	ResidualErrors int
	// Compressed is the number of bits removed by privacy amplification.
	Compressed int
}

// Distill reconciles bob to alice and compresses the result so that an
// eavesdropper whose error rate is at most qberUpper knows a negligible amount
// about it. A key too short to survive compression yields an empty
// Distillation rather than an error.
func Distill(alice, bob bitmap.Dense, qberUpper float64, o Options, r *rand.Rand) (Distillation, error) {
	w := winnower{iters: o.iters()}
	rec, err := w.reconcile(alice, bob, r)
	if err != nil {
		return Distillation{}, err
	}
	n := rec.alice.Size()
	d := Distillation{
		Reconciled:     n,
		Announced:      rec.announced,
		ResidualErrors: bitmap.CountOnes(bitmap.XOr(rec.alice, rec.bob)),
	}

	// Privacy maintenance already discarded one bit per announced parity,
	// except the total parity of each corrected block.
	discarded := alice.Size() - n
	leaked := math.Max(0, float64(rec.announced-discarded)) + maxEveInfo(qberUpper, n)
	m := n - int(math.Ceil(leaked+2*math.Log(1/o.epsilon())))
	if m <= 0 {
		d.Compressed = n
		d.Agree = d.ResidualErrors == 0
		return d, nil
	}

	t := newToeplitz(m, n, r)
	aliceKey, err := t.Mul(rec.alice)
	if err != nil {
		return Distillation{}, err
	}
	bobKey, err := t.Mul(rec.bob)
	if err != nil {
		return Distillation{}, err
	}
	d.Key = aliceKey
	d.KeyHex = bitmap.Hex(aliceKey)
	d.Agree = bitmap.Equal(aliceKey, bobKey)
	d.Compressed = n - m
	return d, nil
}

// maxEveInfo returns a theoretical bound on the number of bits of an n-bit key
// known to an intercept-resend eavesdropper, given an upper bound on the QBER.
// See https://link.springer.com/article/10.1007/BF00191318.
func maxEveInfo(qberUpper float64, n int) float64 {
	return 2 * math.Sqrt2 * qberUpper * float64(n)
}
