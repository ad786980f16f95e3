// Package analysis computes the security statistics of a QKD run from its
// sifted keys and ledger.
package analysis

import (
	"math"

	"github.com/alan-christopher/qkdsim/qkd/bitmap"
)

var (
	// DefaultDelta is the Hoeffding failure probability used when
	// Options.Delta is zero.
	DefaultDelta = 0.05
	// DefaultThreshold is the QBER bound used when Options.Threshold is zero.
	DefaultThreshold = 0.11
)

// A Status is a security verdict.
type Status string

const (
	Secure      Status = "secure"
	Compromised Status = "compromised"
	// Unknown means there was not enough evidence to decide, e.g. an empty
	// sifted key.
	Unknown Status = "unknown"
)

// Options tunes the security check. Zero fields take their defaults.
type Options struct {
	// Delta is the probability that the true error rate exceeds the
	// Hoeffding upper bound.
	Delta float64 `koanf:"delta" validate:"gte=0,lt=1"`
	// Threshold is the largest tolerable QBER.
	Threshold float64 `koanf:"threshold" validate:"gte=0,lte=1"`
}

func (o Options) delta() float64 {
	if o.Delta == 0 {
		return DefaultDelta
	}
	return o.Delta
}

// Limit returns the effective QBER threshold.
func (o Options) Limit() float64 {
	if o.Threshold == 0 {
		return DefaultThreshold
	}
	return o.Threshold
}

// QBER returns the fraction of positions at which alice and bob disagree. An
// empty key has a QBER of 0; callers must check the key length before
// trusting it.
func QBER(alice, bob bitmap.Dense) float64 {
	n := alice.Size()
	if n == 0 {
		return 0
	}
	var errs int
	for i := 0; i < n; i++ {
		if alice.Get(i) != bob.Get(i) {
			errs++
		}
	}
	return float64(errs) / float64(n)
}

// HoeffdingUpper returns a one-sided confidence bound on the true error rate,
// qber + sqrt(ln(2/δ)/(2n)). ok is false when there is no sample to bound.
func HoeffdingUpper(qber float64, n int, o Options) (upper float64, ok bool) {
	if n <= 0 {
		return 0, false
	}
	return qber + math.Sqrt(math.Log(2/o.delta())/(2*float64(n))), true
}

// A Verdict is the outcome of the security check.
type Verdict struct {
	Status Status
	// Upper is the Hoeffding bound the decision was based on. Zero when
	// Status is Unknown.
	Upper float64
}

// Check decides whether a sifted key of length n with the measured qber is
// secure: it is iff the Hoeffding upper bound lies strictly below the
// threshold.
func Check(qber float64, n int, o Options) Verdict {
	upper, ok := HoeffdingUpper(qber, n, o)
	if !ok || math.IsNaN(upper) || math.IsInf(upper, 0) {
		return Verdict{Status: Unknown}
	}
	if upper < o.Limit() {
		return Verdict{Status: Secure, Upper: upper}
	}
	return Verdict{Status: Compromised, Upper: upper}
}

// SecureKeyRate returns the fraction of transmitted signals that ended up in
// the sifted key, or zero unless the run was judged secure.
func SecureKeyRate(sifted, total int, s Status) float64 {
	if s != Secure || total <= 0 {
		return 0
	}
	return float64(sifted) / float64(total)
}

// EveInformation returns an illustrative upper bound on the fraction of the
// sifted key an intercept-resend eavesdropper could know, given the observed
// error rate. It follows the 2√2·QBER bound of Bennett et al.
// (https://link.springer.com/article/10.1007/BF00191318), capped at one bit
// per bit. It is non-decreasing in qber.
func EveInformation(qber float64) float64 {
	if qber <= 0 {
		return 0
	}
	return math.Min(1, 2*math.Sqrt2*qber)
}
