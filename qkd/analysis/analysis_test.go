package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alan-christopher/qkdsim/qkd/bitmap"
)

func TestQBER(t *testing.T) {
	tcs := []struct {
		name       string
		alice, bob []uint8
		want       float64
	}{
		{"empty", nil, nil, 0},
		{"identical", []uint8{1, 0, 1, 1}, []uint8{1, 0, 1, 1}, 0},
		{"one error", []uint8{1, 0, 1, 1}, []uint8{1, 1, 1, 1}, 0.25},
		{"all wrong", []uint8{1, 0}, []uint8{0, 1}, 1},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			got := QBER(bitmap.FromBits(tc.alice), bitmap.FromBits(tc.bob))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHoeffdingUpper(t *testing.T) {
	_, ok := HoeffdingUpper(0, 0, Options{})
	assert.False(t, ok)

	upper, ok := HoeffdingUpper(0.02, 500, Options{})
	require.True(t, ok)
	assert.InDelta(t, 0.02+math.Sqrt(math.Log(40)/1000), upper, 1e-12)

	tighter, _ := HoeffdingUpper(0.02, 5000, Options{})
	assert.Less(t, tighter, upper)

	looser, _ := HoeffdingUpper(0.02, 500, Options{Delta: 0.001})
	assert.Greater(t, looser, upper)
}

func TestCheck(t *testing.T) {
	tcs := []struct {
		name string
		qber float64
		n    int
		want Status
	}{
		{"empty key", 0, 0, Unknown},
		{"clean large sample", 0, 1000, Secure},
		{"clean tiny sample", 0, 10, Compromised},
		{"noisy", 0.2, 100000, Compromised},
		{"just under", 0.09, 100000, Secure},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			v := Check(tc.qber, tc.n, Options{})
			assert.Equal(t, tc.want, v.Status)
			switch v.Status {
			case Secure:
				assert.Less(t, v.Upper, DefaultThreshold)
			case Compromised:
				assert.GreaterOrEqual(t, v.Upper, DefaultThreshold)
			case Unknown:
				assert.Zero(t, v.Upper)
			}
			assert.False(t, math.IsNaN(v.Upper))
		})
	}
}

func TestCheckCustomThreshold(t *testing.T) {
	v := Check(0.12, 100000, Options{Threshold: 0.15})
	assert.Equal(t, Secure, v.Status)
}

func TestSecureKeyRate(t *testing.T) {
	assert.Equal(t, 0.5, SecureKeyRate(500, 1000, Secure))
	assert.Zero(t, SecureKeyRate(500, 1000, Compromised))
	assert.Zero(t, SecureKeyRate(0, 0, Secure))
}

func TestEveInformationIsMonotone(t *testing.T) {
	assert.Zero(t, EveInformation(0))
	prev := 0.0
	for q := 0.0; q <= 0.5; q += 0.01 {
		got := EveInformation(q)
		assert.GreaterOrEqual(t, got, prev, "qber %v", q)
		assert.LessOrEqual(t, got, 1.0)
		prev = got
	}
}

func TestCHSH(t *testing.T) {
	var samples []CorrelationSample
	// Perfect correlation everywhere except E(a,b′), which is perfectly
	// anti-correlated: S = 1 - (-1) + 1 + 1 = 4.
	for term := AB; term <= APrimeBPrime; term++ {
		for i := 0; i < 10; i++ {
			bit := uint8(i % 2)
			bob := bit
			if term == ABPrime {
				bob ^= 1
			}
			samples = append(samples, CorrelationSample{Term: term, Alice: bit, Bob: bob})
		}
	}
	r := CHSH(samples)
	require.True(t, r.Complete)
	assert.Equal(t, [4]int{10, 10, 10, 10}, r.Samples)
	assert.InDelta(t, 4, r.S, 1e-12)
	assert.True(t, r.Violated())
}

func TestCHSHIncomplete(t *testing.T) {
	r := CHSH([]CorrelationSample{{Term: AB, Alice: 0, Bob: 0}})
	assert.False(t, r.Complete)
	assert.False(t, r.Violated())
	assert.Equal(t, 1.0, r.S)
}

func TestHeuristic(t *testing.T) {
	h := DefaultHeuristic
	assert.InDelta(t, 0.06, h.ExpectedQBER(0.1, 0.0, 0.01), 1e-12)
	assert.Equal(t, 0.5, h.ExpectedQBER(2, 2, 0))
	assert.InDelta(t, 0.25*0.9*0.85, h.ExpectedKeyRate(0.25, 0.1, 0.1, 0.05), 1e-12)
	assert.InDelta(t, TsirelsonBound, h.ExpectedS(0, 0), 1e-12)
	assert.Zero(t, h.ExpectedS(0.7, 0.7))

	floored := Heuristic{EveWeight: 0.5, NoiseWeight: 0.5, Floor: 0.02}
	assert.InDelta(t, 0.02, floored.ExpectedQBER(0, 0, 0), 1e-12)
}
