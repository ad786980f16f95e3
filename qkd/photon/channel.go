package photon

import (
	"math"
	"math/rand"
)

var (
	// DefaultWavelengthNm is used when ChannelParams.WavelengthNm is zero.
	DefaultWavelengthNm = 1550.0
	// DefaultDetectorEfficiency is used when ChannelParams.DetectorEfficiency
	// is zero.
	DefaultDetectorEfficiency = 1.0
	// DetectorGate is the detection window, in seconds, over which dark counts
	// accumulate for a single signal.
	DetectorGate = 1e-9
)

// attenuationTable maps common telecom wavelengths (nm) to typical fiber
// attenuation coefficients (dB/km).
var attenuationTable = []struct {
	wavelengthNm float64
	dbPerKm      float64
}{
	{780, 3.5},
	{850, 2.5},
	{1310, 0.35},
	{1550, 0.20},
}

// A ChannelParams describes the optical fiber and detector between Alice and
// Bob. ChannelParams are immutable for the length of a simulation run.
type ChannelParams struct {
	FiberLengthKm float64 `koanf:"fiber_length_km" validate:"gte=0"`

	// WavelengthNm selects the attenuation coefficient. Defaults to
	// DefaultWavelengthNm.
	WavelengthNm float64 `koanf:"wavelength_nm" validate:"gte=0"`

	// DetectorEfficiency is the probability that a photon reaching Bob
	// registers a click. Defaults to DefaultDetectorEfficiency.
	DetectorEfficiency float64 `koanf:"detector_efficiency" validate:"gte=0,lte=1"`

	DarkCountRateHz float64 `koanf:"dark_count_rate_hz" validate:"gte=0"`

	// Depolarization, PhaseDamping and AmplitudeDamping are per-photon
	// probabilities of a bit flip, a phase randomization and an absorption
	// respectively.
	Depolarization   float64 `koanf:"depolarization" validate:"gte=0,lte=1"`
	PhaseDamping     float64 `koanf:"phase_damping" validate:"gte=0,lte=1"`
	AmplitudeDamping float64 `koanf:"amplitude_damping" validate:"gte=0,lte=1"`
}

// Attenuation returns the fiber attenuation coefficient in dB/km for the given
// wavelength, taken from the nearest entry of a fixed lookup table.
func Attenuation(wavelengthNm float64) float64 {
	if wavelengthNm == 0 {
		wavelengthNm = DefaultWavelengthNm
	}
	best := attenuationTable[0]
	for _, e := range attenuationTable[1:] {
		if math.Abs(e.wavelengthNm-wavelengthNm) < math.Abs(best.wavelengthNm-wavelengthNm) {
			best = e
		}
	}
	return best.dbPerKm
}

// Transmittance returns the probability that a photon survives the fiber.
func (p ChannelParams) Transmittance() float64 {
	return math.Pow(10, -Attenuation(p.WavelengthNm)*p.FiberLengthKm/10)
}

// LossProbability returns the probability that a photon is lost in the fiber,
// i.e. 1 - 10^(-αL/10).
func (p ChannelParams) LossProbability() float64 {
	return 1 - p.Transmittance()
}

// Efficiency returns the detector efficiency, applying the default.
func (p ChannelParams) Efficiency() float64 {
	if p.DetectorEfficiency == 0 {
		return DefaultDetectorEfficiency
	}
	return p.DetectorEfficiency
}

// DarkCountProbability returns the probability of at least one dark count
// during a single detection gate.
func (p ChannelParams) DarkCountProbability() float64 {
	return 1 - math.Exp(-p.DarkCountRateHz*DetectorGate)
}

// ApplyOpticalNoise sends s through the fiber described by p. It returns the
// state arriving at Bob, or ok == false if the photon was lost.
//
// The steps are applied in a fixed order: fiber loss, depolarization, phase
// damping, then amplitude damping. ApplyOpticalNoise consumes the same number
// of draws from r whether or not the photon survives, so that two runs
// sharing a random stream but differing in p stay aligned.
func ApplyOpticalNoise(s State, p ChannelParams, r *rand.Rand) (State, bool) {
	uLoss := r.Float64()
	uDepol := r.Float64()
	uPhase := r.Float64()
	phase := 2 * math.Pi * r.Float64()
	uAmp := r.Float64()

	t := p.Transmittance()
	if uLoss >= t {
		return State{}, false
	}
	s.Amplitude *= t
	if uDepol < p.Depolarization {
		s.Bit ^= 1
	}
	if uPhase < p.PhaseDamping {
		s.Phase = phase
	}
	if uAmp < p.AmplitudeDamping {
		return State{}, false
	}
	s.Amplitude *= 1 - p.AmplitudeDamping
	return s, true
}

// A Click describes what Bob's detector registered for a single signal.
type Click int

const (
	// NoClick means nothing was detected.
	NoClick Click = iota
	// PhotonClick means the photon itself was detected.
	PhotonClick
	// DarkClick means the photon was lost but a dark count fired, yielding
	// an outcome uncorrelated with anything Alice sent.
	DarkClick
)

// Detect decides whether Bob's detector clicks for a photon that either
// arrived (arrived == true) or was lost. Detect always consumes two draws
// from r.
func Detect(arrived bool, p ChannelParams, r *rand.Rand) Click {
	uEff := r.Float64()
	uDark := r.Float64()
	if arrived && uEff < p.Efficiency() {
		return PhotonClick
	}
	if uDark < p.DarkCountProbability() {
		return DarkClick
	}
	return NoClick
}

// LegacyNoiseToOptical expands a single "noise %" slider value into the
// optical channel model. This is a configuration convenience, not physics:
// the noise fraction n = noisePercent/100 (clamped to [0, 1]) is split into
// depolarization 0.5n, phase damping 0.3n and amplitude damping 0.2n, over an
// ideal 1550 nm detector with no dark counts.
func LegacyNoiseToOptical(noisePercent, fiberLengthKm float64) ChannelParams {
	n := math.Max(0, math.Min(1, noisePercent/100))
	return ChannelParams{
		FiberLengthKm:      fiberLengthKm,
		WavelengthNm:       DefaultWavelengthNm,
		DetectorEfficiency: 1,
		Depolarization:     0.5 * n,
		PhaseDamping:       0.3 * n,
		AmplitudeDamping:   0.2 * n,
	}
}
