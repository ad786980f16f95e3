// Package qkd simulates quantum key distribution between Alice and Bob using
// the BB84, B92 and E91 protocols.
//
// A run is a pure function of its Config and random source: the engine
// eagerly computes one ledger.Record per signal, then folds the ledger into a
// Result. Nothing is logged and nothing is retained between runs.
package qkd

import (
	crand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/alan-christopher/qkdsim/qkd/analysis"
	"github.com/alan-christopher/qkdsim/qkd/distill"
	"github.com/alan-christopher/qkdsim/qkd/eve"
	"github.com/alan-christopher/qkdsim/qkd/ledger"
	"github.com/alan-christopher/qkdsim/qkd/photon"
)

// MaxSignals bounds Config.NumSignals, keeping a run's memory and time
// bounded.
const MaxSignals = 1 << 20

// ErrInvalidParameter is returned, wrapped with details, for any Config that
// cannot be simulated.
var ErrInvalidParameter = errors.New("invalid parameter")

// A Protocol names a QKD protocol.
type Protocol string

const (
	BB84 Protocol = "BB84"
	B92  Protocol = "B92"
	E91  Protocol = "E91"
)

// A BellState names the entangled state shared by E91 pairs.
type BellState string

const (
	// PhiPlus is (|00⟩ + |11⟩)/√2: outcomes at equal settings always agree.
	PhiPlus BellState = "phi+"
	// PhiMinus is (|00⟩ − |11⟩)/√2.
	PhiMinus BellState = "phi-"
	// PsiPlus is (|01⟩ + |10⟩)/√2.
	PsiPlus BellState = "psi+"
	// PsiMinus is the singlet (|01⟩ − |10⟩)/√2: outcomes at equal settings
	// always disagree, so Bob complements his key bits.
	PsiMinus BellState = "psi-"
)

// Label returns the conventional symbol for b.
func (b BellState) Label() string {
	switch b {
	case PhiPlus:
		return "Φ+"
	case PhiMinus:
		return "Φ−"
	case PsiPlus:
		return "Ψ+"
	case PsiMinus:
		return "Ψ−"
	}
	return string(b)
}

// Correlation returns the expected product of ±1 outcomes for a pair whose
// halves are measured along Bloch angles alice and bob, in degrees. The Φ+ and Ψ−
// correlations depend on a − b, the Φ− and Ψ+ ones on a + b.
func (b BellState) Correlation(alice, bob float64) float64 {
	switch b {
	case PhiMinus:
		return math.Cos((alice + bob) * math.Pi / 180)
	case PsiPlus:
		return -math.Cos((alice + bob) * math.Pi / 180)
	case PsiMinus:
		return -math.Cos((alice - bob) * math.Pi / 180)
	}
	return math.Cos((alice - bob) * math.Pi / 180)
}

// mirrored reports whether Bob must reflect his analyzer, measuring at −θ for
// setting θ, for equal settings to stay perfectly (anti-)correlated.
func (b BellState) mirrored() bool {
	return b == PhiMinus || b == PsiPlus
}

// Anticorrelated reports whether equal settings yield opposite outcomes once
// Bob's analyzer is oriented for b. Bob complements his key bits for these
// states.
func (b BellState) Anticorrelated() bool {
	return b == PsiMinus || b == PsiPlus
}

// B92Options tunes the B92 engine. Zero fields take their defaults.
type B92Options struct {
	// ConclusiveEfficiency thins conclusive detections, modeling the
	// imperfect unambiguous discrimination of real B92 receivers. Defaults
	// to DefaultB92ConclusiveEfficiency.
	ConclusiveEfficiency float64 `koanf:"conclusive_efficiency" validate:"gte=0,lte=1"`
	// EveFidelity overrides eve.DefaultB92Fidelity.
	EveFidelity *eve.Fidelity `koanf:"eve_fidelity"`
}

// DefaultB92ConclusiveEfficiency is used when B92Options.ConclusiveEfficiency
// is zero.
var DefaultB92ConclusiveEfficiency = 1.0

func (o B92Options) efficiency() float64 {
	if o.ConclusiveEfficiency == 0 {
		return DefaultB92ConclusiveEfficiency
	}
	return o.ConclusiveEfficiency
}

func (o B92Options) fidelity() eve.Fidelity {
	if o.EveFidelity == nil {
		return eve.DefaultB92Fidelity
	}
	return *o.EveFidelity
}

// A Config describes a single simulation run.
type Config struct {
	Protocol Protocol `koanf:"protocol" json:"protocol" validate:"oneof=BB84 B92 E91"`
	// NumSignals is bounded by MaxSignals; the lte tag must track it.
	NumSignals int `koanf:"num_signals" json:"num_signals" validate:"gt=0,lte=1048576"`

	Channel photon.ChannelParams `koanf:"channel" json:"channel"`
	// Eve is nil when nobody is listening.
	Eve *eve.Config `koanf:"eve" json:"eve,omitempty"`

	// Seed makes the run reproducible. When nil a seed is drawn from the
	// operating system and reported in Result.Seed.
	Seed *int64 `koanf:"seed" json:"-"`

	// BellState is only used by E91. Defaults to PhiPlus.
	BellState BellState `koanf:"bell_state" json:"bell_state,omitempty" validate:"omitempty,oneof=phi+ phi- psi+ psi-"`

	B92       B92Options          `koanf:"b92" json:"b92"`
	Analysis  analysis.Options    `koanf:"analysis" json:"analysis"`
	Heuristic *analysis.Heuristic `koanf:"heuristic" json:"heuristic,omitempty"`

	// Distill enables reconciliation and privacy amplification of secure
	// sifted keys.
	Distill        bool            `koanf:"distill" json:"distill"`
	DistillOptions distill.Options `koanf:"distill_options" json:"distill_options"`
}

func (c Config) bellState() BellState {
	if c.BellState == "" {
		return PhiPlus
	}
	return c.BellState
}

func (c Config) heuristic() analysis.Heuristic {
	if c.Heuristic == nil {
		return analysis.DefaultHeuristic
	}
	return *c.Heuristic
}

// Extras holds the protocol-specific parts of a Result.
type Extras struct {
	// CHSH and BellState are only set for E91.
	CHSH      *analysis.CHSHResult
	BellState string
}

// A Result is everything a run produced.
type Result struct {
	// RunID is derived from the configuration and seed, so reproducing a run
	// reproduces its id.
	RunID    uuid.UUID
	Protocol Protocol
	Seed     int64

	Records ledger.Ledger
	Counts  ledger.Counts

	SiftedKeyAlice []uint8
	SiftedKeyBob   []uint8
	// FinalKeyHex is Alice's sifted key.
	FinalKeyHex string

	QBER           float64
	SecurityStatus analysis.Status
	HoeffdingUpper float64
	SecureKeyRate  float64
	EveInformation float64

	Extras   Extras
	Expected analysis.Expectation

	// Distilled is set only when Config.Distill is on and the run is secure.
	Distilled *distill.Distillation
}

// SValue returns the CHSH S value of an E91 run, or nil.
func (r Result) SValue() *float64 {
	if r.Extras.CHSH == nil {
		return nil
	}
	s := r.Extras.CHSH.S
	return &s
}

// Run simulates c. It seeds its own random source from c.Seed, or from the
// operating system when c.Seed is nil.
func Run(c Config) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	var seed int64
	if c.Seed != nil {
		seed = *c.Seed
	} else {
		var err error
		if seed, err = RandomSeed(); err != nil {
			return Result{}, err
		}
	}
	return run(c, seed)
}

// RunWithRand simulates c, drawing its seed from r. c.Seed is ignored. The
// seed reported in the Result reproduces the run through Run.
func RunWithRand(c Config, r *rand.Rand) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}
	return run(c, r.Int63())
}

// RandomSeed draws a seed from the operating system.
func RandomSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("drawing seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1), nil
}

func run(c Config, seed int64) (Result, error) {
	master := rand.New(rand.NewSource(seed))
	var step stepFunc
	switch c.Protocol {
	case BB84:
		step = bb84Step(c)
	case B92:
		step = b92Step(c)
	case E91:
		step = e91Step(c)
	default:
		return Result{}, fmt.Errorf("%w: unknown protocol %q", ErrInvalidParameter, c.Protocol)
	}
	l := transmit(c.NumSignals, step, master)
	res, err := summarize(c, l, master)
	if err != nil {
		return Result{}, err
	}
	res.Seed = seed
	res.RunID = runID(c, seed)
	return res, nil
}

// A stepFunc simulates the i-th signal using its own random stream.
type stepFunc func(i int, r *rand.Rand) ledger.Record

// transmit runs step once per signal. Each signal draws from its own stream,
// seeded from master, so a signal's randomness does not depend on how many
// draws earlier signals consumed.
func transmit(n int, step stepFunc, master *rand.Rand) ledger.Ledger {
	l := make(ledger.Ledger, 0, n)
	sub := rand.New(rand.NewSource(0))
	for i := 0; i < n; i++ {
		sub.Seed(master.Int63())
		l = append(l, step(i, sub))
	}
	return l
}

var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/alan-christopher/qkdsim"))

func runID(c Config, seed int64) uuid.UUID {
	b, err := json.Marshal(c)
	if err != nil {
		b = []byte(c.Protocol)
	}
	return uuid.NewSHA1(runNamespace, binary.LittleEndian.AppendUint64(b, uint64(seed)))
}
