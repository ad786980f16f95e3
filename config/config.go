// Package config loads qkdsim's settings from, in increasing precedence,
// built-in defaults, an optional YAML file and QKDSIM_ environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/alan-christopher/qkdsim/qkd"
	"github.com/alan-christopher/qkdsim/qkd/analysis"
	"github.com/alan-christopher/qkdsim/qkd/distill"
	"github.com/alan-christopher/qkdsim/qkd/eve"
	"github.com/alan-christopher/qkdsim/qkd/photon"
	"github.com/alan-christopher/qkdsim/qkd/sweep"
)

// EnvPrefix prefixes every environment variable Load reads. Nested keys are
// separated by a double underscore, e.g. QKDSIM_CHANNEL__FIBER_LENGTH_KM.
const EnvPrefix = "QKDSIM_"

// A File is the full set of qkdsim settings.
type File struct {
	LogLevel string `koanf:"log_level"`

	Protocol string `koanf:"protocol"`
	Signals  int    `koanf:"signals"`
	// Seed makes runs reproducible. Zero draws a fresh seed per invocation.
	Seed int64 `koanf:"seed"`

	Channel photon.ChannelParams `koanf:"channel"`
	// NoisePercent, when positive, replaces the channel's three noise
	// probabilities with photon.LegacyNoiseToOptical's expansion of it.
	NoisePercent float64 `koanf:"noise_percent"`

	Eve       EveFile `koanf:"eve"`
	BellState string  `koanf:"bell_state"`
	B92       B92File `koanf:"b92"`

	Analysis  analysis.Options   `koanf:"analysis"`
	Heuristic analysis.Heuristic `koanf:"heuristic"`

	Distill        bool            `koanf:"distill"`
	DistillOptions distill.Options `koanf:"distill_options"`

	Sweep SweepFile `koanf:"sweep"`

	// LedgerOut, if set, names a file the run's ledger is exported to.
	LedgerOut string `koanf:"ledger_out"`
}

// EveFile configures the eavesdropper.
type EveFile struct {
	Enabled                 bool    `koanf:"enabled"`
	Attack                  string  `koanf:"attack"`
	InterceptionProbability float64 `koanf:"interception_probability"`
}

// B92File configures the B92 engine. Zero values take the engine defaults.
type B92File struct {
	ConclusiveEfficiency float64 `koanf:"conclusive_efficiency"`
	EveMatchFidelity     float64 `koanf:"eve_match_fidelity"`
	EveMismatchFidelity  float64 `koanf:"eve_mismatch_fidelity"`
}

// SweepFile configures a parameter sweep. A sweep runs iff Values is
// non-empty.
type SweepFile struct {
	Parameter string    `koanf:"parameter"`
	Values    []float64 `koanf:"values"`
	Workers   int       `koanf:"workers"`
}

// Defaults returns the built-in settings.
func Defaults() File {
	return File{
		LogLevel: "info",
		Protocol: string(qkd.BB84),
		Signals:  1000,
		Channel: photon.ChannelParams{
			WavelengthNm:       photon.DefaultWavelengthNm,
			DetectorEfficiency: photon.DefaultDetectorEfficiency,
		},
		Eve:       EveFile{Attack: string(eve.InterceptResend)},
		BellState: string(qkd.PhiPlus),
		Analysis: analysis.Options{
			Delta:     analysis.DefaultDelta,
			Threshold: analysis.DefaultThreshold,
		},
		Heuristic: analysis.DefaultHeuristic,
		Sweep:     SweepFile{Parameter: string(sweep.Distance)},
	}
}

// Load reads settings from defaults, then path if it is non-empty, then the
// environment.
func Load(path string) (File, error) {
	k := koanf.New(".")

	defaults := Defaults()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return File{}, fmt.Errorf("loading defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return File{}, fmt.Errorf("loading %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return File{}, fmt.Errorf("loading environment variables: %w", err)
	}

	var f File
	if err := k.Unmarshal("", &f); err != nil {
		return File{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return f, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Simulation returns the qkd.Config f describes. It does not validate it.
func (f File) Simulation() qkd.Config {
	c := qkd.Config{
		Protocol:       qkd.Protocol(strings.ToUpper(f.Protocol)),
		NumSignals:     f.Signals,
		Channel:        f.Channel,
		BellState:      qkd.BellState(strings.ToLower(f.BellState)),
		B92:            qkd.B92Options{ConclusiveEfficiency: f.B92.ConclusiveEfficiency},
		Analysis:       f.Analysis,
		Distill:        f.Distill,
		DistillOptions: f.DistillOptions,
	}
	if f.Seed != 0 {
		seed := f.Seed
		c.Seed = &seed
	}
	if f.NoisePercent > 0 {
		legacy := photon.LegacyNoiseToOptical(f.NoisePercent, f.Channel.FiberLengthKm)
		c.Channel.Depolarization = legacy.Depolarization
		c.Channel.PhaseDamping = legacy.PhaseDamping
		c.Channel.AmplitudeDamping = legacy.AmplitudeDamping
	}
	if f.Eve.Enabled {
		c.Eve = &eve.Config{
			Attack:                  eve.Attack(f.Eve.Attack),
			InterceptionProbability: f.Eve.InterceptionProbability,
		}
	}
	if f.B92.EveMatchFidelity != 0 || f.B92.EveMismatchFidelity != 0 {
		fid := eve.DefaultB92Fidelity
		if f.B92.EveMatchFidelity != 0 {
			fid.Match = f.B92.EveMatchFidelity
		}
		if f.B92.EveMismatchFidelity != 0 {
			fid.Mismatch = f.B92.EveMismatchFidelity
		}
		c.B92.EveFidelity = &fid
	}
	if f.Heuristic != analysis.DefaultHeuristic {
		h := f.Heuristic
		c.Heuristic = &h
	}
	return c
}

// SweepRequest returns the sweep f describes, or false if f describes a
// single run.
func (f File) SweepRequest() (sweep.Request, bool) {
	if len(f.Sweep.Values) == 0 {
		return sweep.Request{}, false
	}
	return sweep.Request{
		Parameter: sweep.Parameter(strings.ToLower(f.Sweep.Parameter)),
		Values:    f.Sweep.Values,
		Base:      f.Simulation(),
	}, true
}
