package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alan-christopher/qkdsim/qkd"
	"github.com/alan-christopher/qkdsim/qkd/analysis"
	"github.com/alan-christopher/qkdsim/qkd/eve"
	"github.com/alan-christopher/qkdsim/qkd/sweep"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qkdsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	f, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", f.LogLevel)
	assert.Equal(t, 1000, f.Signals)
	assert.Equal(t, Defaults().Channel, f.Channel)
	assert.Equal(t, Defaults().Analysis, f.Analysis)
	assert.Equal(t, Defaults().Heuristic, f.Heuristic)
	assert.Empty(t, f.Sweep.Values)

	c := f.Simulation()
	assert.Equal(t, qkd.BB84, c.Protocol)
	assert.Nil(t, c.Eve)
	assert.Nil(t, c.Seed)
	assert.Nil(t, c.Heuristic)
	assert.NoError(t, c.Validate())

	_, ok := f.SweepRequest()
	assert.False(t, ok)
}

func TestLoadLayers(t *testing.T) {
	path := writeYAML(t, `
protocol: e91
signals: 5000
seed: 7
bell_state: PSI-
channel:
  fiber_length_km: 25
  depolarization: 0.01
eve:
  enabled: true
  interception_probability: 0.2
sweep:
  parameter: distance
  values: [0, 10, 25]
  workers: 2
`)
	t.Setenv("QKDSIM_SIGNALS", "8000")
	t.Setenv("QKDSIM_CHANNEL__FIBER_LENGTH_KM", "40")

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, f.Signals)
	assert.Equal(t, 40.0, f.Channel.FiberLengthKm)
	assert.Equal(t, 0.01, f.Channel.Depolarization)
	// Untouched defaults survive.
	assert.Equal(t, 1550.0, f.Channel.WavelengthNm)
	assert.Equal(t, "info", f.LogLevel)

	c := f.Simulation()
	assert.Equal(t, qkd.E91, c.Protocol)
	assert.Equal(t, qkd.PsiMinus, c.BellState)
	require.NotNil(t, c.Seed)
	assert.Equal(t, int64(7), *c.Seed)
	require.NotNil(t, c.Eve)
	assert.Equal(t, eve.InterceptResend, c.Eve.Attack)
	assert.Equal(t, 0.2, c.Eve.InterceptionProbability)
	assert.NoError(t, c.Validate())

	req, ok := f.SweepRequest()
	require.True(t, ok)
	assert.Equal(t, sweep.Distance, req.Parameter)
	assert.Equal(t, []float64{0, 10, 25}, req.Values)
	assert.Equal(t, 2, f.Sweep.Workers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeYAML(t, "signals: [not, a, number"))
	assert.Error(t, err)
}

func TestSimulationOverrides(t *testing.T) {
	f := Defaults()
	f.NoisePercent = 50
	f.B92.EveMatchFidelity = 0.9
	f.Heuristic.Floor = 0.01

	c := f.Simulation()
	assert.InDelta(t, 0.25, c.Channel.Depolarization, 1e-12)
	assert.InDelta(t, 0.15, c.Channel.PhaseDamping, 1e-12)
	assert.InDelta(t, 0.1, c.Channel.AmplitudeDamping, 1e-12)
	require.NotNil(t, c.B92.EveFidelity)
	assert.Equal(t, eve.Fidelity{Match: 0.9, Mismatch: eve.DefaultB92Fidelity.Mismatch}, *c.B92.EveFidelity)
	require.NotNil(t, c.Heuristic)
	assert.Equal(t, analysis.Heuristic{EveWeight: 0.5, NoiseWeight: 0.5, Floor: 0.01}, *c.Heuristic)
}

func TestSimulationInvalid(t *testing.T) {
	f := Defaults()
	f.Protocol = "bb85"
	assert.ErrorIs(t, f.Simulation().Validate(), qkd.ErrInvalidParameter)
}
