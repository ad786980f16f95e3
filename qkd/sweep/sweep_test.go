package sweep

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alan-christopher/qkdsim/qkd"
	"github.com/alan-christopher/qkdsim/qkd/analysis"
)

func seed(s int64) *int64 { return &s }

func TestDistanceSweepIsOrderedAndMonotone(t *testing.T) {
	for _, p := range []qkd.Protocol{qkd.BB84, qkd.B92, qkd.E91} {
		t.Run(string(p), func(t *testing.T) {
			values := []float64{0, 10, 25, 50, 100}
			points, err := Run(context.Background(), Request{
				Parameter: Distance,
				Values:    values,
				Base:      qkd.Config{Protocol: p, NumSignals: 5000, Seed: seed(1)},
			}, Options{Workers: 3})
			require.NoError(t, err)
			require.Len(t, points, len(values))

			for i, pt := range points {
				assert.Equal(t, values[i], pt.Value)
				assert.Equal(t, 5000, pt.Signals)
				if i > 0 {
					assert.LessOrEqual(t, pt.SecureKeyRate, points[i-1].SecureKeyRate, "distance %v", pt.Value)
					assert.LessOrEqual(t, pt.Sifted, points[i-1].Sifted, "distance %v", pt.Value)
				}
			}
			assert.Positive(t, points[0].SecureKeyRate)
			if p == qkd.E91 {
				require.NotNil(t, points[0].S)
			} else {
				assert.Nil(t, points[0].S)
			}
		})
	}
}

func TestPointsMatchDirectRuns(t *testing.T) {
	base := qkd.Config{Protocol: qkd.BB84, NumSignals: 1000, Seed: seed(2)}
	points, err := Run(context.Background(), Request{
		Parameter: Interception,
		Values:    []float64{0, 0.5, 1},
		Base:      base,
	}, Options{})
	require.NoError(t, err)

	direct, err := qkd.Run(base)
	require.NoError(t, err)
	// Interception 0 adds a silent eavesdropper, which draws the same numbers
	// as none at all.
	assert.Equal(t, direct.QBER, points[0].QBER)
	assert.Equal(t, len(direct.SiftedKeyAlice), points[0].Sifted)

	assert.Less(t, points[0].QBER, points[1].QBER)
	assert.Less(t, points[1].QBER, points[2].QBER)
	assert.Equal(t, analysis.Compromised, points[2].Status)
}

func TestNoiseSweep(t *testing.T) {
	points, err := Run(context.Background(), Request{
		Parameter: Noise,
		Values:    []float64{0, 40},
		Base:      qkd.Config{Protocol: qkd.BB84, NumSignals: 4000, Seed: seed(3)},
	}, Options{Workers: 1})
	require.NoError(t, err)
	assert.Zero(t, points[0].QBER)
	assert.Greater(t, points[1].QBER, 0.05)
	assert.Greater(t, points[1].Expected.QBER, points[0].Expected.QBER)
}

func TestRunRejectsInvalidRequests(t *testing.T) {
	base := qkd.Config{Protocol: qkd.BB84, NumSignals: 100}
	tcs := []struct {
		name string
		req  Request
	}{
		{"empty values", Request{Parameter: Distance, Base: base}},
		{"unknown parameter", Request{Parameter: "wavelength", Values: []float64{1}, Base: base}},
		{"negative distance", Request{Parameter: Distance, Values: []float64{10, -1}, Base: base}},
		{"interception above one", Request{Parameter: Interception, Values: []float64{2}, Base: base}},
		{"noise above hundred", Request{Parameter: Noise, Values: []float64{150}, Base: base}},
		{"invalid base", Request{Parameter: Distance, Values: []float64{1}, Base: qkd.Config{Protocol: qkd.BB84}}},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			points, err := Run(context.Background(), tc.req, Options{})
			assert.ErrorIs(t, err, qkd.ErrInvalidParameter)
			assert.Nil(t, points)
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	points, err := Run(ctx, Request{
		Parameter: Distance,
		Values:    []float64{0, 10, 20},
		Base:      qkd.Config{Protocol: qkd.BB84, NumSignals: 100},
	}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, points)
}

func TestRunLogs(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	_, err := Run(context.Background(), Request{
		Parameter: Distance,
		Values:    []float64{0, 5},
		Base:      qkd.Config{Protocol: qkd.B92, NumSignals: 100, Seed: seed(4)},
	}, Options{Logger: &log})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"message":"starting sweep"`)
	assert.Contains(t, buf.String(), `"message":"point done"`)
	assert.Contains(t, buf.String(), `"parameter":"distance"`)
	assert.Contains(t, buf.String(), `"message":"sweep done"`)
}
