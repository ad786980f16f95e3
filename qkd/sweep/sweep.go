// Package sweep re-runs a simulation across the values of one parameter,
// holding the rest of the configuration fixed, for trend analysis.
package sweep

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/alan-christopher/qkdsim/qkd"
	"github.com/alan-christopher/qkdsim/qkd/analysis"
	"github.com/alan-christopher/qkdsim/qkd/eve"
	"github.com/alan-christopher/qkdsim/qkd/photon"
)

// A Parameter names the configuration value a sweep varies.
type Parameter string

const (
	// Distance sweeps the fiber length in km.
	Distance Parameter = "distance"
	// Interception sweeps Eve's interception probability. A base
	// configuration without an eavesdropper gains an intercept-resend one.
	Interception Parameter = "interception"
	// Noise sweeps the single noise percentage expanded by
	// photon.LegacyNoiseToOptical. Only the three noise fields of the base
	// channel are replaced.
	Noise Parameter = "noise"
)

// A Request describes a sweep.
type Request struct {
	Parameter Parameter
	Values    []float64
	Base      qkd.Config
}

// Options tunes how a sweep is executed. The zero value is ready to use.
type Options struct {
	// Workers bounds the number of points simulated at once. Defaults to
	// GOMAXPROCS.
	Workers int
	// Logger receives per-point progress. Nil discards it.
	Logger *zerolog.Logger
}

// A Point summarizes the run at one sweep value.
type Point struct {
	Value float64

	RunID          string
	Signals        int
	Sifted         int
	QBER           float64
	HoeffdingUpper float64
	SecureKeyRate  float64
	EveInformation float64
	Status         analysis.Status
	// S is the CHSH value, set only for E91.
	S *float64

	Expected analysis.Expectation
}

// Run simulates every value of req concurrently and returns one Point per
// value, in input order. All points share the base configuration's seed, so
// they are driven by the same random numbers and differ only by the swept
// parameter. Every point's configuration is validated before any simulation
// starts. Cancelling ctx abandons the points not yet finished.
func Run(ctx context.Context, req Request, o Options) ([]Point, error) {
	configs, err := req.configs()
	if err != nil {
		return nil, err
	}

	workers := o.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := zerolog.Nop()
	if o.Logger != nil {
		log = *o.Logger
	}
	log = log.With().Str("parameter", string(req.Parameter)).Str("protocol", string(req.Base.Protocol)).Logger()
	log.Info().Int("points", len(configs)).Int("workers", workers).Int64("seed", *configs[0].Seed).Msg("starting sweep")
	start := time.Now()

	points := make([]Point, len(configs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range configs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := qkd.Run(c)
			if err != nil {
				return fmt.Errorf("point %d (%s=%v): %w", i, req.Parameter, req.Values[i], err)
			}
			points[i] = summarize(req.Values[i], res)
			log.Debug().
				Int("index", i).
				Float64("value", req.Values[i]).
				Float64("qber", res.QBER).
				Str("status", string(res.SecurityStatus)).
				Msg("point done")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("sweep aborted")
		return nil, err
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("sweep done")
	return points, nil
}

func (req Request) configs() ([]qkd.Config, error) {
	if len(req.Values) == 0 {
		return nil, fmt.Errorf("%w: sweep values are empty", qkd.ErrInvalidParameter)
	}
	base := req.Base
	if base.Seed == nil {
		s, err := qkd.RandomSeed()
		if err != nil {
			return nil, err
		}
		base.Seed = &s
	}

	configs := make([]qkd.Config, len(req.Values))
	for i, v := range req.Values {
		c, err := req.Parameter.apply(base, v)
		if err != nil {
			return nil, err
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%s=%v: %w", req.Parameter, v, err)
		}
		configs[i] = c
	}
	return configs, nil
}

// apply returns a copy of c with p set to v.
func (p Parameter) apply(c qkd.Config, v float64) (qkd.Config, error) {
	switch p {
	case Distance:
		c.Channel.FiberLengthKm = v
	case Interception:
		e := eve.Config{Attack: eve.InterceptResend}
		if c.Eve != nil {
			e = *c.Eve
		}
		e.InterceptionProbability = v
		c.Eve = &e
	case Noise:
		if v < 0 || v > 100 {
			return qkd.Config{}, fmt.Errorf("%w: noise must be within [0, 100], got %v", qkd.ErrInvalidParameter, v)
		}
		legacy := photon.LegacyNoiseToOptical(v, c.Channel.FiberLengthKm)
		c.Channel.Depolarization = legacy.Depolarization
		c.Channel.PhaseDamping = legacy.PhaseDamping
		c.Channel.AmplitudeDamping = legacy.AmplitudeDamping
	default:
		return qkd.Config{}, fmt.Errorf("%w: unknown sweep parameter %q", qkd.ErrInvalidParameter, p)
	}
	return c, nil
}

func summarize(v float64, res qkd.Result) Point {
	return Point{
		Value:          v,
		RunID:          res.RunID.String(),
		Signals:        res.Counts.Total,
		Sifted:         len(res.SiftedKeyAlice),
		QBER:           res.QBER,
		HoeffdingUpper: res.HoeffdingUpper,
		SecureKeyRate:  res.SecureKeyRate,
		EveInformation: res.EveInformation,
		Status:         res.SecurityStatus,
		S:              res.SValue(),
		Expected:       res.Expected,
	}
}
