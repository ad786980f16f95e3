// qkdsim runs a single QKD simulation and prints its summary, or sweeps one
// parameter across a list of values and prints one CSV row per value.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/alan-christopher/qkdsim/config"
	"github.com/alan-christopher/qkdsim/qkd"
	"github.com/alan-christopher/qkdsim/qkd/ledger"
	"github.com/alan-christopher/qkdsim/qkd/sweep"
)

var (
	configPath = flag.String("config", "", "Optional YAML file of settings. Flags override it.")
	logLevel   = flag.String("log-level", "info", "One of trace, debug, info, warn, error.")

	protocol   = flag.String("protocol", "BB84", "The protocol to simulate: BB84, B92 or E91.")
	signals    = flag.Int("signals", 1000, "The number of photons (or entangled pairs) to send.")
	seed       = flag.Int64("seed", 0, "Seed for reproducible runs. 0 draws a fresh one.")
	bellState  = flag.String("bell-state", "phi+", "E91 only: phi+, phi-, psi+ or psi-.")
	distillKey = flag.Bool("distill", false, "Reconcile and privacy-amplify secure sifted keys.")

	fiberKm      = flag.Float64("fiber-length-km", 0, "Fiber length in km.")
	wavelength   = flag.Float64("wavelength-nm", 1550, "Photon wavelength in nm.")
	efficiency   = flag.Float64("detector-efficiency", 1, "Probability that an arriving photon clicks Bob's detector.")
	darkCounts   = flag.Float64("dark-count-rate-hz", 0, "Detector dark count rate in Hz.")
	depol        = flag.Float64("depolarization", 0, "Per-photon bit flip probability.")
	phaseDamp    = flag.Float64("phase-damping", 0, "Per-photon dephasing probability.")
	ampDamp      = flag.Float64("amplitude-damping", 0, "Per-photon absorption probability.")
	noisePercent = flag.Float64("noise-percent", 0, "A single noise percentage expanded into the three noise probabilities.")
	eveProb      = flag.Float64("eve", 0, "Probability that an intercept-resend eavesdropper intercepts each signal. Setting it enables Eve.")

	sweepParam   = flag.String("sweep-parameter", "distance", "The parameter to sweep: distance, interception or noise.")
	sweepValues  = flag.Float64Slice("sweep-values", nil, "Values to sweep. Switches output to CSV.")
	sweepWorkers = flag.Int("workers", 0, "Sweep points simulated at once. Defaults to GOMAXPROCS.")
	ledgerOut    = flag.String("ledger-out", "", "File to export the run's ledger to, for replay.")
)

func main() {
	flag.Parse()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()

	f, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}
	applyFlags(&f)

	lvl, err := zerolog.ParseLevel(f.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", f.LogLevel).Msg("parsing log level")
	}
	log = log.Level(lvl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if req, ok := f.SweepRequest(); ok {
		err = runSweep(ctx, os.Stdout, req, f.Sweep.Workers, &log)
	} else {
		err = runOnce(os.Stdout, f.Simulation(), f.LedgerOut, &log)
	}
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}

// applyFlags overrides f with every flag set on the command line.
func applyFlags(f *config.File) {
	set := func(name string, apply func()) {
		if flag.CommandLine.Changed(name) {
			apply()
		}
	}
	set("log-level", func() { f.LogLevel = *logLevel })
	set("protocol", func() { f.Protocol = *protocol })
	set("signals", func() { f.Signals = *signals })
	set("seed", func() { f.Seed = *seed })
	set("bell-state", func() { f.BellState = *bellState })
	set("distill", func() { f.Distill = *distillKey })
	set("fiber-length-km", func() { f.Channel.FiberLengthKm = *fiberKm })
	set("wavelength-nm", func() { f.Channel.WavelengthNm = *wavelength })
	set("detector-efficiency", func() { f.Channel.DetectorEfficiency = *efficiency })
	set("dark-count-rate-hz", func() { f.Channel.DarkCountRateHz = *darkCounts })
	set("depolarization", func() { f.Channel.Depolarization = *depol })
	set("phase-damping", func() { f.Channel.PhaseDamping = *phaseDamp })
	set("amplitude-damping", func() { f.Channel.AmplitudeDamping = *ampDamp })
	set("noise-percent", func() { f.NoisePercent = *noisePercent })
	set("eve", func() {
		f.Eve.Enabled = true
		f.Eve.InterceptionProbability = *eveProb
	})
	set("sweep-parameter", func() { f.Sweep.Parameter = *sweepParam })
	set("sweep-values", func() { f.Sweep.Values = *sweepValues })
	set("workers", func() { f.Sweep.Workers = *sweepWorkers })
	set("ledger-out", func() { f.LedgerOut = *ledgerOut })
}

var summaryTmpl = template.Must(template.New("summary").Parse(`run:             {{.RunID}}
protocol:        {{.Protocol}}
seed:            {{.Seed}}
signals:         {{.Counts.Total}} ({{.Counts.Detected}} detected, {{.Counts.Intercepted}} intercepted)
sifted key bits: {{len .SiftedKeyAlice}}
qber:            {{printf "%.4f" .QBER}} (expected {{printf "%.4f" .Expected.QBER}})
hoeffding upper: {{printf "%.4f" .HoeffdingUpper}}
status:          {{.SecurityStatus}}
secure key rate: {{printf "%.4f" .SecureKeyRate}}
eve information: {{printf "%.4f" .EveInformation}}
{{- with .Extras.CHSH}}
bell state:      {{$.Extras.BellState}}
chsh S:          {{printf "%.4f" .S}} (violated: {{.Violated}})
{{- end}}
final key:       {{.FinalKeyHex}}
{{- with .Distilled}}
distilled key:   {{.KeyHex}} ({{.Key.Size}} bits, {{.ResidualErrors}} residual errors)
{{- end}}
`))

func runOnce(w io.Writer, c qkd.Config, ledgerPath string, log *zerolog.Logger) error {
	res, err := qkd.Run(c)
	if err != nil {
		return err
	}
	log.Debug().Str("run", res.RunID.String()).Int("records", len(res.Records)).Msg("simulation done")
	if err := summaryTmpl.Execute(w, res); err != nil {
		return fmt.Errorf("BUG: could not fill in summary template: %w", err)
	}
	if ledgerPath == "" {
		return nil
	}
	return exportLedger(ledgerPath, res.Records, log)
}

func exportLedger(path string, l ledger.Ledger, log *zerolog.Logger) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	buf := bufio.NewWriter(out)
	if err := ledger.NewWriter(buf).WriteAll(l); err != nil {
		out.Close()
		return fmt.Errorf("exporting ledger: %w", err)
	}
	if err := buf.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("flushing ledger: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("records", len(l)).Msg("ledger exported")
	return nil
}

var columns = []string{"Value", "Signals", "Sifted", "QBER", "HoeffdingUpper",
	"SecureKeyRate", "EveInformation", "Status", "S", "ExpectedQBER", "ExpectedKeyRate"}

// A row flattens a sweep.Point for CSV output.
type row struct {
	sweep.Point
	S               string
	ExpectedQBER    float64
	ExpectedKeyRate float64
}

func runSweep(ctx context.Context, w io.Writer, req sweep.Request, workers int, log *zerolog.Logger) error {
	points, err := sweep.Run(ctx, req, sweep.Options{Workers: workers, Logger: log})
	if err != nil {
		return err
	}
	tmpl := template.Must(template.New("line").Parse(lineTmpl()))
	fmt.Fprintln(w, header())
	for _, p := range points {
		r := row{Point: p, ExpectedQBER: p.Expected.QBER, ExpectedKeyRate: p.Expected.KeyRate}
		if p.S != nil {
			r.S = strconv.FormatFloat(*p.S, 'f', 4, 64)
		}
		if err := tmpl.Execute(w, r); err != nil {
			return fmt.Errorf("BUG: could not fill in line template: %w", err)
		}
	}
	return nil
}

func header() string {
	return strings.Join(columns, ", ")
}

func lineTmpl() string {
	var els []string
	for _, c := range columns {
		els = append(els, "{{."+c+"}}")
	}
	return strings.Join(els, ", ") + "\n"
}
