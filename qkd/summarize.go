package qkd

import (
	"math/rand"

	"github.com/alan-christopher/qkdsim/qkd/analysis"
	"github.com/alan-christopher/qkdsim/qkd/bitmap"
	"github.com/alan-christopher/qkdsim/qkd/distill"
	"github.com/alan-christopher/qkdsim/qkd/ledger"
)

// summarize folds l into a Result. Everything it reports is derived from l and
// c alone; r is only used for distillation.
func summarize(c Config, l ledger.Ledger, r *rand.Rand) (Result, error) {
	flipBob := c.Protocol == E91 && c.bellState().Anticorrelated()
	alice, bob := l.SiftedKeys(flipBob)
	n := alice.Size()

	res := Result{
		Protocol:       c.Protocol,
		Records:        l,
		Counts:         l.Count(),
		SiftedKeyAlice: bitmap.Bits(alice),
		SiftedKeyBob:   bitmap.Bits(bob),
		FinalKeyHex:    bitmap.Hex(alice),
		QBER:           analysis.QBER(alice, bob),
		Expected:       expectation(c),
	}
	res.EveInformation = analysis.EveInformation(res.QBER)

	verdict := analysis.Check(res.QBER, n, c.Analysis)
	res.SecurityStatus = verdict.Status
	res.HoeffdingUpper = verdict.Upper

	if c.Protocol == E91 {
		chsh := analysis.CHSH(correlationSamples(l))
		res.Extras = Extras{CHSH: &chsh, BellState: c.bellState().Label()}
		res.SecurityStatus = bellVerdict(res.SecurityStatus, chsh)
	}
	res.SecureKeyRate = analysis.SecureKeyRate(n, len(l), res.SecurityStatus)

	if c.Distill && res.SecurityStatus == analysis.Secure {
		d, err := distill.Distill(alice, bob, res.HoeffdingUpper, c.DistillOptions, r)
		if err != nil {
			return Result{}, err
		}
		res.Distilled = &d
	}
	return res, nil
}

// bellVerdict combines the key's QBER verdict with the Bell test. Without a
// violation there is no evidence of entanglement, so the run cannot be
// secure; without a complete Bell test nothing can be concluded.
func bellVerdict(s analysis.Status, chsh analysis.CHSHResult) analysis.Status {
	switch {
	case s != analysis.Secure:
		return s
	case !chsh.Complete:
		return analysis.Unknown
	case !chsh.Violated():
		return analysis.Compromised
	}
	return analysis.Secure
}

func expectation(c Config) analysis.Expectation {
	h := c.heuristic()
	var eveProb float64
	if c.Eve != nil {
		eveProb = c.Eve.InterceptionProbability
	}
	ch := c.Channel
	arrive := (1 - ch.LossProbability()) * (1 - ch.AmplitudeDamping) * ch.Efficiency()

	e := analysis.Expectation{
		QBER: h.ExpectedQBER(eveProb, ch.Depolarization, ch.DarkCountProbability()),
	}
	switch c.Protocol {
	case BB84:
		e.KeyRate = h.ExpectedKeyRate(0.5, 1-arrive, ch.Depolarization, eveProb)
	case B92:
		e.KeyRate = h.ExpectedKeyRate(0.25*c.B92.efficiency(), 1-arrive, ch.Depolarization, eveProb)
	case E91:
		e.KeyRate = h.ExpectedKeyRate(2.0/9, 1-arrive, ch.Depolarization, eveProb)
		e.S = h.ExpectedS(ch.Depolarization, eveProb)
		if c.bellState().Anticorrelated() {
			e.S = -e.S
		}
	}
	return e
}
