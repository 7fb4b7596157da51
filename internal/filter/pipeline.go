package filter

import (
	"fmt"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/config"
	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
)

// Verdict is the outcome of running a candidate through the pipeline: either
// a pass, or a rejection carrying the reason of the first failed gate.
type Verdict struct {
	reason models.RejectionReason
	gate   string
	err    error
}

// Pass is the passing verdict.
func Pass() Verdict { return Verdict{} }

// Reject returns a rejecting verdict for gate.
func Reject(gate string, reason models.RejectionReason) Verdict {
	return Verdict{reason: reason, gate: gate}
}

// Passed reports whether every gate passed.
func (v Verdict) Passed() bool { return v.reason == "" }

// Reason is the rejection reason, empty on pass.
func (v Verdict) Reason() models.RejectionReason { return v.reason }

// Gate is the name of the rejecting gate, empty on pass.
func (v Verdict) Gate() string { return v.gate }

// Err is set when the rejecting gate failed unexpectedly rather than on the data.
func (v Verdict) Err() error { return v.err }

func (v Verdict) String() string {
	switch {
	case v.Passed():
		return "pass"
	case v.err != nil:
		return fmt.Sprintf("reject(%s, error: %v)", v.reason, v.err)
	default:
		return fmt.Sprintf("reject(%s)", v.reason)
	}
}

// GateResult is the outcome of one gate in a full trace.
type GateResult struct {
	Gate   string
	Reason models.RejectionReason
	Passed bool
	Err    error
}

// Pipeline evaluates a fixed sequence of gates against candidates. It holds
// no per-call state and is safe for concurrent use.
type Pipeline struct {
	gates      []Gate
	thresholds config.Thresholds
}

// New returns a pipeline with the canonical gate order.
func New(cfg config.ScreeningConfig) *Pipeline {
	return NewWithGates(cfg, Canonical())
}

// NewWithGates returns a pipeline evaluating gates in the given order.
func NewWithGates(cfg config.ScreeningConfig, gates []Gate) *Pipeline {
	g := make([]Gate, len(gates))
	copy(g, gates)
	return &Pipeline{gates: g, thresholds: cfg.Thresholds()}
}

// Gates returns the evaluation order.
func (p *Pipeline) Gates() []Gate {
	out := make([]Gate, len(p.gates))
	copy(out, p.gates)
	return out
}

// Evaluate runs the gates in order and stops at the first failure.
func (p *Pipeline) Evaluate(c models.Candidate, vix float64) Verdict {
	in := Input{Candidate: c, VIX: vix}
	for _, g := range p.gates {
		ok, err := p.run(g, in)
		if err != nil {
			return Verdict{reason: g.Reason, gate: g.Name, err: err}
		}
		if !ok {
			return Reject(g.Name, g.Reason)
		}
	}
	return Pass()
}

// Trace evaluates every gate without stopping, for diagnostics.
func (p *Pipeline) Trace(c models.Candidate, vix float64) []GateResult {
	in := Input{Candidate: c, VIX: vix}
	out := make([]GateResult, 0, len(p.gates))
	for _, g := range p.gates {
		ok, err := p.run(g, in)
		out = append(out, GateResult{Gate: g.Name, Reason: g.Reason, Passed: ok && err == nil, Err: err})
	}
	return out
}

// run isolates a single gate: a panic is recovered and reported as an error
// so one malformed record cannot abort the batch.
func (p *Pipeline) run(g Gate, in Input) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("gate %s panicked: %v", g.Name, r)
		}
	}()
	if g.Check == nil {
		return false, fmt.Errorf("gate %s has no check", g.Name)
	}
	return g.Check(in, p.thresholds), nil
}
