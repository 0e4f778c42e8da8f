package smc

import (
	"sync/atomic"

	"github.com/roach88/scan/internal/engine"
	"github.com/roach88/scan/internal/mtl"
)

// Tally accumulates run results. It is safe for concurrent use.
type Tally struct {
	runs         atomic.Int64
	satisfied    atomic.Int64
	violated     atomic.Int64
	undetermined atomic.Int64
	discarded    atomic.Int64

	deadlocks       atomic.Int64
	lengthCutoffs   atomic.Int64
	durationCutoffs atomic.Int64
	sinkErrors      atomic.Int64

	guarantees []string
	index      map[string]int
	perGuar    []atomic.Int64
}

// NewTally returns an empty tally tracking the named guarantees.
func NewTally(guarantees []string) *Tally {
	t := &Tally{
		guarantees: guarantees,
		index:      make(map[string]int, len(guarantees)),
		perGuar:    make([]atomic.Int64, len(guarantees)),
	}
	for i, g := range guarantees {
		t.index[g] = i
	}
	return t
}

// Add records one finished run.
func (t *Tally) Add(v mtl.Verdict, term engine.Termination) {
	t.runs.Add(1)
	switch v.Outcome {
	case mtl.OutcomeSatisfied:
		t.satisfied.Add(1)
	case mtl.OutcomeViolated:
		t.violated.Add(1)
	default:
		t.undetermined.Add(1)
	}
	if v.Discarded {
		t.discarded.Add(1)
	}
	for _, name := range v.Violated {
		if i, ok := t.index[name]; ok {
			t.perGuar[i].Add(1)
		}
	}

	switch term {
	case engine.TermDeadlock:
		t.deadlocks.Add(1)
	case engine.TermLength:
		t.lengthCutoffs.Add(1)
	case engine.TermDuration:
		t.durationCutoffs.Add(1)
	}
}

// Runs returns the number of recorded runs.
func (t *Tally) Runs() int { return int(t.runs.Load()) }

func (t *Tally) sinkFailed() { t.sinkErrors.Add(1) }

// GuaranteeCount is the number of runs that violated one guarantee.
type GuaranteeCount struct {
	Name       string `json:"name"`
	Violations int    `json:"violations"`
}

// fill copies the counters into r and derives the rates.
func (t *Tally) fill(r *Report) {
	r.Runs = int(t.runs.Load())
	r.Satisfied = int(t.satisfied.Load())
	r.Violated = int(t.violated.Load())
	r.Undetermined = int(t.undetermined.Load())
	r.Discarded = int(t.discarded.Load())
	r.Deadlocks = int(t.deadlocks.Load())
	r.LengthCutoffs = int(t.lengthCutoffs.Load())
	r.DurationCutoffs = int(t.durationCutoffs.Load())
	r.SinkErrors = int(t.sinkErrors.Load())

	r.Guarantees = make([]GuaranteeCount, len(t.guarantees))
	for i, g := range t.guarantees {
		r.Guarantees[i] = GuaranteeCount{Name: g, Violations: int(t.perGuar[i].Load())}
	}

	if r.Runs > 0 {
		n := float64(r.Runs)
		r.SuccessRate = float64(r.Satisfied) / n
		r.FailureRate = float64(r.Violated) / n
		r.UndeterminedRate = float64(r.Undetermined) / n
	}
	r.HalfWidth = HalfWidth(r.Runs, r.Confidence)
}
