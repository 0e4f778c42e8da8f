package harness

import (
	"github.com/roach88/scan/internal/smc"
)

// TraceSnapshot is the captured trace of one run, as compared against a
// golden file. Events are the canonical event descriptions, so the
// snapshot is readable without the model.
type TraceSnapshot struct {
	ScenarioName string           `json:"scenario_name"`
	Run          int              `json:"run"`
	Outcome      string           `json:"outcome"`
	Violated     []string         `json:"violated"`
	Events       []map[string]any `json:"events"`

	// TraceHash is the hash the trace store recorded for this run. It is
	// not part of the golden comparison.
	TraceHash string `json:"-"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every expectation holds.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Report is the estimation report.
	Report *smc.Report `json:"report"`

	// Golden is the snapshot of the golden run, nil if none was requested.
	Golden *TraceSnapshot `json:"golden,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
