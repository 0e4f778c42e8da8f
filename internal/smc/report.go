package smc

import "time"

// Report is the result of one estimation.
//
// Rates are over the runs actually completed. On cancellation Runs is below
// RequiredRuns and HalfWidth reflects the weaker guarantee.
type Report struct {
	Confidence   float64 `json:"confidence"`
	Precision    float64 `json:"precision"`
	RequiredRuns int     `json:"required_runs"`

	Runs         int `json:"runs"`
	Satisfied    int `json:"satisfied"`
	Violated     int `json:"violated"`
	Undetermined int `json:"undetermined"`

	SuccessRate      float64 `json:"success_rate"`
	FailureRate      float64 `json:"failure_rate"`
	UndeterminedRate float64 `json:"undetermined_rate"`
	HalfWidth        float64 `json:"half_width"`

	Deadlocks       int `json:"deadlocks"`
	LengthCutoffs   int `json:"length_cutoffs"`
	DurationCutoffs int `json:"duration_cutoffs"`
	Discarded       int `json:"discarded"`

	Guarantees []GuaranteeCount `json:"guarantees"`
	SinkErrors int              `json:"sink_errors"`

	Seed      uint64        `json:"seed"`
	Workers   int           `json:"workers"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Cancelled bool          `json:"cancelled"`
}

// Interval returns the confidence interval around the success rate,
// clamped to [0, 1].
func (r *Report) Interval() (lo, hi float64) {
	return max(0, r.SuccessRate-r.HalfWidth), min(1, r.SuccessRate+r.HalfWidth)
}
