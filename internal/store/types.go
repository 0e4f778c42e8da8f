package store

import "github.com/roach88/scan/internal/smc"

// Session status values.
const (
	StatusRunning   = "running"
	StatusFinished  = "finished"
	StatusCancelled = "cancelled"
)

// Session is one verification: the inputs, the sampling parameters and, once
// finished, the outcome counts.
type Session struct {
	ID                  string  `json:"id"`
	ModelPath           string  `json:"model_path"`
	ModelFingerprint    string  `json:"model_fingerprint"`
	PropertyFingerprint string  `json:"property_fingerprint"`
	EngineVersion       string  `json:"engine_version"`
	Confidence          float64 `json:"confidence"`
	Precision           float64 `json:"precision"`
	RequiredRuns        int     `json:"required_runs"`
	MaxLength           int     `json:"max_length"`
	MaxDuration         int64   `json:"max_duration"`
	Workers             int     `json:"workers"`
	Seed                uint64  `json:"seed"`
	Capture             string  `json:"capture"`
	Status              string  `json:"status"`
	Runs                int     `json:"runs"`
	Satisfied           int     `json:"satisfied"`
	Violated            int     `json:"violated"`
	Undetermined        int     `json:"undetermined"`
	Discarded           int     `json:"discarded"`
	Deadlocks           int     `json:"deadlocks"`
	LengthCutoffs       int     `json:"length_cutoffs"`
	DurationCutoffs     int     `json:"duration_cutoffs"`
	SinkErrors          int     `json:"sink_errors"`
	CreatedAt           string  `json:"created_at"` // RFC 3339, informational only

	// Guarantees holds the violation count of every guarantee, in
	// declaration order. Empty until the session is finished.
	Guarantees []smc.GuaranteeCount `json:"guarantees"`
}

// Run is one captured run of a session.
type Run struct {
	SessionID   string   `json:"session_id"`
	Index       int      `json:"index"`
	Outcome     string   `json:"outcome"`
	Termination string   `json:"termination"`
	Discarded   bool     `json:"discarded"`
	Steps       int      `json:"steps"`
	Time        int64    `json:"model_time"`
	Violated    []string `json:"violated"`
	TraceHash   string   `json:"trace_hash"`
}

// TraceEvent is one stored trace position.
type TraceEvent struct {
	Seq     int
	Kind    string
	Time    int64
	Delta   int64
	Label   string // human-readable one-liner
	Payload string // canonical JSON
}

// Trace is a stored run with its events in sequence order.
type Trace struct {
	Run    Run
	Events []TraceEvent
}
