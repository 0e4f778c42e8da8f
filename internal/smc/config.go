package smc

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"strings"

	"github.com/roach88/scan/internal/mtl"
)

// Defaults applied by DefaultConfig.
const (
	DefaultConfidence = 0.95
	DefaultPrecision  = 0.01
	DefaultMaxLength  = 10000
)

// Capture selects which runs are handed to the TraceSink.
type Capture uint8

const (
	CaptureNone Capture = iota
	CaptureAll
	CaptureFailures // violated or undetermined
	CaptureSatisfied
	CaptureViolated
	CaptureUndetermined
)

var captureNames = [...]string{
	CaptureNone:         "none",
	CaptureAll:          "all",
	CaptureFailures:     "failures",
	CaptureSatisfied:    "satisfied",
	CaptureViolated:     "violated",
	CaptureUndetermined: "undetermined",
}

// String returns the capture mode name.
func (c Capture) String() string {
	if int(c) < len(captureNames) {
		return captureNames[c]
	}
	return fmt.Sprintf("capture(%d)", c)
}

// ParseCapture converts a capture mode name.
func ParseCapture(s string) (Capture, error) {
	for i, name := range captureNames {
		if strings.EqualFold(s, name) {
			return Capture(i), nil
		}
	}
	return CaptureNone, fmt.Errorf("unknown trace capture %q (want one of %s)", s, strings.Join(captureNames[:], ", "))
}

// Keeps reports whether a run with outcome o is captured.
func (c Capture) Keeps(o mtl.Outcome) bool {
	switch c {
	case CaptureAll:
		return true
	case CaptureFailures:
		return o != mtl.OutcomeSatisfied
	case CaptureSatisfied:
		return o == mtl.OutcomeSatisfied
	case CaptureViolated:
		return o == mtl.OutcomeViolated
	case CaptureUndetermined:
		return o == mtl.OutcomeUndetermined
	default:
		return false
	}
}

// Config holds the statistical and execution parameters of one estimation.
type Config struct {
	Confidence  float64
	Precision   float64
	MaxLength   int   // events per run, initial event excluded
	MaxDuration int64 // model time ticks per run; 0 disables the cutoff
	Workers     int   // 0 means GOMAXPROCS
	Seed        uint64
	Capture     Capture
}

// DefaultConfig returns the default parameters with a fresh random seed.
func DefaultConfig() Config {
	return Config{
		Confidence: DefaultConfidence,
		Precision:  DefaultPrecision,
		MaxLength:  DefaultMaxLength,
		Workers:    runtime.GOMAXPROCS(0),
		Seed:       rand.Uint64(),
	}
}

// ConfigError reports an invalid estimation parameter.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsConfigError returns true if err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Validate checks every parameter and returns all problems joined.
func (c Config) Validate() error {
	var errs []error
	if !(c.Confidence > 0 && c.Confidence < 1) {
		errs = append(errs, &ConfigError{Field: "confidence", Message: fmt.Sprintf("%v is not in (0, 1)", c.Confidence)})
	}
	if !(c.Precision > 0 && c.Precision < 1) {
		errs = append(errs, &ConfigError{Field: "precision", Message: fmt.Sprintf("%v is not in (0, 1)", c.Precision)})
	} else if c.Confidence > 0 && c.Confidence < 1 {
		if n := requiredRuns(c.Confidence, c.Precision); math.IsInf(n, 0) || n >= math.MaxInt {
			errs = append(errs, &ConfigError{Field: "precision", Message: fmt.Sprintf("%v needs more than %d runs at confidence %v", c.Precision, math.MaxInt, c.Confidence)})
		}
	}
	if c.MaxLength <= 0 {
		errs = append(errs, &ConfigError{Field: "max length", Message: fmt.Sprintf("%d must be positive", c.MaxLength)})
	}
	if c.MaxDuration < 0 {
		errs = append(errs, &ConfigError{Field: "max duration", Message: fmt.Sprintf("%d must not be negative", c.MaxDuration)})
	}
	if c.Workers < 0 {
		errs = append(errs, &ConfigError{Field: "workers", Message: fmt.Sprintf("%d must not be negative", c.Workers)})
	}
	if int(c.Capture) >= len(captureNames) {
		errs = append(errs, &ConfigError{Field: "capture", Message: c.Capture.String()})
	}
	return errors.Join(errs...)
}
