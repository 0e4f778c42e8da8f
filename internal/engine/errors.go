package engine

import (
	"errors"
	"fmt"
)

// DurationExceededError reports that a run reached the duration cutoff: the
// next time step would have moved model time past the horizon.
type DurationExceededError struct {
	Time    int64 // model time when the run stopped
	Delay   int64 // refused time step
	Horizon int64
}

// Error implements the error interface.
func (e *DurationExceededError) Error() string {
	return fmt.Sprintf("run reached max duration: time %d + delay %d > horizon %d", e.Time, e.Delay, e.Horizon)
}

// IsDurationExceededError returns true if the error is a DurationExceededError.
func IsDurationExceededError(err error) bool {
	var de *DurationExceededError
	return errors.As(err, &de)
}

// IsCutoff returns true if err reports a length or duration cutoff.
func IsCutoff(err error) bool {
	return IsStepsExceededError(err) || IsDurationExceededError(err)
}
