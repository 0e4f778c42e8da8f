package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts the steps of one run and enforces the length cutoff.
//
// Each run has its own QuotaEnforcer. Check is called before every step, so a
// run with limit L produces at most L events after the initial one.
type QuotaEnforcer struct {
	maxSteps int // Maximum allowed steps for this run
	current  int // Current step count
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{
		maxSteps: maxSteps,
		current:  0,
	}
}

// Check increments the step counter and validates against the limit.
//
// Returns StepsExceededError if the quota is exceeded.
func (q *QuotaEnforcer) Check() error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Steps: q.current - 1,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Reset resets the step counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError reports that a run reached the length cutoff.
//
// It is not a failure of the run: Execute records it as the reason the run
// stopped, and the verdict becomes Undetermined unless already decided.
type StepsExceededError struct {
	Steps int // Steps taken before the cutoff
	Limit int // Maximum allowed steps
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("run reached max length: %d steps (limit %d)", e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
