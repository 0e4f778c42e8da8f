package cs

import (
	"errors"
	"fmt"
	"strings"
)

// Model error codes.
const (
	ErrCodeDuplicate    = "E201" // name declared twice in the same scope
	ErrCodeUndeclared   = "E202" // reference to an unknown variable, location, clock, channel, process or action
	ErrCodeTypeMismatch = "E203" // operand or assignment of the wrong kind
	ErrCodeSync         = "E204" // malformed synchronisation
	ErrCodeStructure    = "E205" // malformed process, transition or channel
)

// ModelError describes one construction problem.
type ModelError struct {
	Code    string // E201..E205
	Path    string // where the problem was found, e.g. "process P transition #2"
	Message string
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// ModelErrors is the list of every problem found by Build.
type ModelErrors []*ModelError

// Error implements the error interface.
func (es ModelErrors) Error() string {
	switch len(es) {
	case 0:
		return "no model errors"
	case 1:
		return es[0].Error()
	}
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d model errors: %s", len(es), strings.Join(parts, "; "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (es ModelErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// IsModelError returns true if err is or wraps a ModelError.
func IsModelError(err error) bool {
	var me *ModelError
	return errors.As(err, &me)
}


// ExprError is returned when an expression cannot be resolved or type-checked.
// Code is ErrCodeUndeclared or ErrCodeTypeMismatch.
type ExprError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ExprError) Error() string {
	return e.Message
}

func undeclared(format string, args ...any) *ExprError {
	return &ExprError{Code: ErrCodeUndeclared, Message: fmt.Sprintf(format, args...)}
}

func mismatch(format string, args ...any) *ExprError {
	return &ExprError{Code: ErrCodeTypeMismatch, Message: fmt.Sprintf(format, args...)}
}
