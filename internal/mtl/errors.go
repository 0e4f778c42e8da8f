package mtl

import (
	"errors"
	"fmt"
)

// Formula error codes.
const (
	ErrCodeUndeclared   = "F301" // unknown variable, location, process or action
	ErrCodeIllTyped     = "F302" // atom that is not boolean, or ill-typed operands
	ErrCodeBadBound     = "F303" // negative, inverted or empty interval
	ErrCodeNotSupported = "F304" // reward, filter or a future operator outside the monitorable fragment
	ErrCodeMalformed    = "F305" // wrong operand count, dangling node, empty property
)

// ErrNotSupported is wrapped by every F304 error.
var ErrNotSupported = errors.New("operator not supported")

// FormulaError describes a formula that cannot be compiled.
type FormulaError struct {
	Code     string
	Property string // name of the guarantee or assume
	Message  string
	Err      error // ErrNotSupported for F304
}

// Error implements the error interface.
func (e *FormulaError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("[%s] property %s: %s", e.Code, e.Property, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying sentinel, if any.
func (e *FormulaError) Unwrap() error { return e.Err }

// IsFormulaError returns true if err is or wraps a FormulaError.
func IsFormulaError(err error) bool {
	var fe *FormulaError
	return errors.As(err, &fe)
}

func formulaErr(code, format string, args ...any) *FormulaError {
	fe := &FormulaError{Code: code, Message: fmt.Sprintf(format, args...)}
	if code == ErrCodeNotSupported {
		fe.Err = ErrNotSupported
	}
	return fe
}
