package ir

import (
	"fmt"
	"strconv"
)

// Kind is the declared type of a variable, channel message or expression.
type Kind uint8

const (
	// KindInvalid marks an unresolved or ill-typed expression.
	KindInvalid Kind = iota
	KindBool
	KindInt
)

// String returns the name used in model files and diagnostics.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	default:
		return "invalid"
	}
}

// ParseKind converts a model-file type name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "bool", "boolean":
		return KindBool, nil
	case "int", "integer":
		return KindInt, nil
	default:
		return KindInvalid, fmt.Errorf("unknown type %q (want bool or int)", s)
	}
}

// Value is a typed scalar held in a valuation.
//
// Booleans are stored as 0 or 1 in N so that expression evaluation works on
// a single representation. Kind is kept alongside so traces serialize as
// JSON booleans rather than integers.
type Value struct {
	Kind Kind
	N    int64
}

// Bool creates a boolean value.
func Bool(b bool) Value {
	if b {
		return Value{Kind: KindBool, N: 1}
	}
	return Value{Kind: KindBool, N: 0}
}

// Int creates an integer value.
func Int(n int64) Value {
	return Value{Kind: KindInt, N: n}
}

// Zero returns the zero value of a kind.
func Zero(k Kind) Value {
	return Value{Kind: k}
}

// Bool reports whether the value is a true boolean (or a non-zero integer).
func (v Value) Bool() bool {
	return v.N != 0
}

// Int returns the integer payload.
func (v Value) Int() int64 {
	return v.N
}

// IsValid reports whether the value carries a known kind.
func (v Value) IsValid() bool {
	return v.Kind == KindBool || v.Kind == KindInt
}

// String formats the value the way it appears in model files.
func (v Value) String() string {
	if v.Kind == KindBool {
		return strconv.FormatBool(v.N != 0)
	}
	return strconv.FormatInt(v.N, 10)
}

// Canonical returns the plain Go value used for canonical JSON: bool or int64.
func (v Value) Canonical() any {
	if v.Kind == KindBool {
		return v.N != 0
	}
	return v.N
}
