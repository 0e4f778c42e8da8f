package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scan/internal/compiler"
	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/mtl"
	"github.com/roach88/scan/internal/smc"
)

func TestDiagnostics_Nil(t *testing.T) {
	assert.Nil(t, diagnostics(nil))
}

func TestDiagnostics_FlattensModelErrors(t *testing.T) {
	err := cs.ModelErrors{
		{Code: cs.ErrCodeDuplicate, Path: "process P", Message: "location idle declared twice"},
		{Code: cs.ErrCodeUndeclared, Path: "process Q transition #1", Message: `undeclared variable "z"`},
	}

	diags := diagnostics(err)
	require.Len(t, diags, 2)
	assert.Equal(t, Diagnostic{Code: "E201", Field: "process P", Message: "location idle declared twice"}, diags[0])
	assert.Equal(t, "E202", diags[1].Code)
	assert.Equal(t, "process Q transition #1", diags[1].Field)
}

func TestDiagnostics_JoinedMixedErrors(t *testing.T) {
	err := errors.Join(
		&compiler.CompileError{Field: "model.processes.P.initial", Message: "must be a string"},
		&mtl.FormulaError{Code: mtl.ErrCodeNotSupported, Property: "r", Message: "reward is not supported"},
	)

	diags := diagnostics(err)
	require.Len(t, diags, 2)
	assert.Equal(t, ErrCodeModelField, diags[0].Code)
	assert.Equal(t, "F304", diags[1].Code)
	assert.Equal(t, "r", diags[1].Field)
}

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Diagnostic
	}{
		{
			name: "load error",
			err:  &compiler.LoadError{Code: compiler.ErrCodeNoFiles, Message: "no .cue files"},
			want: Diagnostic{Code: "E002", Message: "no .cue files"},
		},
		{
			name: "wrapped config error",
			err:  fmt.Errorf("settings: %w", &smc.ConfigError{Field: "confidence", Message: "must be in (0, 1)"}),
			want: Diagnostic{Code: ErrCodeSettings, Field: "confidence", Message: "must be in (0, 1)"},
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: Diagnostic{Code: ErrCodeGeneric, Message: "boom"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, diagnose(tt.err))
		})
	}
}

func TestCompileErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"expr", ErrCodeExpression},
		{"formula", ErrCodeFormula},
		{"properties.guarantees", ErrCodeProperties},
		{"model.processes.P.transitions[0].guard", ErrCodeExpression},
		{"model.processes.P.transitions[0].assign.x", ErrCodeExpression},
		{"model.processes.P.transitions[0].send.value", ErrCodeExpression},
		{"model.channels.req.capacity", ErrCodeModelField},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, compileErrorCode(tt.field))
		})
	}
}

func TestIsCommandError(t *testing.T) {
	assert.True(t, isCommandError(&compiler.LoadError{Code: compiler.ErrCodeNotFound}))
	assert.True(t, isCommandError(fmt.Errorf("load: %w", &compiler.LoadError{Code: compiler.ErrCodeNoFiles})))
	assert.False(t, isCommandError(&compiler.LoadError{Code: compiler.ErrCodeBuildFailed}))
	assert.False(t, isCommandError(&cs.ModelError{Code: cs.ErrCodeSync}))
}
