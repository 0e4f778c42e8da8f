package cli

import (
	"errors"
	"strings"

	"github.com/roach88/scan/internal/compiler"
	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/mtl"
	"github.com/roach88/scan/internal/smc"
)

// Error code constants - unified across all CLI commands.
// Load errors reuse the compiler codes E001-E005, model errors the cs codes
// E201-E205 and formula errors the mtl codes.
const (
	ErrCodeGeneric  = "E000" // Generic/unknown error
	ErrCodeSettings = "E010" // Invalid flags or settings file
	ErrCodeDatabase = "E011" // Trace store could not be opened or written
	ErrCodeNoRuns   = "E012" // Requested session or run does not exist

	ErrCodeModelField = "E101" // Malformed model field
	ErrCodeExpression = "E102" // Guard, assignment or value expression
	ErrCodeFormula    = "E103" // Property formula
	ErrCodeProperties = "E104" // Malformed properties field
)

// Diagnostic is one problem reported by validate or verify.
type Diagnostic struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// diagnostics flattens err into one Diagnostic per underlying problem.
func diagnostics(err error) []Diagnostic {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []Diagnostic
		for _, e := range joined.Unwrap() {
			out = append(out, diagnostics(e)...)
		}
		return out
	}
	return []Diagnostic{diagnose(err)}
}

func diagnose(err error) Diagnostic {
	var (
		loadErr    *compiler.LoadError
		compileErr *compiler.CompileError
		modelErr   *cs.ModelError
		formulaErr *mtl.FormulaError
		configErr  *smc.ConfigError
	)
	switch {
	case errors.As(err, &loadErr):
		d := Diagnostic{Code: loadErr.Code, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			d.File, d.Line = loadErr.Pos.Filename(), loadErr.Pos.Line()
		}
		return d
	case errors.As(err, &compileErr):
		d := Diagnostic{Code: compileErrorCode(compileErr.Field), Field: compileErr.Field, Message: compileErr.Message}
		if compileErr.Pos.IsValid() {
			d.File, d.Line = compileErr.Pos.Filename(), compileErr.Pos.Line()
		}
		return d
	case errors.As(err, &modelErr):
		return Diagnostic{Code: modelErr.Code, Field: modelErr.Path, Message: modelErr.Message}
	case errors.As(err, &formulaErr):
		return Diagnostic{Code: formulaErr.Code, Field: formulaErr.Property, Message: formulaErr.Message}
	case errors.As(err, &configErr):
		return Diagnostic{Code: ErrCodeSettings, Field: configErr.Field, Message: configErr.Message}
	}
	return Diagnostic{Code: ErrCodeGeneric, Message: err.Error()}
}

// compileErrorCode maps a compiler error field to an error code.
func compileErrorCode(field string) string {
	switch {
	case field == "expr":
		return ErrCodeExpression
	case field == "formula":
		return ErrCodeFormula
	case strings.HasPrefix(field, "properties"):
		return ErrCodeProperties
	case strings.HasSuffix(field, ".guard"), strings.Contains(field, ".assign."), strings.HasSuffix(field, ".value"):
		return ErrCodeExpression
	default:
		return ErrCodeModelField
	}
}

// isCommandError reports whether a load failure is about the command's
// arguments (missing directory, no files) rather than the model's content.
func isCommandError(err error) bool {
	var loadErr *compiler.LoadError
	if !errors.As(err, &loadErr) {
		return false
	}
	return loadErr.Code == compiler.ErrCodeNotFound || loadErr.Code == compiler.ErrCodeNoFiles
}
