package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scan/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool          `json:"valid"`
	Summary *ModelSummary `json:"summary,omitempty"`
	Errors  []Diagnostic  `json:"errors,omitempty"`
}

// ModelSummary counts the parts of a compiled model.
type ModelSummary struct {
	Files               int      `json:"files"`
	Processes           int      `json:"processes"`
	Locations           int      `json:"locations"`
	Transitions         int      `json:"transitions"`
	Variables           int      `json:"variables"`
	Clocks              int      `json:"clocks"`
	Channels            int      `json:"channels"`
	Syncs               int      `json:"syncs"`
	Timed               bool     `json:"timed"`
	Guarantees          []string `json:"guarantees"`
	Assumes             []string `json:"assumes"`
	ModelFingerprint    string   `json:"model_fingerprint"`
	PropertyFingerprint string   `json:"property_fingerprint"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model-dir>",
		Short: "Compile a model and its properties without sampling",
		Long: `Compile the CUE model and properties in <model-dir> and report every
problem found, or a summary of the model when it is valid.

Exit codes:
  0 - Model and properties are valid
  1 - Model or properties have errors
  2 - Command error (directory not found, no CUE files)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, modelDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	bundle, err := compiler.Load(modelDir)
	if err != nil {
		return reportCompileFailure(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", bundle.Files, modelDir)

	summary := summarize(bundle)
	return formatter.Emit(ValidationResult{Valid: true, Summary: summary}, func(w io.Writer) {
		writeSummaryText(w, summary)
	})
}

func summarize(b *compiler.Bundle) *ModelSummary {
	m := b.Model
	return &ModelSummary{
		Files:               b.Files,
		Processes:           len(m.Processes),
		Locations:           len(m.Locations),
		Transitions:         len(m.Transitions),
		Variables:           len(m.Vars),
		Clocks:              len(m.Clocks),
		Channels:            len(m.Channels),
		Syncs:               len(m.Syncs),
		Timed:               m.Timed(),
		Guarantees:          b.Plan.Guarantees(),
		Assumes:             b.Plan.Assumes(),
		ModelFingerprint:    b.ModelFingerprint,
		PropertyFingerprint: b.PropertyFingerprint,
	}
}

func writeSummaryText(w io.Writer, s *ModelSummary) {
	fmt.Fprintln(w, "✓ Model valid")
	fmt.Fprintf(w, "  processes %d, locations %d, transitions %d\n", s.Processes, s.Locations, s.Transitions)
	fmt.Fprintf(w, "  variables %d, clocks %d, channels %d, syncs %d\n", s.Variables, s.Clocks, s.Channels, s.Syncs)
	fmt.Fprintf(w, "  guarantees: %s\n", listOrNone(s.Guarantees))
	fmt.Fprintf(w, "  assumes:    %s\n", listOrNone(s.Assumes))
	fmt.Fprintf(w, "  fingerprint %s\n", short(s.ModelFingerprint))
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
