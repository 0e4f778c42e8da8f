package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/scan/internal/smc"
)

// BoundOptions holds flags for the bound command.
type BoundOptions struct {
	*RootOptions
	Confidence float64
	Precision  float64
}

// BoundResult is the JSON payload of the bound command.
type BoundResult struct {
	Confidence float64 `json:"confidence"`
	Precision  float64 `json:"precision"`
	Runs       int     `json:"runs"`
}

// NewBoundCommand creates the bound command.
func NewBoundCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BoundOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bound",
		Short: "Print the number of runs a confidence and precision require",
		Long: `Print the Chernoff-Hoeffding bound ceil(ln(2/(1-c)) / (2p^2)): the number of
independent runs after which the estimated probability is within p of the
true one with confidence c.

Examples:
  scan bound
  scan bound -c 0.99 -p 0.005`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBound(opts, cmd)
		},
	}

	cmd.Flags().Float64VarP(&opts.Confidence, "confidence", "c", smc.DefaultConfidence, "confidence, in (0, 1)")
	cmd.Flags().Float64VarP(&opts.Precision, "precision", "p", smc.DefaultPrecision, "precision, in (0, 1)")

	return cmd
}

func runBound(opts *BoundOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg := smc.DefaultConfig()
	cfg.Confidence = opts.Confidence
	cfg.Precision = opts.Precision
	if err := cfg.Validate(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSettings, "invalid bound parameters", err)
	}

	result := BoundResult{
		Confidence: opts.Confidence,
		Precision:  opts.Precision,
		Runs:       smc.RequiredRuns(opts.Confidence, opts.Precision),
	}
	return formatter.Emit(result, func(w io.Writer) {
		fmt.Fprintln(w, result.Runs)
	})
}
