package cli

import (
	"fmt"
	"io"

	"github.com/roach88/scan/internal/smc"
)

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func writeVerifyText(w io.Writer, r *VerifyResult) {
	rep := r.Report
	fmt.Fprintf(w, "Model:      %s (%s)\n", r.Model, short(r.ModelFingerprint))
	if r.Session != "" {
		fmt.Fprintf(w, "Session:    %s (%d traces stored)\n", r.Session, r.TracesStored)
	}
	fmt.Fprintf(w, "Runs:       %d of %d (confidence %g, precision %g, seed %d)\n",
		rep.Runs, rep.RequiredRuns, rep.Confidence, rep.Precision, rep.Seed)
	if rep.Cancelled {
		fmt.Fprintln(w, "            interrupted: the bounds below assume the required runs")
	}
	fmt.Fprintln(w)
	writeReportText(w, rep)
}

// writeReportText renders the outcome table shared by verify and test.
func writeReportText(w io.Writer, rep *smc.Report) {
	lo, hi := rep.Interval()
	fmt.Fprintf(w, "  satisfied     %8d  %.4f  [%.4f, %.4f]\n", rep.Satisfied, rep.SuccessRate, lo, hi)
	fmt.Fprintf(w, "  violated      %8d  %.4f\n", rep.Violated, rep.FailureRate)
	fmt.Fprintf(w, "  undetermined  %8d  %.4f\n", rep.Undetermined, rep.UndeterminedRate)

	if len(rep.Guarantees) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Violations by guarantee:")
		for _, g := range rep.Guarantees {
			rate := 0.0
			if rep.Runs > 0 {
				rate = float64(g.Violations) / float64(rep.Runs)
			}
			fmt.Fprintf(w, "  %-20s %8d  %.4f\n", g.Name, g.Violations, rate)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Terminations: %d deadlock, %d length cutoff, %d duration cutoff, %d discarded by assumes\n",
		rep.Deadlocks, rep.LengthCutoffs, rep.DurationCutoffs, rep.Discarded)
	if rep.SinkErrors > 0 {
		fmt.Fprintf(w, "Trace store:  %d run(s) could not be written\n", rep.SinkErrors)
	}
	fmt.Fprintf(w, "Elapsed:      %s on %d worker(s)\n", rep.Elapsed.Round(1e6), rep.Workers)
}

// outputDiagnostics prints compile problems in the configured format.
func outputDiagnostics(formatter *OutputFormatter, diags []Diagnostic) error {
	if formatter.JSON() {
		return formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: diags},
			Error: &CLIError{
				Code:    diags[0].Code,
				Message: diags[0].Message,
			},
		})
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, d := range diags {
		if d.Line > 0 {
			fmt.Fprintf(w, "%s:%d\n", d.File, d.Line)
		}
		if d.Field != "" {
			fmt.Fprintf(w, "  %s: %s: %s\n\n", d.Code, d.Field, d.Message)
		} else {
			fmt.Fprintf(w, "  %s: %s\n\n", d.Code, d.Message)
		}
	}
	return nil
}
