package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scan/internal/mtl"
	"github.com/roach88/scan/internal/store"
)

// TracesOptions holds flags for the traces command.
type TracesOptions struct {
	*RootOptions
	Session string
	Outcome string
	Run     int
}

// TraceOutput is the JSON payload of one printed trace.
type TraceOutput struct {
	Session string            `json:"session"`
	Run     store.Run         `json:"run"`
	Events  []TraceOutputStep `json:"events"`
}

// TraceOutputStep is one position of a printed trace.
type TraceOutputStep struct {
	Seq     int             `json:"seq"`
	Label   string          `json:"label"`
	Payload json.RawMessage `json:"payload"`
}

// NewTracesCommand creates the traces command.
func NewTracesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TracesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "traces <db>",
		Short: "List stored sessions and runs, or print a trace",
		Long: `Inspect the trace store written by verify --db.

Without flags, lists every session. With --session (or --outcome / --run,
which default to the latest session), lists the captured runs of a session.
With --run, prints the trace of one run event by event.

Examples:
  scan traces runs.db
  scan traces runs.db --outcome violated
  scan traces runs.db --session 0190... --run 17
  scan traces runs.db --run 17 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraces(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (defaults to the latest)")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only runs with this outcome: satisfied|violated|undetermined")
	cmd.Flags().IntVar(&opts.Run, "run", -1, "print the trace of this run index")

	return cmd
}

func runTraces(opts *TracesOptions, dbPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Outcome != "" {
		if _, err := mtl.ParseOutcome(opts.Outcome); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeSettings, "invalid --outcome", err)
		}
	}

	// Opening a missing path would create an empty database.
	if _, err := os.Stat(dbPath); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("database not found: %s", dbPath), nil)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	if opts.Session == "" && opts.Outcome == "" && opts.Run < 0 {
		return listSessions(ctx, formatter, st)
	}

	session, err := resolveSession(ctx, st, opts.Session)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNoRuns, "session not found", err)
	}

	if opts.Run >= 0 {
		return printTrace(ctx, formatter, st, session, opts.Run)
	}
	return listRuns(ctx, formatter, st, session, opts.Outcome)
}

func resolveSession(ctx context.Context, st *store.Store, id string) (store.Session, error) {
	if id == "" {
		return st.LatestSession(ctx)
	}
	return st.ReadSession(ctx, id)
}

func listSessions(ctx context.Context, formatter *OutputFormatter, st *store.Store) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to list sessions", err)
	}
	return formatter.Emit(sessions, func(w io.Writer) {
		if len(sessions) == 0 {
			fmt.Fprintln(w, "No sessions found.")
			return
		}
		for _, s := range sessions {
			fmt.Fprintf(w, "%s  %-9s  %s  runs %d/%d  satisfied %d  violated %d  undetermined %d\n",
				s.ID, s.Status, s.ModelPath, s.Runs, s.RequiredRuns, s.Satisfied, s.Violated, s.Undetermined)
		}
	})
}

func listRuns(ctx context.Context, formatter *OutputFormatter, st *store.Store, session store.Session, outcome string) error {
	runs, err := st.ListRuns(ctx, session.ID, outcome)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to list runs", err)
	}
	return formatter.Emit(runs, func(w io.Writer) {
		fmt.Fprintf(w, "Session %s (%s, traces: %s)\n", session.ID, session.ModelPath, session.Capture)
		if len(runs) == 0 {
			fmt.Fprintln(w, "No captured runs.")
			return
		}
		for _, r := range runs {
			line := fmt.Sprintf("  run %-6d %-12s %-9s steps %-6d time %d", r.Index, r.Outcome, r.Termination, r.Steps, r.Time)
			if len(r.Violated) > 0 {
				line += "  violated: " + strings.Join(r.Violated, ", ")
			}
			if r.Discarded {
				line += "  (discarded)"
			}
			fmt.Fprintln(w, line)
		}
	})
}

func printTrace(ctx context.Context, formatter *OutputFormatter, st *store.Store, session store.Session, index int) error {
	trace, err := st.ReadTrace(ctx, session.ID, index)
	if err != nil {
		if store.IsNotFound(err) {
			return formatter.Fail(ExitCommandError, ErrCodeNoRuns,
				fmt.Sprintf("run %d was not captured in session %s", index, session.ID), nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to read trace", err)
	}

	out := TraceOutput{Session: session.ID, Run: trace.Run, Events: make([]TraceOutputStep, len(trace.Events))}
	for i, ev := range trace.Events {
		out.Events[i] = TraceOutputStep{Seq: ev.Seq, Label: ev.Label, Payload: json.RawMessage(ev.Payload)}
	}
	return formatter.Emit(out, func(w io.Writer) {
		r := trace.Run
		fmt.Fprintf(w, "Run %d of session %s: %s (%s after %d steps, time %d)\n",
			r.Index, session.ID, r.Outcome, r.Termination, r.Steps, r.Time)
		if len(r.Violated) > 0 {
			fmt.Fprintf(w, "Violated: %s\n", strings.Join(r.Violated, ", "))
		}
		for _, ev := range trace.Events {
			fmt.Fprintf(w, "  %s\n", ev.Label)
		}
	})
}
