package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const sessionColumns = `
	id, model_path, model_fingerprint, property_fingerprint, engine_version,
	confidence, precision, required_runs, max_length, max_duration,
	workers, seed, capture, status, runs, satisfied, violated, undetermined,
	discarded, deadlocks, length_cutoffs, duration_cutoffs, sink_errors,
	guarantees, created_at
`

const runColumns = `
	session_id, run_index, outcome, termination, discarded,
	steps, model_time, violated, trace_hash
`

// ListSessions returns every session, oldest first.
//
// Returns an empty slice (not nil) if the store holds no sessions.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadSession returns one session.
// Returns an error wrapping sql.ErrNoRows if it does not exist.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("read session %q: %w", id, err)
	}
	return sess, nil
}

// LatestSession returns the most recently created session.
// Returns an error wrapping sql.ErrNoRows if the store is empty.
func (s *Store) LatestSession(ctx context.Context) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY seq DESC LIMIT 1`)
	sess, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("read latest session: %w", err)
	}
	return sess, nil
}

// ListRuns returns the captured runs of a session ordered by run index.
// A non-empty outcome keeps only runs with that outcome.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListRuns(ctx context.Context, sessionID, outcome string) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE session_id = ?`
	args := []any{sessionID}
	if outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, outcome)
	}
	query += ` ORDER BY run_index ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadTrace returns a captured run with its events ordered by seq.
// Returns an error wrapping sql.ErrNoRows if the run was not captured.
func (s *Store) ReadTrace(ctx context.Context, sessionID string, index int) (*Trace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE session_id = ? AND run_index = ?`, sessionID, index)
	run, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("read run %d of session %q: %w", index, sessionID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, time, delta, label, payload
		FROM events
		WHERE session_id = ? AND run_index = ?
		ORDER BY seq ASC
	`, sessionID, index)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	trace := &Trace{Run: run, Events: []TraceEvent{}}
	for rows.Next() {
		var ev TraceEvent
		if err := rows.Scan(&ev.Seq, &ev.Kind, &ev.Time, &ev.Delta, &ev.Label, &ev.Payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		trace.Events = append(trace.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return trace, nil
}

// IsNotFound reports whether err means a session or run does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var sess Session
	var seed, guarantees string
	err := sc.Scan(
		&sess.ID, &sess.ModelPath, &sess.ModelFingerprint, &sess.PropertyFingerprint, &sess.EngineVersion,
		&sess.Confidence, &sess.Precision, &sess.RequiredRuns, &sess.MaxLength, &sess.MaxDuration,
		&sess.Workers, &seed, &sess.Capture, &sess.Status, &sess.Runs, &sess.Satisfied, &sess.Violated,
		&sess.Undetermined, &sess.Discarded, &sess.Deadlocks, &sess.LengthCutoffs, &sess.DurationCutoffs,
		&sess.SinkErrors, &guarantees, &sess.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	if sess.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return Session{}, fmt.Errorf("parse seed of session %q: %w", sess.ID, err)
	}
	if err := json.Unmarshal([]byte(guarantees), &sess.Guarantees); err != nil {
		return Session{}, fmt.Errorf("unmarshal guarantee counts of session %q: %w", sess.ID, err)
	}
	return sess, nil
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var violated string
	err := sc.Scan(
		&run.SessionID, &run.Index, &run.Outcome, &run.Termination, &run.Discarded,
		&run.Steps, &run.Time, &violated, &run.TraceHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(violated), &run.Violated); err != nil {
		return Run{}, fmt.Errorf("unmarshal violated guarantees of run %d: %w", run.Index, err)
	}
	return run, nil
}
