package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/engine"
	"github.com/roach88/scan/internal/ir"
	"github.com/roach88/scan/internal/smc"
)

// CreateSession inserts a new running session and returns its ID.
// An empty s.ID is filled from the store's ID generator.
func (s *Store) CreateSession(ctx context.Context, sess *Session) (string, error) {
	if sess.ID == "" {
		sess.ID = s.ids.Generate()
	}
	if sess.EngineVersion == "" {
		sess.EngineVersion = ir.EngineVersion
	}
	if sess.Status == "" {
		sess.Status = StatusRunning
	}
	if sess.CreatedAt == "" {
		sess.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, model_path, model_fingerprint, property_fingerprint, engine_version,
			confidence, precision, required_runs, max_length, max_duration,
			workers, seed, capture, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sess.ID, sess.ModelPath, sess.ModelFingerprint, sess.PropertyFingerprint, sess.EngineVersion,
		sess.Confidence, sess.Precision, sess.RequiredRuns, sess.MaxLength, sess.MaxDuration,
		sess.Workers, strconv.FormatUint(sess.Seed, 10), sess.Capture, sess.Status, sess.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("write session: %w", err)
	}
	s.logger.Debug("session created", "session", sess.ID)
	return sess.ID, nil
}

// FinishSession records the final counts of a session. A cancelled report
// marks the session cancelled rather than finished.
func (s *Store) FinishSession(ctx context.Context, id string, rep *smc.Report) error {
	status := StatusFinished
	if rep.Cancelled {
		status = StatusCancelled
	}

	guarantees := rep.Guarantees
	if guarantees == nil {
		guarantees = []smc.GuaranteeCount{}
	}
	guaranteesJSON, err := json.Marshal(guarantees)
	if err != nil {
		return fmt.Errorf("marshal guarantee counts: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, runs = ?, satisfied = ?, violated = ?, undetermined = ?, discarded = ?,
			deadlocks = ?, length_cutoffs = ?, duration_cutoffs = ?, sink_errors = ?, guarantees = ?
		WHERE id = ?
	`, status, rep.Runs, rep.Satisfied, rep.Violated, rep.Undetermined, rep.Discarded,
		rep.Deadlocks, rep.LengthCutoffs, rep.DurationCutoffs, rep.SinkErrors, string(guaranteesJSON), id)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish session %q: %w", id, sql.ErrNoRows)
	}
	return nil
}

// WriteRun stores a captured run and its events in a single transaction.
// Events are labelled and described against m, which must be the model the
// run was sampled from.
func (s *Store) WriteRun(ctx context.Context, sessionID string, m *cs.Model, rec *smc.RunRecord) error {
	payloads := make([]any, len(rec.Events))
	rows := make([]TraceEvent, len(rec.Events))
	for i, ev := range rec.Events {
		desc := ev.Describe(m)
		payload, err := ir.MarshalCanonical(desc)
		if err != nil {
			return fmt.Errorf("marshal event %d of run %d: %w", ev.Seq, rec.Index, err)
		}
		payloads[i] = desc
		rows[i] = TraceEvent{
			Seq:     ev.Seq,
			Kind:    ev.Kind.String(),
			Time:    ev.Time,
			Delta:   ev.Delta,
			Label:   ev.Format(m),
			Payload: string(payload),
		}
	}

	hash, err := ir.Fingerprint(ir.DomainTrace, payloads)
	if err != nil {
		return fmt.Errorf("hash run %d: %w", rec.Index, err)
	}

	violated := rec.Violated
	if violated == nil {
		violated = []string{}
	}
	violatedJSON, err := json.Marshal(violated)
	if err != nil {
		return fmt.Errorf("marshal violated guarantees: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			session_id, run_index, outcome, termination, discarded,
			steps, model_time, violated, trace_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sessionID, rec.Index, rec.Outcome.String(), rec.Termination.String(), rec.Discarded,
		rec.Steps, rec.Time, string(violatedJSON), hash,
	)
	if err != nil {
		return fmt.Errorf("write run %d: %w", rec.Index, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (session_id, run_index, seq, kind, time, delta, label, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare events: %w", err)
	}
	defer stmt.Close()

	for _, ev := range rows {
		if _, err := stmt.ExecContext(ctx, sessionID, rec.Index, ev.Seq, ev.Kind, ev.Time, ev.Delta, ev.Label, ev.Payload); err != nil {
			return fmt.Errorf("write event %d of run %d: %w", ev.Seq, rec.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %d: %w", rec.Index, err)
	}
	return nil
}

// TraceHash returns the content hash WriteRun stores for a sequence of events.
func TraceHash(m *cs.Model, events []*engine.Event) (string, error) {
	payloads := make([]any, len(events))
	for i, ev := range events {
		payloads[i] = ev.Describe(m)
	}
	return ir.Fingerprint(ir.DomainTrace, payloads)
}
