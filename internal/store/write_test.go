package store

import (
	"context"
	"strings"
	"testing"

	"github.com/roach88/scan/internal/engine"
	"github.com/roach88/scan/internal/ir"
	"github.com/roach88/scan/internal/mtl"
	"github.com/roach88/scan/internal/smc"
)

func TestCreateSession_GeneratesID(t *testing.T) {
	s := createTestStore(t)

	first := createTestSession(t, s)
	second := createTestSession(t, s)

	if first != "session-1" || second != "session-2" {
		t.Errorf("ids = %q, %q; want session-1, session-2", first, second)
	}
}

func TestCreateSession_Defaults(t *testing.T) {
	s := createTestStore(t)
	id := createTestSession(t, s)

	sess, err := s.ReadSession(context.Background(), id)
	if err != nil {
		t.Fatalf("ReadSession() failed: %v", err)
	}
	if sess.Status != StatusRunning {
		t.Errorf("Status = %q, want %q", sess.Status, StatusRunning)
	}
	if sess.EngineVersion != ir.EngineVersion {
		t.Errorf("EngineVersion = %q, want %q", sess.EngineVersion, ir.EngineVersion)
	}
	if sess.CreatedAt == "" {
		t.Error("CreatedAt not set")
	}
}

func TestCreateSession_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateSession(ctx, &Session{ID: "dup", ModelFingerprint: "m", PropertyFingerprint: "p"}); err != nil {
		t.Fatalf("first CreateSession() failed: %v", err)
	}
	if _, err := s.CreateSession(ctx, &Session{ID: "dup", ModelFingerprint: "m", PropertyFingerprint: "p"}); err == nil {
		t.Error("second CreateSession() with same ID succeeded, want UNIQUE violation")
	}
}

func TestCreateSession_UUIDv7ByDefault(t *testing.T) {
	s := createTestStore(t)
	s.ids = UUIDv7Generator{}

	id, err := s.CreateSession(context.Background(), &Session{ModelFingerprint: "m", PropertyFingerprint: "p"})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	if len(id) != 36 || id[14] != '7' {
		t.Errorf("id = %q, want a UUIDv7", id)
	}
}

func TestFinishSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := createTestSession(t, s)

	rep := &smc.Report{Runs: 10, Satisfied: 7, Violated: 2, Undetermined: 1, Discarded: 1}
	if err := s.FinishSession(ctx, id, rep); err != nil {
		t.Fatalf("FinishSession() failed: %v", err)
	}

	sess, err := s.ReadSession(ctx, id)
	if err != nil {
		t.Fatalf("ReadSession() failed: %v", err)
	}
	if sess.Status != StatusFinished {
		t.Errorf("Status = %q, want %q", sess.Status, StatusFinished)
	}
	if sess.Runs != 10 || sess.Satisfied != 7 || sess.Violated != 2 || sess.Undetermined != 1 || sess.Discarded != 1 {
		t.Errorf("counts = %+v", sess)
	}
}

func TestFinishSession_TerminationAndGuaranteeCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := createTestSession(t, s)

	rep := &smc.Report{
		Runs:            10,
		Satisfied:       6,
		Violated:        3,
		Undetermined:    1,
		Deadlocks:       7,
		LengthCutoffs:   2,
		DurationCutoffs: 1,
		SinkErrors:      4,
		Guarantees: []smc.GuaranteeCount{
			{Name: "total", Violations: 3},
			{Name: "bounded", Violations: 0},
		},
	}
	if err := s.FinishSession(ctx, id, rep); err != nil {
		t.Fatalf("FinishSession() failed: %v", err)
	}

	sess, err := s.ReadSession(ctx, id)
	if err != nil {
		t.Fatalf("ReadSession() failed: %v", err)
	}
	if sess.Deadlocks != 7 || sess.LengthCutoffs != 2 || sess.DurationCutoffs != 1 || sess.SinkErrors != 4 {
		t.Errorf("termination counts = %+v", sess)
	}
	if len(sess.Guarantees) != 2 {
		t.Fatalf("Guarantees = %+v, want 2 entries", sess.Guarantees)
	}
	if sess.Guarantees[0] != rep.Guarantees[0] || sess.Guarantees[1] != rep.Guarantees[1] {
		t.Errorf("Guarantees = %+v, want %+v", sess.Guarantees, rep.Guarantees)
	}
}

func TestReadSession_UnfinishedHasNoGuaranteeCounts(t *testing.T) {
	s := createTestStore(t)
	id := createTestSession(t, s)

	sess, err := s.ReadSession(context.Background(), id)
	if err != nil {
		t.Fatalf("ReadSession() failed: %v", err)
	}
	if sess.Guarantees == nil || len(sess.Guarantees) != 0 {
		t.Errorf("Guarantees = %#v, want empty", sess.Guarantees)
	}
}

func TestFinishSession_Cancelled(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := createTestSession(t, s)

	if err := s.FinishSession(ctx, id, &smc.Report{Runs: 3, Cancelled: true}); err != nil {
		t.Fatalf("FinishSession() failed: %v", err)
	}
	sess, _ := s.ReadSession(ctx, id)
	if sess.Status != StatusCancelled {
		t.Errorf("Status = %q, want %q", sess.Status, StatusCancelled)
	}
}

func TestFinishSession_Unknown(t *testing.T) {
	s := createTestStore(t)

	err := s.FinishSession(context.Background(), "missing", &smc.Report{})
	if !IsNotFound(err) {
		t.Errorf("FinishSession() = %v, want not found", err)
	}
}

func TestWriteRun_StoresRunAndEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := createTestSession(t, s)
	m, rec := counterRecord(t, 3, mtl.OutcomeViolated)

	if err := s.WriteRun(ctx, id, m, rec); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}

	trace, err := s.ReadTrace(ctx, id, 3)
	if err != nil {
		t.Fatalf("ReadTrace() failed: %v", err)
	}
	if trace.Run.Outcome != "violated" {
		t.Errorf("Outcome = %q, want violated", trace.Run.Outcome)
	}
	if trace.Run.Termination != engine.TermDeadlock.String() {
		t.Errorf("Termination = %q, want %q", trace.Run.Termination, engine.TermDeadlock)
	}
	if trace.Run.Steps != 5 {
		t.Errorf("Steps = %d, want 5", trace.Run.Steps)
	}
	if len(trace.Run.Violated) != 1 || trace.Run.Violated[0] != "reach" {
		t.Errorf("Violated = %v, want [reach]", trace.Run.Violated)
	}
	if len(trace.Events) != len(rec.Events) {
		t.Fatalf("len(Events) = %d, want %d", len(trace.Events), len(rec.Events))
	}
	for i, ev := range trace.Events {
		if ev.Seq != i {
			t.Errorf("event %d has seq %d", i, ev.Seq)
		}
	}
	if trace.Events[0].Kind != "init" {
		t.Errorf("first event kind = %q, want init", trace.Events[0].Kind)
	}
	if !strings.Contains(trace.Events[1].Label, "step") {
		t.Errorf("label %q does not name the sync", trace.Events[1].Label)
	}
}

func TestWriteRun_PayloadIsCanonical(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := createTestSession(t, s)
	m, rec := counterRecord(t, 0, mtl.OutcomeSatisfied)

	if err := s.WriteRun(ctx, id, m, rec); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	trace, err := s.ReadTrace(ctx, id, 0)
	if err != nil {
		t.Fatalf("ReadTrace() failed: %v", err)
	}

	for i, ev := range trace.Events {
		want, err := ir.MarshalCanonical(rec.Events[i].Describe(m))
		if err != nil {
			t.Fatalf("MarshalCanonical() failed: %v", err)
		}
		if ev.Payload != string(want) {
			t.Errorf("event %d payload = %s, want %s", i, ev.Payload, want)
		}
	}
}

func TestWriteRun_TraceHashMatches(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := createTestSession(t, s)
	m, rec := counterRecord(t, 0, mtl.OutcomeSatisfied)

	if err := s.WriteRun(ctx, id, m, rec); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	want, err := TraceHash(m, rec.Events)
	if err != nil {
		t.Fatalf("TraceHash() failed: %v", err)
	}

	runs, err := s.ListRuns(ctx, id, "")
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 1 || runs[0].TraceHash != want {
		t.Errorf("trace hash = %v, want %s", runs, want)
	}
	if len(want) != 64 {
		t.Errorf("len(hash) = %d, want 64", len(want))
	}
}

func TestWriteRun_DuplicateIndexRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := createTestSession(t, s)
	m, rec := counterRecord(t, 0, mtl.OutcomeSatisfied)

	if err := s.WriteRun(ctx, id, m, rec); err != nil {
		t.Fatalf("first WriteRun() failed: %v", err)
	}
	if err := s.WriteRun(ctx, id, m, rec); err == nil {
		t.Fatal("second WriteRun() with the same index succeeded")
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != len(rec.Events) {
		t.Errorf("events = %d, want %d (second write must roll back)", count, len(rec.Events))
	}
}

func TestWriteRun_UnknownSession(t *testing.T) {
	s := createTestStore(t)
	m, rec := counterRecord(t, 0, mtl.OutcomeSatisfied)

	if err := s.WriteRun(context.Background(), "missing", m, rec); err == nil {
		t.Error("WriteRun() for unknown session succeeded, want foreign key error")
	}
}

func TestWriteRun_NoEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := createTestSession(t, s)
	m, rec := counterRecord(t, 0, mtl.OutcomeUndetermined)
	rec.Events = nil

	if err := s.WriteRun(ctx, id, m, rec); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	trace, err := s.ReadTrace(ctx, id, 0)
	if err != nil {
		t.Fatalf("ReadTrace() failed: %v", err)
	}
	if trace.Events == nil || len(trace.Events) != 0 {
		t.Errorf("Events = %v, want empty slice", trace.Events)
	}
	if trace.Run.Violated == nil {
		t.Error("Violated = nil, want empty slice")
	}
}
