package store

import (
	"context"
	"testing"

	"github.com/roach88/scan/internal/mtl"
)

func TestListSessions_Empty(t *testing.T) {
	s := createTestStore(t)

	sessions, err := s.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	if sessions == nil || len(sessions) != 0 {
		t.Errorf("ListSessions() = %v, want empty slice", sessions)
	}
}

func TestListSessions_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		createTestSession(t, s)
	}

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() failed: %v", err)
	}
	want := []string{"session-1", "session-2", "session-3"}
	if len(sessions) != len(want) {
		t.Fatalf("len(sessions) = %d, want %d", len(sessions), len(want))
	}
	for i, sess := range sessions {
		if sess.ID != want[i] {
			t.Errorf("sessions[%d].ID = %q, want %q", i, sess.ID, want[i])
		}
	}

	latest, err := s.LatestSession(ctx)
	if err != nil {
		t.Fatalf("LatestSession() failed: %v", err)
	}
	if latest.ID != "session-3" {
		t.Errorf("LatestSession().ID = %q, want session-3", latest.ID)
	}
}

func TestReadSession_RoundTripsParameters(t *testing.T) {
	s := createTestStore(t)
	id := createTestSession(t, s)

	sess, err := s.ReadSession(context.Background(), id)
	if err != nil {
		t.Fatalf("ReadSession() failed: %v", err)
	}
	if sess.Seed != ^uint64(0) {
		t.Errorf("Seed = %d, want max uint64", sess.Seed)
	}
	if sess.Confidence != 0.95 || sess.Precision != 0.01 || sess.RequiredRuns != 18445 {
		t.Errorf("parameters = %+v", sess)
	}
	if sess.ModelFingerprint != "model-hash" || sess.PropertyFingerprint != "property-hash" {
		t.Errorf("fingerprints = %q, %q", sess.ModelFingerprint, sess.PropertyFingerprint)
	}
	if sess.Capture != "failures" || sess.Workers != 4 || sess.MaxLength != 100 {
		t.Errorf("settings = %+v", sess)
	}
}

func TestReadSession_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadSession(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("ReadSession() = %v, want not found", err)
	}
}

func TestLatestSession_Empty(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LatestSession(context.Background())
	if !IsNotFound(err) {
		t.Errorf("LatestSession() = %v, want not found", err)
	}
}

func TestListRuns_OutcomeFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	id := createTestSession(t, s)

	outcomes := []mtl.Outcome{
		mtl.OutcomeViolated, mtl.OutcomeSatisfied, mtl.OutcomeViolated, mtl.OutcomeUndetermined,
	}
	for i, o := range outcomes {
		m, rec := counterRecord(t, i, o)
		if err := s.WriteRun(ctx, id, m, rec); err != nil {
			t.Fatalf("WriteRun(%d) failed: %v", i, err)
		}
	}

	all, err := s.ListRuns(ctx, id, "")
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len(all) = %d, want 4", len(all))
	}
	for i, run := range all {
		if run.Index != i {
			t.Errorf("all[%d].Index = %d", i, run.Index)
		}
	}

	violated, err := s.ListRuns(ctx, id, "violated")
	if err != nil {
		t.Fatalf("ListRuns(violated) failed: %v", err)
	}
	if len(violated) != 2 || violated[0].Index != 0 || violated[1].Index != 2 {
		t.Errorf("violated runs = %+v, want indices 0 and 2", violated)
	}

	none, err := s.ListRuns(ctx, id, "satisfied")
	if err != nil {
		t.Fatalf("ListRuns(satisfied) failed: %v", err)
	}
	if len(none) != 1 || none[0].Index != 1 {
		t.Errorf("satisfied runs = %+v, want index 1", none)
	}
}

func TestListRuns_OtherSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	first := createTestSession(t, s)
	second := createTestSession(t, s)

	m, rec := counterRecord(t, 0, mtl.OutcomeViolated)
	if err := s.WriteRun(ctx, first, m, rec); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}

	runs, err := s.ListRuns(ctx, second, "")
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("ListRuns(second) = %v, want empty slice", runs)
	}
}

func TestReadTrace_NotCaptured(t *testing.T) {
	s := createTestStore(t)
	id := createTestSession(t, s)

	_, err := s.ReadTrace(context.Background(), id, 42)
	if !IsNotFound(err) {
		t.Errorf("ReadTrace() = %v, want not found", err)
	}
}
