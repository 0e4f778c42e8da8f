package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/engine"
	"github.com/roach88/scan/internal/mtl"
	"github.com/roach88/scan/internal/smc"
	"github.com/roach88/scan/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewFixedIDGenerator("session")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession inserts a session with minimal parameters.
func createTestSession(t *testing.T, s *Store) string {
	t.Helper()
	id, err := s.CreateSession(context.Background(), &Session{
		ModelPath:           "testdata/counter",
		ModelFingerprint:    "model-hash",
		PropertyFingerprint: "property-hash",
		Confidence:          0.95,
		Precision:           0.01,
		RequiredRuns:        18445,
		MaxLength:           100,
		Workers:             4,
		Seed:                ^uint64(0),
		Capture:             "failures",
	})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return id
}

// counterRecord samples one run of the sync counter, which takes five steps
// and then deadlocks.
func counterRecord(t *testing.T, index int, outcome mtl.Outcome) (*cs.Model, *smc.RunRecord) {
	t.Helper()
	m := testutil.SyncCounter(t)
	run := engine.Execute(context.Background(), m, engine.NewRand(1, uint64(index)),
		engine.Limits{MaxLength: 100}, nil, true)
	rec := &smc.RunRecord{
		Index:       index,
		Outcome:     outcome,
		Termination: run.Termination,
		Steps:       run.Steps,
		Time:        run.Time,
		Events:      run.Events,
	}
	if outcome == mtl.OutcomeViolated {
		rec.Violated = []string{"reach"}
	}
	return m, rec
}
