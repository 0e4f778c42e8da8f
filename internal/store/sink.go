package store

import (
	"context"
	"sync"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/smc"
)

// SessionSink writes captured runs of one session to the store.
// It implements smc.TraceSink and is safe for concurrent use.
type SessionSink struct {
	mu      sync.Mutex
	store   *Store
	session string
	model   *cs.Model
	written int
}

var _ smc.TraceSink = (*SessionSink)(nil)

// NewSessionSink returns a sink for runs of session sampled from m.
func NewSessionSink(s *Store, session string, m *cs.Model) *SessionSink {
	return &SessionSink{store: s, session: session, model: m}
}

// WriteRun stores one run.
func (k *SessionSink) WriteRun(ctx context.Context, rec *smc.RunRecord) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.store.WriteRun(ctx, k.session, k.model, rec); err != nil {
		return err
	}
	k.written++
	return nil
}

// Written returns the number of runs stored so far.
func (k *SessionSink) Written() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.written
}
