// Package store provides SQLite-backed storage for verification sessions
// and the runs they capture.
//
// The store holds three tables:
//   - sessions: one row per verification, with the model and property
//     fingerprints, the sampling parameters and the final outcome counts
//   - runs: captured runs, with outcome, termination reason and trace hash
//   - events: the trace of each captured run, one row per position
//
// # Ordering
//
// Sessions are listed by insertion seq, runs by run index and events by seq.
// Wall-clock timestamps are stored for display only and never order results.
//
// # Payloads
//
// Event payloads are canonical JSON (ir.MarshalCanonical) with every index
// replaced by its model name, so a trace can be read without the model. The
// run's trace hash is ir.Fingerprint over the same payloads.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
