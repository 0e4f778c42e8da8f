// Package ir holds the value types shared by every layer of the checker,
// together with their canonical serialization.
//
// ir imports nothing internal. The model, the engine, the monitor and the
// trace store all exchange variable values as ir.Value and serialize them
// through MarshalCanonical, so stored traces, golden files and fingerprints
// agree byte for byte.
//
// Key design constraints:
//   - Variable values are bool or int64. There are no floats in traces.
//   - Model time is an integer number of ticks, never wall-clock time.
//   - All JSON keys use snake_case.
package ir
