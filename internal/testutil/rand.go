package testutil

// ScriptedRand replays fixed choices so tests can force a particular
// interleaving or branch. Once a script runs out, IntN returns 0 and Float64
// returns 0.
//
// Not safe for concurrent use; each run owns its source.
type ScriptedRand struct {
	ints   []int
	floats []float64
}

// NewScriptedRand creates a source that answers IntN from ints and Float64
// from floats, in order.
func NewScriptedRand(ints []int, floats []float64) *ScriptedRand {
	return &ScriptedRand{ints: ints, floats: floats}
}

// IntN returns the next scripted choice, clamped to [0, n).
func (r *ScriptedRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

// Float64 returns the next scripted value in [0, 1).
func (r *ScriptedRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}
