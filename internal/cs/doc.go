// Package cs implements the Channel System model: a network of processes
// (finite automata over typed variables and clocks) composed by
// synchronised actions, channels and shared global variables.
//
// A Model is built once through a Builder, validated as a whole and then
// shared read-only by every run. Names given to the Builder are resolved to
// dense integer indices during Build. Transitions, locations and expressions
// live in flat slices (arenas) indexed by those IDs, so the stepper never
// chases pointers or allocates to look them up.
//
// Construction failures are reported together as ModelErrors. Build never
// returns a partially built model.
package cs
