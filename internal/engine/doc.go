// Package engine executes a Channel System one random step at a time.
//
// A State holds the configuration of one run: a location per process, the
// valuation, clock values, channel queues and model time. Step picks one
// enabled firing uniformly at random, samples probabilistic branches by
// weight and applies the result atomically. When nothing can fire, time
// advances to the next clock boundary.
//
// SEMANTICS:
//
// Discrete transitions take priority over time. Time only passes when no
// firing is enabled, and then only as far as the earliest clock bound that
// could enable a transition, never beyond a location invariant. A state where
// neither is possible is a deadlock.
//
// Every right-hand side of a firing (assignments and sent values) is
// evaluated against the valuation before the step. Writes happen afterwards.
//
// DETERMINISM:
//
// All randomness comes from the injected Rand. The same model, seed and
// stream reproduce the same trace.
//
// Execute drives a run to termination and feeds each event to an Observer,
// typically an MTL monitor. A State is owned by one goroutine.
package engine
