// Package mtl compiles past/future metric temporal logic properties over
// Channel System traces and monitors them incrementally, one event at a time.
//
// Formulas are built with a Builder into an arena of nodes, then compiled
// against a model into a Plan. A Plan is immutable and shared by every run;
// NewMonitor gives each run its own state.
//
// FRAGMENT:
//
// Past operators (prev, once, historically, since) and state formulas are
// evaluated at every position in one pass over the nodes in post-order.
// Future operators (next, eventually, always, until) are evaluated from
// position 0. Their operands must be past or state formulas, and they may
// only appear under boolean connectives. Within that fragment every verdict
// can be decided online and, once decided, never changes.
//
// Interval bounds are measured in model time ticks or, for step intervals,
// in trace positions.
package mtl
