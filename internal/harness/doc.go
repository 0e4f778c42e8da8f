// Package harness runs conformance scenarios against the statistical model
// checker.
//
// A scenario is a YAML file naming a CUE model directory, the sampling
// parameters (with a fixed seed) and bounds on the resulting rates:
//
//	name: counter-reaches-five
//	description: The synchronised counter always reaches five.
//	model: ../models/counter
//	seed: 7
//	confidence: 0.9
//	precision: 0.1
//	max_length: 100
//	golden_run: 0
//	expect:
//	  runs: 150
//	  satisfied: {min: 1.0}
//
// Because the base seed fixes every run, a scenario is reproducible: the
// same seed yields the same report and the same golden trace regardless of
// the worker count. The golden run is written through an in-memory trace
// store, so scenarios also cover the store's write path.
package harness
