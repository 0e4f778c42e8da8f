package mtl

import "github.com/roach88/scan/internal/engine"

// Evaluate replays a recorded trace on a fresh monitor. It gives the same
// verdict the live monitor gave for the run that produced the trace.
func Evaluate(p *Plan, trace []*engine.Event, complete bool) Verdict {
	mon := p.NewMonitor()
	for _, ev := range trace {
		if mon.Observe(ev) {
			break
		}
	}
	return mon.Verdict(complete)
}
