package cs

import (
	"strconv"

	"github.com/roach88/scan/internal/ir"
)

// Describe returns a canonical-JSON-safe description of the model.
// Two models with the same description behave identically; the description
// is what ir.Fingerprint hashes to identify a model in the trace store.
func (m *Model) Describe() map[string]any {
	globals := make(map[string]any)
	for _, v := range m.Vars {
		if v.Owner == Global {
			globals[v.Name] = v.Init
		}
	}

	channels := make(map[string]any, len(m.Channels))
	for _, c := range m.Channels {
		channels[c.Name] = map[string]any{"type": c.Kind.String(), "capacity": c.Capacity}
	}

	processes := make(map[string]any, len(m.Processes))
	for _, p := range m.Processes {
		processes[p.Name] = m.describeProcess(p)
	}

	syncs := make(map[string]any, len(m.Syncs))
	for _, s := range m.Syncs {
		parts := make(map[string]string, len(s.Parts))
		for _, part := range s.Parts {
			parts[m.Processes[part.Process].Name] = m.Actions[part.Action]
		}
		syncs[s.Name] = parts
	}

	return map[string]any{
		"globals":   globals,
		"channels":  channels,
		"processes": processes,
		"syncs":     syncs,
	}
}

func (m *Model) describeProcess(p Process) map[string]any {
	locals := make(map[string]any, len(p.Locals))
	for _, id := range p.Locals {
		locals[m.Vars[id].Name] = m.Vars[id].Init
	}

	clocks := make([]string, len(p.Clocks))
	for i, id := range p.Clocks {
		clocks[i] = m.Clocks[id].Name
	}

	locations := make(map[string]any, len(p.Locations))
	var transitions []any
	for _, lid := range p.Locations {
		loc := m.Locations[lid]
		locations[loc.Name] = map[string]any{"invariant": m.describeBounds(loc.Invariant)}
		for _, tid := range loc.Outgoing {
			transitions = append(transitions, m.describeTransition(&m.Transitions[tid]))
		}
	}
	if transitions == nil {
		transitions = []any{}
	}

	return map[string]any{
		"initial":     m.Locations[p.Initial].Name,
		"locals":      locals,
		"clocks":      clocks,
		"locations":   locations,
		"transitions": transitions,
	}
}

func (m *Model) describeBounds(bounds []ClockBound) []any {
	out := make([]any, len(bounds))
	for i, b := range bounds {
		d := map[string]any{"clock": m.Clocks[b.Clock].Name, "lower": b.Lower}
		if b.Upper != NoUpper {
			d["upper"] = b.Upper
		}
		out[i] = d
	}
	return out
}

func (m *Model) describeTransition(t *Transition) map[string]any {
	d := map[string]any{
		"from":   m.Locations[t.From].Name,
		"action": m.Actions[t.Action],
		"guard":  m.FormatExpr(t.Guard),
		"when":   m.describeBounds(t.When),
	}
	if t.Comm != nil {
		c := map[string]any{"op": t.Comm.Kind.String(), "channel": m.Channels[t.Comm.Channel].Name}
		switch t.Comm.Kind {
		case CommSend:
			c["value"] = m.FormatExpr(t.Comm.Value)
		case CommReceive:
			c["var"] = m.Vars[t.Comm.Target].Name
		}
		d["comm"] = c
	}

	branches := make([]any, len(t.Branches))
	for i, br := range t.Branches {
		assign := make(map[string]string, len(br.Assign))
		for _, a := range br.Assign {
			assign[m.Vars[a.Var].Name] = m.FormatExpr(a.Expr)
		}
		reset := make([]string, len(br.Reset))
		for j, c := range br.Reset {
			reset[j] = m.Clocks[c].Name
		}
		branches[i] = map[string]any{
			// Weights are floats, which canonical JSON forbids.
			"weight": strconv.FormatFloat(br.Weight, 'g', -1, 64),
			"to":     m.Locations[br.To].Name,
			"assign": assign,
			"reset":  reset,
		}
	}
	d["branches"] = branches
	return d
}

// Fingerprint returns the content hash of the model description.
func (m *Model) Fingerprint() (string, error) {
	return ir.Fingerprint(ir.DomainModel, m.Describe())
}
