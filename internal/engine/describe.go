package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/ir"
)

// Describe returns the canonical-JSON-safe payload of an event, with every
// index replaced by its qualified name.
func (e *Event) Describe(m *cs.Model) map[string]any {
	locs := make(map[string]string, len(e.Locs))
	for p, l := range e.Locs {
		locs[m.Processes[p].Name] = m.Locations[l].Name
	}
	vals := make(map[string]ir.Value, len(e.Vals))
	for i, v := range e.Vals {
		vals[m.Vars[i].Name] = v
	}
	clocks := make(map[string]int64, len(e.Clocks))
	for i, c := range e.Clocks {
		clocks[m.Clocks[i].Name] = c
	}

	fired := make([]any, len(e.Fired))
	for i, f := range e.Fired {
		t := &m.Transitions[f.Transition]
		fired[i] = map[string]any{
			"process":    m.Processes[f.Process].Name,
			"action":     m.Actions[f.Action],
			"transition": int64(f.Transition),
			"branch":     int64(f.Branch),
			"to":         m.Locations[t.Branches[f.Branch].To].Name,
		}
	}

	d := map[string]any{
		"seq":       int64(e.Seq),
		"kind":      e.Kind.String(),
		"time":      e.Time,
		"delta":     e.Delta,
		"fired":     fired,
		"locations": locs,
		"vars":      vals,
		"clocks":    clocks,
	}
	if e.Sync != cs.NoSync {
		d["sync"] = m.Syncs[e.Sync].Name
	}
	if e.Msg != nil {
		msg := map[string]any{"op": e.Msg.Kind.String(), "channel": m.Channels[e.Msg.Channel].Name}
		if e.Msg.Kind == cs.CommSend || e.Msg.Kind == cs.CommReceive {
			msg["value"] = e.Msg.Value
		}
		d["message"] = msg
	}
	return d
}

// Format renders an event as one human-readable line, e.g.
//
//	#3 t=0 step P:a->loop Q:a->loop | P=loop Q=loop | x=3
func (e *Event) Format(m *cs.Model) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d t=%d ", e.Seq, e.Time)

	switch e.Kind {
	case EventInit:
		b.WriteString("init")
	case EventTime:
		fmt.Fprintf(&b, "delay %d", e.Delta)
	case EventAction:
		if e.Sync != cs.NoSync {
			b.WriteString(m.Syncs[e.Sync].Name + " ")
		}
		for i, f := range e.Fired {
			if i > 0 {
				b.WriteByte(' ')
			}
			t := &m.Transitions[f.Transition]
			action := m.Actions[f.Action]
			if action == "" {
				action = "tau"
			}
			fmt.Fprintf(&b, "%s:%s->%s", m.Processes[f.Process].Name, action, m.Locations[t.Branches[f.Branch].To].Name)
		}
		if e.Msg != nil {
			fmt.Fprintf(&b, " [%s %s", e.Msg.Kind, m.Channels[e.Msg.Channel].Name)
			if e.Msg.Kind == cs.CommSend || e.Msg.Kind == cs.CommReceive {
				fmt.Fprintf(&b, " %s", e.Msg.Value)
			}
			b.WriteByte(']')
		}
	}

	b.WriteString(" |")
	for p, l := range e.Locs {
		fmt.Fprintf(&b, " %s=%s", m.Processes[p].Name, m.Locations[l].Name)
	}
	if len(e.Vals) > 0 {
		b.WriteString(" |")
		for i, v := range e.Vals {
			fmt.Fprintf(&b, " %s=%s", m.Vars[i].Name, v)
		}
	}
	if len(e.Clocks) > 0 {
		b.WriteString(" |")
		for i, c := range e.Clocks {
			fmt.Fprintf(&b, " %s=%d", m.Clocks[i].Name, c)
		}
	}
	return b.String()
}
