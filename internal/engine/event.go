package engine

import (
	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/ir"
)

// EventKind distinguishes the initial state, discrete steps and time steps.
type EventKind uint8

const (
	EventInit EventKind = iota
	EventAction
	EventTime
)

// String returns the kind name stored in traces.
func (k EventKind) String() string {
	switch k {
	case EventInit:
		return "init"
	case EventAction:
		return "action"
	case EventTime:
		return "time"
	default:
		return "unknown"
	}
}

// Firing is one transition taken by a step.
type Firing struct {
	Process    cs.ProcessID
	Transition cs.TransitionID
	Action     cs.ActionID
	Branch     int
}

// Message is the channel operation performed by a step.
type Message struct {
	Kind    cs.CommKind
	Channel cs.ChannelID
	Value   ir.Value // zero for probes
}

// Event is one position of a trace: what happened and the state after it.
//
// The slices are copies owned by the event. Observers may keep them.
type Event struct {
	Seq   int
	Kind  EventKind
	Time  int64 // model time after the event
	Delta int64 // time elapsed by this event (EventTime only)
	Sync  cs.SyncID
	Fired []Firing
	Msg   *Message

	Locs   []cs.LocationID
	Vals   []ir.Value
	Clocks []int64
}

// Fires reports whether action a fired in this event, by any process.
func (e *Event) Fires(a cs.ActionID) bool {
	for _, f := range e.Fired {
		if f.Action == a {
			return true
		}
	}
	return false
}

// FiresIn reports whether process p fired action a in this event.
func (e *Event) FiresIn(p cs.ProcessID, a cs.ActionID) bool {
	for _, f := range e.Fired {
		if f.Process == p && f.Action == a {
			return true
		}
	}
	return false
}

// At reports whether the post-state has location l active.
func (e *Event) At(m *cs.Model, l cs.LocationID) bool {
	return e.Locs[m.Locations[l].Process] == l
}
