package engine

import (
	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/ir"
)

// OutcomeKind is the result of one call to Step.
type OutcomeKind uint8

const (
	// Advanced means an event was produced.
	Advanced OutcomeKind = iota
	// Deadlocked means no transition is enabled and time cannot make one enabled.
	Deadlocked
	// TimeExpired means the next time step would cross the horizon.
	TimeExpired
)

// String returns the outcome name.
func (k OutcomeKind) String() string {
	switch k {
	case Advanced:
		return "advanced"
	case Deadlocked:
		return "deadlocked"
	case TimeExpired:
		return "time_expired"
	default:
		return "unknown"
	}
}

// Outcome is the result of Step. Event is set only when Kind is Advanced.
type Outcome struct {
	Kind  OutcomeKind
	Event *Event

	// Delay is the time step that was refused when Kind is TimeExpired.
	Delay int64
}

// candidate is one firing: a lone transition, a handshake pair (sender
// first) or one combination of a synchronisation vector.
type candidate struct {
	sync  cs.SyncID
	trans []cs.TransitionID
}

// Step advances s by one event. It mutates s.
func Step(s *State, rng Rand) Outcome {
	cands := s.candidates()
	if len(cands) > 0 {
		c := cands[0]
		if len(cands) > 1 {
			c = cands[rng.IntN(len(cands))]
		}
		return Outcome{Kind: Advanced, Event: s.fire(c, rng)}
	}

	delay, ok := s.nextDelay()
	if !ok {
		return Outcome{Kind: Deadlocked}
	}
	if s.horizon > 0 && s.Time+delay > s.horizon {
		return Outcome{Kind: TimeExpired, Delay: delay}
	}

	for i := range s.Clocks {
		s.Clocks[i] += delay
	}
	s.Time += delay
	s.Steps++
	return Outcome{Kind: Advanced, Event: s.event(EventTime, delay, cs.NoSync, nil, nil)}
}

// enabled returns the number of firings available in s. Zero means only time
// can pass.
func (s *State) enabled() int {
	return len(s.candidates())
}

// candidates lists every enabled firing in a fixed order: lone transitions by
// process, then handshake pairs by channel, then sync combinations by sync.
func (s *State) candidates() []candidate {
	m := s.m
	var out []candidate
	var sends, recvs map[cs.ChannelID][]cs.TransitionID

	for p, loc := range s.Locs {
		for _, tid := range m.Outgoing(loc) {
			t := &m.Transitions[tid]
			if m.Synchronized(cs.ProcessID(p), t.Action) || !s.guardEnabled(t) {
				continue
			}
			if t.Comm != nil && m.Channels[t.Comm.Channel].Handshake() {
				if sends == nil {
					sends = make(map[cs.ChannelID][]cs.TransitionID)
					recvs = make(map[cs.ChannelID][]cs.TransitionID)
				}
				if t.Comm.Kind == cs.CommSend {
					sends[t.Comm.Channel] = append(sends[t.Comm.Channel], tid)
				} else {
					recvs[t.Comm.Channel] = append(recvs[t.Comm.Channel], tid)
				}
				continue
			}
			if s.commEnabled(t.Comm) {
				out = append(out, candidate{sync: cs.NoSync, trans: []cs.TransitionID{tid}})
			}
		}
	}

	for ch := range m.Channels {
		id := cs.ChannelID(ch)
		for _, snd := range sends[id] {
			for _, rcv := range recvs[id] {
				if m.Transitions[snd].Process == m.Transitions[rcv].Process {
					continue
				}
				out = append(out, candidate{sync: cs.NoSync, trans: []cs.TransitionID{snd, rcv}})
			}
		}
	}

	for _, sync := range m.Syncs {
		out = s.appendSync(out, &sync)
	}
	return out
}

// appendSync adds the cartesian product of the enabled transitions of every
// participant of sync. Nothing is added if some participant has none.
func (s *State) appendSync(out []candidate, sync *cs.Sync) []candidate {
	m := s.m
	options := make([][]cs.TransitionID, len(sync.Parts))
	for i, part := range sync.Parts {
		for _, tid := range m.Outgoing(s.Locs[part.Process]) {
			t := &m.Transitions[tid]
			if t.Action == part.Action && s.guardEnabled(t) {
				options[i] = append(options[i], tid)
			}
		}
		if len(options[i]) == 0 {
			return out
		}
	}

	idx := make([]int, len(options))
	for {
		combo := make([]cs.TransitionID, len(options))
		for i, o := range options {
			combo[i] = o[idx[i]]
		}
		out = append(out, candidate{sync: sync.ID, trans: combo})

		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(options[i]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}

// guardEnabled checks the data guard and the clock constraints of t.
func (s *State) guardEnabled(t *cs.Transition) bool {
	return s.m.Holds(t.Guard, s.Vals) && s.clocksEnabled(t.When)
}

func (s *State) clocksEnabled(bounds []cs.ClockBound) bool {
	for _, b := range bounds {
		if !b.Holds(s.Clocks[b.Clock]) {
			return false
		}
	}
	return true
}

// commEnabled checks a buffered channel operation against the queue.
func (s *State) commEnabled(c *cs.Comm) bool {
	if c == nil {
		return true
	}
	ch := s.m.Channels[c.Channel]
	n := len(s.Queues[c.Channel])
	switch c.Kind {
	case cs.CommSend:
		return ch.Capacity == cs.Unbounded || n < ch.Capacity
	case cs.CommReceive:
		return n > 0
	case cs.CommProbeEmpty:
		return n == 0
	case cs.CommProbeFull:
		return n == ch.Capacity
	}
	return false
}

type write struct {
	v   cs.VarID
	val ir.Value
}

// fire applies candidate c atomically and returns the resulting event.
func (s *State) fire(c candidate, rng Rand) *Event {
	m := s.m
	fired := make([]Firing, len(c.trans))
	branches := make([]*cs.Branch, len(c.trans))
	var writes []write
	var msg *Message

	// Every right-hand side reads the pre-step valuation.
	for i, tid := range c.trans {
		t := &m.Transitions[tid]
		bi := chooseBranch(t, rng)
		br := &t.Branches[bi]
		branches[i] = br
		fired[i] = Firing{Process: t.Process, Transition: tid, Action: t.Action, Branch: bi}

		for _, a := range br.Assign {
			writes = append(writes, write{v: a.Var, val: m.Eval(a.Expr, s.Vals)})
		}
		if t.Comm != nil && msg == nil {
			msg = s.communicate(c, t.Comm, &writes)
		}
	}

	for _, w := range writes {
		s.Vals[w.v] = w.val
	}
	for i, tid := range c.trans {
		for _, clk := range branches[i].Reset {
			s.Clocks[clk] = 0
		}
		s.Locs[m.Transitions[tid].Process] = branches[i].To
	}
	s.Steps++
	return s.event(EventAction, 0, c.sync, fired, msg)
}

// communicate performs the channel operation of the firing. A handshake pair
// is handled once, from the sender, and writes the receiver's variable.
func (s *State) communicate(c candidate, comm *cs.Comm, writes *[]write) *Message {
	m := s.m
	msg := &Message{Kind: comm.Kind, Channel: comm.Channel}
	switch comm.Kind {
	case cs.CommSend:
		msg.Value = m.Eval(comm.Value, s.Vals)
		if m.Channels[comm.Channel].Handshake() {
			recv := m.Transitions[c.trans[1]].Comm
			*writes = append(*writes, write{v: recv.Target, val: msg.Value})
		} else {
			s.Queues[comm.Channel] = append(s.Queues[comm.Channel], msg.Value)
		}
	case cs.CommReceive:
		q := s.Queues[comm.Channel]
		msg.Value = q[0]
		s.Queues[comm.Channel] = q[1:]
		*writes = append(*writes, write{v: comm.Target, val: msg.Value})
	}
	return msg
}

// chooseBranch samples a branch index proportionally to its weight.
func chooseBranch(t *cs.Transition, rng Rand) int {
	if !t.Probabilistic() {
		return 0
	}
	r := rng.Float64() * t.TotalWeight()
	acc := 0.0
	for i, br := range t.Branches {
		acc += br.Weight
		if r < acc {
			return i
		}
	}
	return len(t.Branches) - 1
}

// nextDelay returns how far time must advance before some transition can
// become clock-enabled, capped by the location invariants. It reports false
// when time cannot help.
func (s *State) nextDelay() (int64, bool) {
	m := s.m
	best := int64(-1)
	for _, loc := range s.Locs {
		for _, tid := range m.Outgoing(loc) {
			t := &m.Transitions[tid]
			if len(t.When) == 0 || !m.Holds(t.Guard, s.Vals) || !s.dataReady(t.Comm) {
				continue
			}
			if d, ok := s.waitFor(t.When); ok && (best < 0 || d < best) {
				best = d
			}
		}
	}
	if best < 0 {
		return 0, false
	}

	for _, loc := range s.Locs {
		for _, b := range m.Locations[loc].Invariant {
			if room := b.Upper - s.Clocks[b.Clock]; room < best {
				best = room
			}
		}
	}
	if best <= 0 {
		return 0, false
	}
	return best, true
}

// waitFor returns the smallest positive delay after which all bounds hold.
func (s *State) waitFor(bounds []cs.ClockBound) (int64, bool) {
	var d int64
	for _, b := range bounds {
		d = max(d, b.Lower-s.Clocks[b.Clock])
	}
	if d <= 0 {
		return 0, false
	}
	for _, b := range bounds {
		if b.Upper != cs.NoUpper && s.Clocks[b.Clock]+d > b.Upper {
			return 0, false
		}
	}
	return d, true
}

// dataReady is commEnabled for buffered channels. A handshake is ready as far
// as its own side is concerned.
func (s *State) dataReady(c *cs.Comm) bool {
	if c != nil && s.m.Channels[c.Channel].Handshake() {
		return true
	}
	return s.commEnabled(c)
}
