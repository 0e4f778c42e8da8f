package engine

import (
	"math/rand/v2"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/ir"
)

// Rand is the source of randomness used by Step.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// NewRand returns a PCG-backed source. Run i of a session uses stream i, so
// runs are independent of the order in which workers execute them.
func NewRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// State is the configuration of one run.
type State struct {
	Locs   []cs.LocationID // by ProcessID
	Vals   []ir.Value      // by VarID
	Clocks []int64         // by ClockID
	Queues [][]ir.Value    // by ChannelID, front first
	Time   int64
	Steps  int

	m       *cs.Model
	horizon int64 // 0 means no duration cutoff
}

// Option configures a State.
type Option func(*State)

// WithHorizon stops time from advancing beyond d ticks. Zero disables the cutoff.
func WithHorizon(d int64) Option {
	return func(s *State) {
		s.horizon = d
	}
}

// Initial returns the initial state of m: initial locations, declared initial
// values, clocks at zero and empty channels.
func Initial(m *cs.Model, opts ...Option) *State {
	s := &State{
		Locs:   m.InitialLocations(),
		Vals:   m.InitialValuation(),
		Clocks: make([]int64, len(m.Clocks)),
		Queues: make([][]ir.Value, len(m.Channels)),
		m:      m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model returns the model the state belongs to.
func (s *State) Model() *cs.Model { return s.m }

// Horizon returns the duration cutoff, 0 if none.
func (s *State) Horizon() int64 { return s.horizon }

// clone returns a deep copy of the state.
func (s *State) clone() *State {
	c := *s
	c.Locs = append([]cs.LocationID(nil), s.Locs...)
	c.Vals = append([]ir.Value(nil), s.Vals...)
	c.Clocks = append([]int64(nil), s.Clocks...)
	c.Queues = make([][]ir.Value, len(s.Queues))
	for i, q := range s.Queues {
		c.Queues[i] = append([]ir.Value(nil), q...)
	}
	return &c
}

// InitEvent returns the event describing the initial state.
func (s *State) InitEvent() *Event {
	return s.event(EventInit, 0, cs.NoSync, nil, nil)
}

func (s *State) event(kind EventKind, delta int64, sync cs.SyncID, fired []Firing, msg *Message) *Event {
	return &Event{
		Seq:    s.Steps,
		Kind:   kind,
		Time:   s.Time,
		Delta:  delta,
		Sync:   sync,
		Fired:  fired,
		Msg:    msg,
		Locs:   append([]cs.LocationID(nil), s.Locs...),
		Vals:   append([]ir.Value(nil), s.Vals...),
		Clocks: append([]int64(nil), s.Clocks...),
	}
}
