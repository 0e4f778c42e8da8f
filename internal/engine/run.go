package engine

import (
	"context"

	"github.com/roach88/scan/internal/cs"
)

// cancelCheckInterval is how often, in steps, Execute looks at the context.
const cancelCheckInterval = 256

// Limits bounds a run. MaxLength counts events after the initial one.
// MaxDuration is in model time ticks; zero disables it.
type Limits struct {
	MaxLength   int
	MaxDuration int64
}

// Observer consumes the events of a run. Observe returns true once the
// observer needs no more events.
type Observer interface {
	Observe(ev *Event) (done bool)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(ev *Event) bool

// Observe calls f.
func (f ObserverFunc) Observe(ev *Event) bool { return f(ev) }

// Termination is the reason a run stopped.
type Termination uint8

const (
	TermDecided Termination = iota
	TermDeadlock
	TermLength
	TermDuration
	TermCancelled
)

// String returns the termination name stored in traces.
func (t Termination) String() string {
	switch t {
	case TermDecided:
		return "decided"
	case TermDeadlock:
		return "deadlock"
	case TermLength:
		return "length"
	case TermDuration:
		return "duration"
	case TermCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Complete reports whether the trace has no continuation. Only a deadlock
// ends a trace for good; every other termination cuts it short.
func (t Termination) Complete() bool { return t == TermDeadlock }

// Run is the result of Execute.
type Run struct {
	Termination Termination
	Steps       int
	Time        int64

	// Cutoff is a *StepsExceededError or *DurationExceededError when the run
	// was cut short, nil otherwise.
	Cutoff error

	// Events is the full trace, initial event first, when capture was requested.
	Events []*Event
}

// Execute runs m from its initial state until obs is done, the model
// deadlocks, a limit is reached or ctx is cancelled.
func Execute(ctx context.Context, m *cs.Model, rng Rand, lim Limits, obs Observer, capture bool) Run {
	if obs == nil {
		obs = ObserverFunc(func(*Event) bool { return false })
	}

	s := Initial(m, WithHorizon(lim.MaxDuration))
	quota := NewQuotaEnforcer(lim.MaxLength)
	var run Run

	finish := func(t Termination) Run {
		run.Termination = t
		run.Steps = s.Steps
		run.Time = s.Time
		return run
	}
	emit := func(ev *Event) bool {
		if capture {
			run.Events = append(run.Events, ev)
		}
		return obs.Observe(ev)
	}

	if emit(s.InitEvent()) {
		return finish(TermDecided)
	}

	for {
		if s.Steps%cancelCheckInterval == 0 && ctx.Err() != nil {
			return finish(TermCancelled)
		}
		if err := quota.Check(); err != nil {
			run.Cutoff = err
			return finish(TermLength)
		}

		out := Step(s, rng)
		switch out.Kind {
		case Deadlocked:
			return finish(TermDeadlock)
		case TimeExpired:
			run.Cutoff = &DurationExceededError{Time: s.Time, Delay: out.Delay, Horizon: s.horizon}
			return finish(TermDuration)
		}

		if emit(out.Event) {
			return finish(TermDecided)
		}
	}
}
