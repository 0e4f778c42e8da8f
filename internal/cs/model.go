package cs

import (
	"math"
	"strings"

	"github.com/roach88/scan/internal/ir"
)

// Dense indices into the Model arenas.
type (
	ProcessID    int
	LocationID   int
	VarID        int
	ClockID      int
	ChannelID    int
	TransitionID int
	SyncID       int
	ActionID     int
)

const (
	// Global is the owner of variables shared by all processes.
	Global ProcessID = -1

	// Silent is the action of unlabelled transitions. It never synchronises.
	Silent ActionID = 0

	// NoSync marks an event that did not come from a synchronisation.
	NoSync SyncID = -1

	// Unbounded is the capacity of a channel with an unlimited queue.
	Unbounded = -1

	// NoUpper is the upper bound of a clock constraint without one.
	NoUpper = math.MaxInt64
)

// Var is a declared variable. Locals carry a qualified name "P.x".
type Var struct {
	ID    VarID
	Name  string
	Kind  ir.Kind
	Init  ir.Value
	Owner ProcessID
}

// Clock is a process-local clock. All clocks advance together with model time.
type Clock struct {
	ID    ClockID
	Name  string
	Owner ProcessID
}

// ClockBound constrains a clock to Lower <= c <= Upper.
type ClockBound struct {
	Clock ClockID
	Lower int64
	Upper int64
}

// Holds reports whether the clock value satisfies the bound.
func (b ClockBound) Holds(v int64) bool {
	return v >= b.Lower && v <= b.Upper
}

// Location is a control state of one process.
type Location struct {
	ID        LocationID
	Name      string
	Process   ProcessID
	Invariant []ClockBound // upper bounds only; time may not pass beyond them
	Outgoing  []TransitionID
}

// Process is one automaton of the network.
type Process struct {
	ID        ProcessID
	Name      string
	Initial   LocationID
	Locations []LocationID
	Locals    []VarID
	Clocks    []ClockID

	synced map[ActionID]bool
}

// CommKind is the kind of channel operation a transition performs.
type CommKind uint8

const (
	CommSend CommKind = iota + 1
	CommReceive
	CommProbeEmpty
	CommProbeFull
)

// String returns the operation name used in traces.
func (k CommKind) String() string {
	switch k {
	case CommSend:
		return "send"
	case CommReceive:
		return "receive"
	case CommProbeEmpty:
		return "probe_empty"
	case CommProbeFull:
		return "probe_full"
	default:
		return "none"
	}
}

// Comm is the channel operation attached to a transition.
type Comm struct {
	Kind    CommKind
	Channel ChannelID
	Value   ExprID // sent value (CommSend)
	Target  VarID  // receiving variable (CommReceive)
}

// Assignment sets a variable to the value of an expression.
type Assignment struct {
	Var  VarID
	Expr ExprID
}

// Branch is one probabilistic destination of a transition.
type Branch struct {
	Weight float64
	To     LocationID
	Assign []Assignment
	Reset  []ClockID
}

// Transition is an edge of a process automaton.
type Transition struct {
	ID       TransitionID
	Process  ProcessID
	From     LocationID
	Action   ActionID
	Guard    ExprID
	When     []ClockBound
	Comm     *Comm
	Branches []Branch

	totalWeight float64
}

// TotalWeight returns the sum of branch weights.
func (t *Transition) TotalWeight() float64 { return t.totalWeight }

// Probabilistic reports whether the transition has more than one destination.
func (t *Transition) Probabilistic() bool { return len(t.Branches) > 1 }

// Channel is a FIFO queue shared by processes.
// Capacity is Unbounded, 0 for a handshake (rendezvous) or the queue bound.
type Channel struct {
	ID       ChannelID
	Name     string
	Kind     ir.Kind
	Capacity int
}

// Handshake reports whether the channel is a rendezvous without a buffer.
func (c Channel) Handshake() bool { return c.Capacity == 0 }

// SyncPart is one participant of a synchronisation.
type SyncPart struct {
	Process ProcessID
	Action  ActionID
}

// Sync is a synchronisation vector: every part fires together or none does.
type Sync struct {
	ID    SyncID
	Name  string
	Parts []SyncPart
}

// Model is an immutable, validated Channel System.
//
// The exported slices are arenas indexed by the corresponding IDs. They are
// shared by all runs and must not be modified after Build.
type Model struct {
	Processes   []Process
	Locations   []Location
	Vars        []Var
	Clocks      []Clock
	Channels    []Channel
	Transitions []Transition
	Syncs       []Sync
	Actions     []string

	exprs ExprTable

	procIndex   map[string]ProcessID
	varIndex    map[string]VarID
	locIndex    map[string]LocationID
	clockIndex  map[string]ClockID
	chanIndex   map[string]ChannelID
	actionIndex map[string]ActionID
	syncIndex   map[string]SyncID
}

func newModel() *Model {
	return &Model{
		Actions:     []string{""},
		procIndex:   make(map[string]ProcessID),
		varIndex:    make(map[string]VarID),
		locIndex:    make(map[string]LocationID),
		clockIndex:  make(map[string]ClockID),
		chanIndex:   make(map[string]ChannelID),
		actionIndex: map[string]ActionID{"": Silent},
		syncIndex:   make(map[string]SyncID),
	}
}

// Eval evaluates a model expression against a valuation.
func (m *Model) Eval(id ExprID, vals []ir.Value) ir.Value { return m.exprs.Eval(id, vals) }

// Holds evaluates a guard. NoExpr always holds.
func (m *Model) Holds(id ExprID, vals []ir.Value) bool { return m.exprs.Holds(id, vals) }

// FormatExpr renders a model expression with qualified variable names.
func (m *Model) FormatExpr(id ExprID) string {
	return m.exprs.Format(id, func(v VarID) string { return m.Vars[v].Name })
}

// Timed reports whether the model declares any clock.
func (m *Model) Timed() bool { return len(m.Clocks) > 0 }

// Outgoing returns the transitions leaving a location.
func (m *Model) Outgoing(l LocationID) []TransitionID { return m.Locations[l].Outgoing }

// Synchronized reports whether action a of process p may only fire inside a sync.
func (m *Model) Synchronized(p ProcessID, a ActionID) bool {
	return a != Silent && m.Processes[p].synced[a]
}

// InitialLocations returns the initial location of every process, by ProcessID.
func (m *Model) InitialLocations() []LocationID {
	locs := make([]LocationID, len(m.Processes))
	for i, p := range m.Processes {
		locs[i] = p.Initial
	}
	return locs
}

// InitialValuation returns the declared initial value of every variable, by VarID.
func (m *Model) InitialValuation() []ir.Value {
	vals := make([]ir.Value, len(m.Vars))
	for i, v := range m.Vars {
		vals[i] = v.Init
	}
	return vals
}

// ProcessByName looks up a process.
func (m *Model) ProcessByName(name string) (ProcessID, bool) {
	id, ok := m.procIndex[name]
	return id, ok
}

// VarByName looks up a variable by qualified name ("x" or "P.x").
func (m *Model) VarByName(name string) (VarID, bool) {
	id, ok := m.varIndex[name]
	return id, ok
}

// LocationByName looks up a location by qualified name "P.loc".
func (m *Model) LocationByName(name string) (LocationID, bool) {
	id, ok := m.locIndex[name]
	return id, ok
}

// ChannelByName looks up a channel.
func (m *Model) ChannelByName(name string) (ChannelID, bool) {
	id, ok := m.chanIndex[name]
	return id, ok
}

// ActionByName looks up an action label.
func (m *Model) ActionByName(label string) (ActionID, bool) {
	id, ok := m.actionIndex[label]
	return id, ok
}

// LocationName returns the qualified name "P.loc" of a location.
func (m *Model) LocationName(l LocationID) string {
	loc := m.Locations[l]
	return m.Processes[loc.Process].Name + "." + loc.Name
}

// ActionName returns the label of an action.
func (m *Model) ActionName(a ActionID) string { return m.Actions[a] }

// CompileQuery resolves and type-checks an expression in global scope,
// appending it to t rather than to the model, which stays immutable.
// Process locals must be qualified ("P.x").
func (m *Model) CompileQuery(t *ExprTable, e Expr) (ExprID, ir.Kind, error) {
	id, kind, err := t.compile(e, m.globalResolver())
	if err != nil {
		return NoExpr, ir.KindInvalid, err
	}
	return id, kind, nil
}

func (m *Model) globalResolver() resolver {
	return func(name string) (VarID, ir.Kind, *ExprError) {
		id, ok := m.varIndex[name]
		if !ok {
			return 0, ir.KindInvalid, undeclared("undeclared variable %q", name)
		}
		return id, m.Vars[id].Kind, nil
	}
}

// processResolver resolves names inside process p: own locals first, then globals.
func (m *Model) processResolver(p ProcessID) resolver {
	pname := m.Processes[p].Name
	return func(name string) (VarID, ir.Kind, *ExprError) {
		if owner, _, ok := strings.Cut(name, "."); ok && owner != pname {
			return 0, ir.KindInvalid, undeclared("variable %q is not visible in process %q", name, pname)
		}
		if !strings.Contains(name, ".") {
			if id, ok := m.varIndex[pname+"."+name]; ok {
				return id, m.Vars[id].Kind, nil
			}
		}
		id, ok := m.varIndex[name]
		if !ok {
			return 0, ir.KindInvalid, undeclared("undeclared variable %q", name)
		}
		return id, m.Vars[id].Kind, nil
	}
}
