package cs

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/scan/internal/ir"
)

// ClockSpec is a clock constraint by name. A nil Upper means no upper bound.
type ClockSpec struct {
	Clock string
	Lower int64
	Upper *int64
}

// AtLeast constrains clock >= lo.
func AtLeast(clock string, lo int64) ClockSpec { return ClockSpec{Clock: clock, Lower: lo} }

// AtMost constrains clock <= hi.
func AtMost(clock string, hi int64) ClockSpec { return ClockSpec{Clock: clock, Upper: &hi} }

// Within constrains lo <= clock <= hi.
func Within(clock string, lo, hi int64) ClockSpec {
	return ClockSpec{Clock: clock, Lower: lo, Upper: &hi}
}

// AssignSpec assigns an expression to a variable by name.
type AssignSpec struct {
	Var  string
	Expr Expr
}

// Assign is shorthand for an AssignSpec.
func Assign(v string, e Expr) AssignSpec { return AssignSpec{Var: v, Expr: e} }

// CommSpec is a channel operation by name.
type CommSpec struct {
	Kind    CommKind
	Channel string
	Value   Expr   // CommSend
	Var     string // CommReceive
}

// Send builds a send operation.
func Send(channel string, value Expr) *CommSpec {
	return &CommSpec{Kind: CommSend, Channel: channel, Value: value}
}

// Receive builds a receive operation storing the message in v.
func Receive(channel, v string) *CommSpec {
	return &CommSpec{Kind: CommReceive, Channel: channel, Var: v}
}

// ProbeEmpty builds a transition enabled only while the channel is empty.
func ProbeEmpty(channel string) *CommSpec { return &CommSpec{Kind: CommProbeEmpty, Channel: channel} }

// ProbeFull builds a transition enabled only while a bounded channel is full.
func ProbeFull(channel string) *CommSpec { return &CommSpec{Kind: CommProbeFull, Channel: channel} }

// BranchSpec is one weighted destination of a transition.
type BranchSpec struct {
	Weight float64
	Assign []AssignSpec
	Reset  []string
	To     string
}

// TransitionSpec declares a transition by name.
//
// Either To (with Assign and Reset) or Branches describes the destination.
// A nil Guard always holds.
type TransitionSpec struct {
	From     string
	Action   string
	Guard    *Expr
	When     []ClockSpec
	Comm     *CommSpec
	Assign   []AssignSpec
	Reset    []string
	To       string
	Branches []BranchSpec
}

// Participant names one (process, action) pair of a synchronisation.
type Participant struct {
	Process string
	Action  string
}

type varDecl struct {
	name string
	init ir.Value
}

type chanDecl struct {
	name     string
	kind     ir.Kind
	capacity int
}

type locDecl struct {
	name      string
	invariant []ClockSpec
}

type syncDecl struct {
	name  string
	parts []Participant
}

// Builder collects declarations by name and validates them in Build.
// Declaration order is preserved in the resulting arenas.
type Builder struct {
	globals  []varDecl
	channels []chanDecl
	procs    []*ProcessBuilder
	syncs    []syncDecl
}

// NewBuilder creates an empty model builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Global declares a shared variable. Its kind is the kind of init.
func (b *Builder) Global(name string, init ir.Value) *Builder {
	b.globals = append(b.globals, varDecl{name: name, init: init})
	return b
}

// Channel declares a channel carrying values of kind.
// Capacity is Unbounded, 0 for a handshake or a positive queue bound.
func (b *Builder) Channel(name string, kind ir.Kind, capacity int) *Builder {
	b.channels = append(b.channels, chanDecl{name: name, kind: kind, capacity: capacity})
	return b
}

// Process declares a process and returns its builder.
func (b *Builder) Process(name string) *ProcessBuilder {
	p := &ProcessBuilder{name: name}
	b.procs = append(b.procs, p)
	return p
}

// Sync declares a synchronisation vector.
func (b *Builder) Sync(name string, parts ...Participant) *Builder {
	b.syncs = append(b.syncs, syncDecl{name: name, parts: parts})
	return b
}

// ProcessBuilder collects the declarations of one process.
type ProcessBuilder struct {
	name        string
	locals      []varDecl
	clocks      []string
	locations   []locDecl
	initial     string
	transitions []TransitionSpec
}

// Local declares a process-local variable.
func (p *ProcessBuilder) Local(name string, init ir.Value) *ProcessBuilder {
	p.locals = append(p.locals, varDecl{name: name, init: init})
	return p
}

// Clock declares a process-local clock starting at 0.
func (p *ProcessBuilder) Clock(name string) *ProcessBuilder {
	p.clocks = append(p.clocks, name)
	return p
}

// Location declares a location with an optional invariant (upper bounds only).
// The first declared location is initial unless Initial says otherwise.
func (p *ProcessBuilder) Location(name string, invariant ...ClockSpec) *ProcessBuilder {
	p.locations = append(p.locations, locDecl{name: name, invariant: invariant})
	return p
}

// Initial sets the initial location.
func (p *ProcessBuilder) Initial(name string) *ProcessBuilder {
	p.initial = name
	return p
}

// Transition declares a transition.
func (p *ProcessBuilder) Transition(t TransitionSpec) *ProcessBuilder {
	p.transitions = append(p.transitions, t)
	return p
}

// build carries the model under construction and the problems found so far.
type build struct {
	m    *Model
	errs ModelErrors
}

func (b *build) report(code, path, format string, args ...any) {
	b.errs = append(b.errs, &ModelError{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (b *build) reportExpr(path string, err *ExprError) {
	b.errs = append(b.errs, &ModelError{Code: err.Code, Path: path, Message: err.Message})
}

// Build resolves every name, type-checks every expression and validates the
// network. It returns all problems found, never a partial model.
func (b *Builder) Build() (*Model, error) {
	bl := &build{m: newModel()}

	bl.declareProcesses(b.procs)
	bl.declareGlobals(b.globals)
	bl.declareChannels(b.channels)
	for i, p := range b.procs {
		bl.declareProcessScope(ProcessID(i), p)
	}
	for i, p := range b.procs {
		for j, t := range p.transitions {
			bl.addTransition(ProcessID(i), j, t)
		}
	}
	for _, s := range b.syncs {
		bl.addSync(s)
	}
	bl.checkCommunication()

	if len(bl.errs) > 0 {
		return nil, bl.errs
	}
	return bl.m, nil
}

func checkName(name string) string {
	switch {
	case name == "":
		return "name must not be empty"
	case strings.Contains(name, "."):
		return fmt.Sprintf("name %q must not contain '.'", name)
	}
	return ""
}

func (b *build) declareProcesses(procs []*ProcessBuilder) {
	for i, p := range procs {
		path := "process " + p.name
		if msg := checkName(p.name); msg != "" {
			b.report(ErrCodeStructure, path, "%s", msg)
		}
		if _, dup := b.m.procIndex[p.name]; dup {
			b.report(ErrCodeDuplicate, path, "process %q declared twice", p.name)
		}
		b.m.procIndex[p.name] = ProcessID(i)
		b.m.Processes = append(b.m.Processes, Process{
			ID:      ProcessID(i),
			Name:    p.name,
			Initial: -1,
			synced:  make(map[ActionID]bool),
		})
	}
	if len(procs) == 0 {
		b.report(ErrCodeStructure, "", "model declares no process")
	}
}

func (b *build) declareVar(path, qualified string, owner ProcessID, init ir.Value) {
	if !init.IsValid() {
		b.report(ErrCodeTypeMismatch, path, "initial value of %q has no type", qualified)
		return
	}
	if _, dup := b.m.varIndex[qualified]; dup {
		b.report(ErrCodeDuplicate, path, "variable %q declared twice", qualified)
		return
	}
	id := VarID(len(b.m.Vars))
	b.m.Vars = append(b.m.Vars, Var{ID: id, Name: qualified, Kind: init.Kind, Init: init, Owner: owner})
	b.m.varIndex[qualified] = id
	if owner != Global {
		b.m.Processes[owner].Locals = append(b.m.Processes[owner].Locals, id)
	}
}

func (b *build) declareGlobals(globals []varDecl) {
	for _, g := range globals {
		path := "global " + g.name
		if msg := checkName(g.name); msg != "" {
			b.report(ErrCodeStructure, path, "%s", msg)
			continue
		}
		b.declareVar(path, g.name, Global, g.init)
	}
}

func (b *build) declareChannels(channels []chanDecl) {
	for _, c := range channels {
		path := "channel " + c.name
		if msg := checkName(c.name); msg != "" {
			b.report(ErrCodeStructure, path, "%s", msg)
			continue
		}
		if _, dup := b.m.chanIndex[c.name]; dup {
			b.report(ErrCodeDuplicate, path, "channel %q declared twice", c.name)
			continue
		}
		if c.kind != ir.KindBool && c.kind != ir.KindInt {
			b.report(ErrCodeTypeMismatch, path, "channel message type is %s, want bool or int", c.kind)
		}
		if c.capacity < Unbounded {
			b.report(ErrCodeStructure, path, "capacity %d is invalid (use -1 for unbounded, 0 for handshake)", c.capacity)
		}
		id := ChannelID(len(b.m.Channels))
		b.m.Channels = append(b.m.Channels, Channel{ID: id, Name: c.name, Kind: c.kind, Capacity: c.capacity})
		b.m.chanIndex[c.name] = id
	}
}

func (b *build) declareProcessScope(pid ProcessID, p *ProcessBuilder) {
	path := "process " + p.name

	for _, l := range p.locals {
		lpath := path + " local " + l.name
		if msg := checkName(l.name); msg != "" {
			b.report(ErrCodeStructure, lpath, "%s", msg)
			continue
		}
		b.declareVar(lpath, p.name+"."+l.name, pid, l.init)
	}

	for _, c := range p.clocks {
		cpath := path + " clock " + c
		if msg := checkName(c); msg != "" {
			b.report(ErrCodeStructure, cpath, "%s", msg)
			continue
		}
		qualified := p.name + "." + c
		if _, dup := b.m.clockIndex[qualified]; dup {
			b.report(ErrCodeDuplicate, cpath, "clock %q declared twice", qualified)
			continue
		}
		id := ClockID(len(b.m.Clocks))
		b.m.Clocks = append(b.m.Clocks, Clock{ID: id, Name: qualified, Owner: pid})
		b.m.clockIndex[qualified] = id
		b.m.Processes[pid].Clocks = append(b.m.Processes[pid].Clocks, id)
	}

	for _, l := range p.locations {
		lpath := path + " location " + l.name
		if msg := checkName(l.name); msg != "" {
			b.report(ErrCodeStructure, lpath, "%s", msg)
			continue
		}
		qualified := p.name + "." + l.name
		if _, dup := b.m.locIndex[qualified]; dup {
			b.report(ErrCodeDuplicate, lpath, "location %q declared twice", qualified)
			continue
		}
		id := LocationID(len(b.m.Locations))
		loc := Location{ID: id, Name: l.name, Process: pid}
		for _, spec := range l.invariant {
			bound, ok := b.clockBound(pid, lpath, spec)
			if !ok {
				continue
			}
			if spec.Lower != 0 || spec.Upper == nil {
				b.report(ErrCodeStructure, lpath, "invariant on %q must be an upper bound only", spec.Clock)
				continue
			}
			loc.Invariant = append(loc.Invariant, bound)
		}
		b.m.Locations = append(b.m.Locations, loc)
		b.m.locIndex[qualified] = id
		b.m.Processes[pid].Locations = append(b.m.Processes[pid].Locations, id)
	}

	proc := &b.m.Processes[pid]
	switch {
	case len(p.locations) == 0:
		b.report(ErrCodeStructure, path, "process has no location")
	case p.initial == "":
		if len(proc.Locations) > 0 {
			proc.Initial = proc.Locations[0]
		}
	default:
		id, ok := b.m.locIndex[p.name+"."+p.initial]
		if !ok {
			b.report(ErrCodeUndeclared, path, "initial location %q is not declared", p.initial)
		} else {
			proc.Initial = id
		}
	}
}

// clockBound resolves a clock constraint inside process pid.
func (b *build) clockBound(pid ProcessID, path string, spec ClockSpec) (ClockBound, bool) {
	pname := b.m.Processes[pid].Name
	name := spec.Clock
	if !strings.Contains(name, ".") {
		name = pname + "." + name
	}
	id, ok := b.m.clockIndex[name]
	if !ok || b.m.Clocks[id].Owner != pid {
		b.report(ErrCodeUndeclared, path, "undeclared clock %q", spec.Clock)
		return ClockBound{}, false
	}
	bound := ClockBound{Clock: id, Lower: spec.Lower, Upper: NoUpper}
	if spec.Upper != nil {
		bound.Upper = *spec.Upper
	}
	if bound.Lower < 0 || bound.Upper < bound.Lower {
		b.report(ErrCodeStructure, path, "clock bound [%d, %d] on %q is empty", bound.Lower, bound.Upper, spec.Clock)
		return ClockBound{}, false
	}
	return bound, true
}

func (b *build) location(pid ProcessID, path, role, name string) (LocationID, bool) {
	id, ok := b.m.locIndex[b.m.Processes[pid].Name+"."+name]
	if !ok {
		b.report(ErrCodeUndeclared, path, "%s location %q is not declared", role, name)
	}
	return id, ok
}

func (b *build) action(label string) ActionID {
	if id, ok := b.m.actionIndex[label]; ok {
		return id
	}
	id := ActionID(len(b.m.Actions))
	b.m.Actions = append(b.m.Actions, label)
	b.m.actionIndex[label] = id
	return id
}

func (b *build) addTransition(pid ProcessID, index int, spec TransitionSpec) {
	path := fmt.Sprintf("process %s transition #%d", b.m.Processes[pid].Name, index+1)
	resolve := b.m.processResolver(pid)
	ok := true

	t := Transition{
		ID:      TransitionID(len(b.m.Transitions)),
		Process: pid,
		Action:  b.action(spec.Action),
		Guard:   NoExpr,
	}

	from, found := b.location(pid, path, "source", spec.From)
	ok = ok && found
	t.From = from

	if spec.Guard != nil {
		id, kind, err := b.m.exprs.compile(*spec.Guard, resolve)
		switch {
		case err != nil:
			b.reportExpr(path, err)
			ok = false
		case kind != ir.KindBool:
			b.report(ErrCodeTypeMismatch, path, "guard %s is %s, want bool", spec.Guard, kind)
			ok = false
		default:
			t.Guard = id
		}
	}

	for _, w := range spec.When {
		bound, valid := b.clockBound(pid, path, w)
		ok = ok && valid
		t.When = append(t.When, bound)
	}

	if spec.Comm != nil {
		comm, valid := b.comm(pid, path, spec.Comm)
		ok = ok && valid
		t.Comm = comm
	}

	branches := spec.Branches
	if len(branches) == 0 {
		branches = []BranchSpec{{Weight: 1, Assign: spec.Assign, Reset: spec.Reset, To: spec.To}}
	} else if spec.To != "" || len(spec.Assign) > 0 || len(spec.Reset) > 0 {
		b.report(ErrCodeStructure, path, "destination given both directly and as branches")
		ok = false
	}

	for i, bs := range branches {
		bpath := path
		if len(branches) > 1 {
			bpath = fmt.Sprintf("%s branch #%d", path, i+1)
		}
		br, valid := b.branch(pid, bpath, bs, resolve)
		ok = ok && valid
		if t.Comm != nil && len(bs.Assign) > 0 {
			b.report(ErrCodeStructure, bpath, "communication transitions cannot carry assignments")
			ok = false
		}
		t.Branches = append(t.Branches, br)
		t.totalWeight += br.Weight
	}

	if !ok {
		return
	}
	b.m.Transitions = append(b.m.Transitions, t)
	b.m.Locations[t.From].Outgoing = append(b.m.Locations[t.From].Outgoing, t.ID)
}

func (b *build) branch(pid ProcessID, path string, spec BranchSpec, resolve resolver) (Branch, bool) {
	ok := true
	br := Branch{Weight: spec.Weight}
	if !(spec.Weight > 0) || math.IsInf(spec.Weight, 0) {
		b.report(ErrCodeStructure, path, "branch weight %v must be positive and finite", spec.Weight)
		ok = false
	}

	to, found := b.location(pid, path, "destination", spec.To)
	ok = ok && found
	br.To = to

	seen := make(map[VarID]bool)
	for _, a := range spec.Assign {
		target, kind, err := resolve(a.Var)
		if err != nil {
			b.reportExpr(path, err)
			ok = false
			continue
		}
		if seen[target] {
			b.report(ErrCodeDuplicate, path, "variable %q assigned twice", a.Var)
			ok = false
			continue
		}
		seen[target] = true

		id, ekind, eerr := b.m.exprs.compile(a.Expr, resolve)
		if eerr != nil {
			b.reportExpr(path, eerr)
			ok = false
			continue
		}
		if ekind != kind {
			b.report(ErrCodeTypeMismatch, path, "cannot assign %s value %s to %s variable %q", ekind, a.Expr, kind, a.Var)
			ok = false
			continue
		}
		br.Assign = append(br.Assign, Assignment{Var: target, Expr: id})
	}

	for _, r := range spec.Reset {
		bound, valid := b.clockBound(pid, path, ClockSpec{Clock: r})
		if !valid {
			ok = false
			continue
		}
		br.Reset = append(br.Reset, bound.Clock)
	}
	return br, ok
}

func (b *build) comm(pid ProcessID, path string, spec *CommSpec) (*Comm, bool) {
	cid, found := b.m.chanIndex[spec.Channel]
	if !found {
		b.report(ErrCodeUndeclared, path, "undeclared channel %q", spec.Channel)
		return nil, false
	}
	ch := b.m.Channels[cid]
	comm := &Comm{Kind: spec.Kind, Channel: cid, Value: NoExpr}

	switch spec.Kind {
	case CommSend:
		id, kind, err := b.m.exprs.compile(spec.Value, b.m.processResolver(pid))
		if err != nil {
			b.reportExpr(path, err)
			return nil, false
		}
		if kind != ch.Kind {
			b.report(ErrCodeTypeMismatch, path, "cannot send %s value on %s channel %q", kind, ch.Kind, ch.Name)
			return nil, false
		}
		comm.Value = id
	case CommReceive:
		target, kind, err := b.m.processResolver(pid)(spec.Var)
		if err != nil {
			b.reportExpr(path, err)
			return nil, false
		}
		if kind != ch.Kind {
			b.report(ErrCodeTypeMismatch, path, "cannot receive %s message from %q into %s variable %q", ch.Kind, ch.Name, kind, spec.Var)
			return nil, false
		}
		comm.Target = target
	case CommProbeEmpty:
		if ch.Handshake() {
			b.report(ErrCodeStructure, path, "cannot probe handshake channel %q", ch.Name)
			return nil, false
		}
	case CommProbeFull:
		if ch.Capacity <= 0 {
			b.report(ErrCodeStructure, path, "probe_full needs a bounded channel, %q is not", ch.Name)
			return nil, false
		}
	default:
		b.report(ErrCodeStructure, path, "unknown channel operation %d", spec.Kind)
		return nil, false
	}
	return comm, true
}

func (b *build) addSync(s syncDecl) {
	path := "sync " + s.name
	if _, dup := b.m.syncIndex[s.name]; dup {
		b.report(ErrCodeDuplicate, path, "sync %q declared twice", s.name)
		return
	}
	if len(s.parts) == 0 {
		b.report(ErrCodeSync, path, "synchronisation has no participant")
		return
	}

	ok := true
	sync := Sync{ID: SyncID(len(b.m.Syncs)), Name: s.name}
	seen := make(map[ProcessID]bool)
	for _, part := range s.parts {
		pid, found := b.m.procIndex[part.Process]
		if !found {
			b.report(ErrCodeUndeclared, path, "undeclared process %q", part.Process)
			ok = false
			continue
		}
		if seen[pid] {
			b.report(ErrCodeSync, path, "process %q participates twice", part.Process)
			ok = false
			continue
		}
		seen[pid] = true

		aid, known := b.m.actionIndex[part.Action]
		if !known || aid == Silent || !b.usesAction(pid, aid) {
			b.report(ErrCodeUndeclared, path, "process %q has no transition labelled %q", part.Process, part.Action)
			ok = false
			continue
		}
		sync.Parts = append(sync.Parts, SyncPart{Process: pid, Action: aid})
	}
	if !ok {
		return
	}

	for _, part := range sync.Parts {
		b.m.Processes[part.Process].synced[part.Action] = true
	}
	b.m.Syncs = append(b.m.Syncs, sync)
	b.m.syncIndex[s.name] = sync.ID
}

func (b *build) usesAction(pid ProcessID, a ActionID) bool {
	for _, t := range b.m.Transitions {
		if t.Process == pid && t.Action == a {
			return true
		}
	}
	return false
}

// checkCommunication rejects communication transitions whose action is synchronised.
func (b *build) checkCommunication() {
	for _, t := range b.m.Transitions {
		if t.Comm != nil && b.m.Synchronized(t.Process, t.Action) {
			b.report(ErrCodeSync, "process "+b.m.Processes[t.Process].Name,
				"communication transition labelled %q cannot take part in a synchronisation", b.m.Actions[t.Action])
		}
	}
}
