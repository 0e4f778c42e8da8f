package compiler

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/scan/internal/cs"
	"github.com/roach88/scan/internal/ir"
)

// decoder walks CUE values and collects every problem it finds.
type decoder struct {
	errs []error
}

func (d *decoder) fail(v cue.Value, field, format string, args ...any) {
	d.errs = append(d.errs, &CompileError{Field: field, Message: fmt.Sprintf(format, args...), Pos: v.Pos()})
}

func (d *decoder) err() error { return errors.Join(d.errs...) }

func lookup(v cue.Value, name string) cue.Value {
	return v.LookupPath(cue.ParsePath(name))
}

// known reports fields of v outside the allowed set.
func (d *decoder) known(v cue.Value, field string, allowed ...string) {
	iter, err := v.Fields()
	if err != nil {
		return
	}
	for iter.Next() {
		label := iter.Label()
		found := false
		for _, a := range allowed {
			if a == label {
				found = true
				break
			}
		}
		if !found {
			d.fail(iter.Value(), field+"."+label, "unknown field (want one of %s)", strings.Join(allowed, ", "))
		}
	}
}

// fields calls fn for every field of an optional struct.
func (d *decoder) fields(v cue.Value, field string, fn func(label string, v cue.Value)) {
	if !v.Exists() {
		return
	}
	iter, err := v.Fields()
	if err != nil {
		d.errs = append(d.errs, formatCUEError(field, err))
		return
	}
	for iter.Next() {
		fn(iter.Label(), iter.Value())
	}
}

// list calls fn for every element of an optional list.
func (d *decoder) list(v cue.Value, field string, fn func(i int, v cue.Value)) {
	if !v.Exists() {
		return
	}
	iter, err := v.List()
	if err != nil {
		d.errs = append(d.errs, formatCUEError(field, err))
		return
	}
	for i := 0; iter.Next(); i++ {
		fn(i, iter.Value())
	}
}

func (d *decoder) str(v cue.Value, field string) (string, bool) {
	s, err := v.String()
	if err != nil {
		d.errs = append(d.errs, formatCUEError(field, err))
		return "", false
	}
	return s, true
}

func (d *decoder) int64(v cue.Value, field string) (int64, bool) {
	n, err := v.Int64()
	if err != nil {
		d.errs = append(d.errs, formatCUEError(field, err))
		return 0, false
	}
	return n, true
}

func (d *decoder) strings(v cue.Value, field string) []string {
	var out []string
	d.list(v, field, func(i int, e cue.Value) {
		if s, ok := d.str(e, fmt.Sprintf("%s[%d]", field, i)); ok {
			out = append(out, s)
		}
	})
	return out
}

// value decodes a concrete bool or int.
func (d *decoder) value(v cue.Value, field string) (ir.Value, bool) {
	switch v.Kind() {
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			d.errs = append(d.errs, formatCUEError(field, err))
			return ir.Value{}, false
		}
		return ir.Bool(b), true
	case cue.IntKind:
		n, ok := d.int64(v, field)
		return ir.Int(n), ok
	}
	d.fail(v, field, "initial value must be a bool or an int, got %s", v.IncompleteKind())
	return ir.Value{}, false
}

// expr parses an expression held in a CUE string. Plain bool and int
// values are accepted as constants.
func (d *decoder) expr(v cue.Value, field string) (cs.Expr, bool) {
	switch v.Kind() {
	case cue.BoolKind, cue.IntKind:
		val, ok := d.value(v, field)
		return cs.Const(val), ok
	}
	src, ok := d.str(v, field)
	if !ok {
		return cs.Expr{}, false
	}
	e, err := ParseExpr(src)
	if err != nil {
		msg := err.Error()
		var ce *CompileError
		if errors.As(err, &ce) {
			msg = ce.Message
		}
		d.fail(v, field, "%s: %s", src, msg)
		return cs.Expr{}, false
	}
	return e, true
}

// CompileModel decodes the value of the top-level model field and builds the
// Channel System. Decoding problems are *CompileError values with CUE
// positions; semantic problems are cs.ModelErrors from the builder.
func CompileModel(v cue.Value) (*cs.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError("model", err)
	}

	d := &decoder{}
	b := cs.NewBuilder()
	d.known(v, "model", "globals", "channels", "processes", "syncs")

	d.fields(lookup(v, "globals"), "model.globals", func(name string, gv cue.Value) {
		if val, ok := d.value(gv, "model.globals."+name); ok {
			b.Global(name, val)
		}
	})

	d.fields(lookup(v, "channels"), "model.channels", func(name string, cv cue.Value) {
		d.channel(b, name, cv)
	})

	d.fields(lookup(v, "processes"), "model.processes", func(name string, pv cue.Value) {
		d.process(b.Process(name), "model.processes."+name, pv)
	})

	d.fields(lookup(v, "syncs"), "model.syncs", func(name string, sv cue.Value) {
		var parts []cs.Participant
		d.fields(sv, "model.syncs."+name, func(proc string, av cue.Value) {
			if action, ok := d.str(av, "model.syncs."+name+"."+proc); ok {
				parts = append(parts, cs.Participant{Process: proc, Action: action})
			}
		})
		b.Sync(name, parts...)
	})

	if err := d.err(); err != nil {
		return nil, err
	}
	return b.Build()
}

func (d *decoder) channel(b *cs.Builder, name string, v cue.Value) {
	field := "model.channels." + name
	d.known(v, field, "type", "capacity")

	kind := ir.KindInt
	if tv := lookup(v, "type"); tv.Exists() {
		s, ok := d.str(tv, field+".type")
		if !ok {
			return
		}
		k, err := ir.ParseKind(s)
		if err != nil {
			d.fail(tv, field+".type", "%v", err)
			return
		}
		kind = k
	}

	capacity := cs.Unbounded
	if cv := lookup(v, "capacity"); cv.Exists() {
		n, ok := d.int64(cv, field+".capacity")
		if !ok {
			return
		}
		capacity = int(n)
	}
	b.Channel(name, kind, capacity)
}

func (d *decoder) process(p *cs.ProcessBuilder, field string, v cue.Value) {
	d.known(v, field, "locals", "clocks", "initial", "locations", "transitions")

	d.fields(lookup(v, "locals"), field+".locals", func(name string, lv cue.Value) {
		if val, ok := d.value(lv, field+".locals."+name); ok {
			p.Local(name, val)
		}
	})
	for _, c := range d.strings(lookup(v, "clocks"), field+".clocks") {
		p.Clock(c)
	}

	d.fields(lookup(v, "locations"), field+".locations", func(name string, lv cue.Value) {
		lfield := field + ".locations." + name
		d.known(lv, lfield, "invariant")
		p.Location(name, d.clockSpecs(lookup(lv, "invariant"), lfield+".invariant")...)
	})
	if iv := lookup(v, "initial"); iv.Exists() {
		if name, ok := d.str(iv, field+".initial"); ok {
			p.Initial(name)
		}
	}

	d.list(lookup(v, "transitions"), field+".transitions", func(i int, tv cue.Value) {
		if spec, ok := d.transition(tv, fmt.Sprintf("%s.transitions[%d]", field, i)); ok {
			p.Transition(spec)
		}
	})
}

func (d *decoder) clockSpecs(v cue.Value, field string) []cs.ClockSpec {
	var out []cs.ClockSpec
	d.list(v, field, func(i int, cv cue.Value) {
		cfield := fmt.Sprintf("%s[%d]", field, i)
		d.known(cv, cfield, "clock", "lower", "upper")
		var spec cs.ClockSpec
		name, ok := d.str(lookup(cv, "clock"), cfield+".clock")
		if !ok {
			return
		}
		spec.Clock = name
		if lv := lookup(cv, "lower"); lv.Exists() {
			if spec.Lower, ok = d.int64(lv, cfield+".lower"); !ok {
				return
			}
		}
		if uv := lookup(cv, "upper"); uv.Exists() {
			hi, ok := d.int64(uv, cfield+".upper")
			if !ok {
				return
			}
			spec.Upper = &hi
		}
		out = append(out, spec)
	})
	return out
}

func (d *decoder) assignments(v cue.Value, field string) []cs.AssignSpec {
	var out []cs.AssignSpec
	d.fields(v, field, func(name string, ev cue.Value) {
		if e, ok := d.expr(ev, field+"."+name); ok {
			out = append(out, cs.Assign(name, e))
		}
	})
	return out
}

func (d *decoder) transition(v cue.Value, field string) (cs.TransitionSpec, bool) {
	before := len(d.errs)
	d.known(v, field, "from", "action", "guard", "when", "assign", "reset", "to", "branches",
		"send", "receive", "probe_empty", "probe_full")

	var spec cs.TransitionSpec
	spec.From, _ = d.str(lookup(v, "from"), field+".from")
	if av := lookup(v, "action"); av.Exists() {
		spec.Action, _ = d.str(av, field+".action")
	}
	if gv := lookup(v, "guard"); gv.Exists() {
		if g, ok := d.expr(gv, field+".guard"); ok {
			spec.Guard = &g
		}
	}
	spec.When = d.clockSpecs(lookup(v, "when"), field+".when")
	spec.Assign = d.assignments(lookup(v, "assign"), field+".assign")
	spec.Reset = d.strings(lookup(v, "reset"), field+".reset")
	if tv := lookup(v, "to"); tv.Exists() {
		spec.To, _ = d.str(tv, field+".to")
	}

	d.list(lookup(v, "branches"), field+".branches", func(i int, bv cue.Value) {
		bfield := fmt.Sprintf("%s.branches[%d]", field, i)
		d.known(bv, bfield, "weight", "to", "assign", "reset")
		br := cs.BranchSpec{Weight: 1}
		if wv := lookup(bv, "weight"); wv.Exists() {
			w, err := wv.Float64()
			if err != nil {
				d.errs = append(d.errs, formatCUEError(bfield+".weight", err))
			}
			br.Weight = w
		}
		br.To, _ = d.str(lookup(bv, "to"), bfield+".to")
		br.Assign = d.assignments(lookup(bv, "assign"), bfield+".assign")
		br.Reset = d.strings(lookup(bv, "reset"), bfield+".reset")
		spec.Branches = append(spec.Branches, br)
	})

	spec.Comm = d.comm(v, field)
	return spec, len(d.errs) == before
}

// comm decodes the at most one channel operation of a transition.
func (d *decoder) comm(v cue.Value, field string) *cs.CommSpec {
	var ops []*cs.CommSpec

	if sv := lookup(v, "send"); sv.Exists() {
		d.known(sv, field+".send", "channel", "value")
		ch, _ := d.str(lookup(sv, "channel"), field+".send.channel")
		if e, ok := d.expr(lookup(sv, "value"), field+".send.value"); ok {
			ops = append(ops, cs.Send(ch, e))
		}
	}
	if rv := lookup(v, "receive"); rv.Exists() {
		d.known(rv, field+".receive", "channel", "var")
		ch, _ := d.str(lookup(rv, "channel"), field+".receive.channel")
		target, _ := d.str(lookup(rv, "var"), field+".receive.var")
		ops = append(ops, cs.Receive(ch, target))
	}
	if pv := lookup(v, "probe_empty"); pv.Exists() {
		if ch, ok := d.str(pv, field+".probe_empty"); ok {
			ops = append(ops, cs.ProbeEmpty(ch))
		}
	}
	if pv := lookup(v, "probe_full"); pv.Exists() {
		if ch, ok := d.str(pv, field+".probe_full"); ok {
			ops = append(ops, cs.ProbeFull(ch))
		}
	}

	switch len(ops) {
	case 0:
		return nil
	case 1:
		return ops[0]
	}
	d.fail(v, field, "a transition performs at most one channel operation, got %d", len(ops))
	return nil
}
