package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/scan/internal/mtl"
)

// CompileProperties decodes the value of the top-level properties field:
// two structs, guarantees and assumes, mapping names to formula strings.
func CompileProperties(v cue.Value) (mtl.Property, error) {
	var prop mtl.Property
	if err := v.Err(); err != nil {
		return prop, formatCUEError("properties", err)
	}

	d := &decoder{}
	d.known(v, "properties", "guarantees", "assumes")
	formulas := func(section string, add func(string, *mtl.Formula) *mtl.Property) {
		field := "properties." + section
		d.fields(lookup(v, section), field, func(name string, fv cue.Value) {
			src, ok := d.str(fv, field+"."+name)
			if !ok {
				return
			}
			f, err := ParseFormula(src)
			if err != nil {
				msg := err.Error()
				if ce, ok := err.(*CompileError); ok {
					msg = ce.Message
				}
				d.fail(fv, field+"."+name, "%s: %s", src, msg)
				return
			}
			add(name, f)
		})
	}
	formulas("guarantees", prop.Guarantee)
	formulas("assumes", prop.Assume)
	return prop, d.err()
}
