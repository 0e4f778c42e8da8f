package mtl

import (
	"github.com/roach88/scan/internal/ir"
)

// Named is a formula with the name it was declared under.
type Named struct {
	Name    string
	Formula *Formula
}

// Property is what a run is checked against. A run satisfies the property if
// every guarantee holds. A run on which some assume is violated says nothing
// about the guarantees and is discarded.
type Property struct {
	Guarantees []Named
	Assumes    []Named
}

// Guarantee appends a guarantee and returns the property for chaining.
func (p *Property) Guarantee(name string, f *Formula) *Property {
	p.Guarantees = append(p.Guarantees, Named{Name: name, Formula: f})
	return p
}

// Assume appends an assumption and returns the property for chaining.
func (p *Property) Assume(name string, f *Formula) *Property {
	p.Assumes = append(p.Assumes, Named{Name: name, Formula: f})
	return p
}

// Describe returns the canonical-JSON-safe description of the property.
func (p Property) Describe() map[string]any {
	describe := func(list []Named) map[string]string {
		out := make(map[string]string, len(list))
		for _, n := range list {
			out[n.Name] = n.Formula.String()
		}
		return out
	}
	return map[string]any{
		"guarantees": describe(p.Guarantees),
		"assumes":    describe(p.Assumes),
	}
}

// Fingerprint returns the content hash of the property.
func (p Property) Fingerprint() (string, error) {
	return ir.Fingerprint(ir.DomainProperty, p.Describe())
}
