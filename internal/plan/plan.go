package plan

import (
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Plan is a flat set of string constants keyed by constant name.
type Plan map[string]string

// Clone returns an independent copy of the plan.
func (p Plan) Clone() Plan {
	out := make(Plan, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the constant keys in sorted order.
func (p Plan) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeName returns the canonical (NFC) form of a plan name.
// All store lookups and catalog keys use this form.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}
