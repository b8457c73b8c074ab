package merge

import (
	"maps"
	"slices"

	"github.com/banshee-data/glider-logs/internal/dive"
	"github.com/banshee-data/glider-logs/internal/monitoring"
)

// Presence classifies how one dive stores one field.
type Presence struct {
	// Present is false when the dive does not carry the field at all.
	Present bool
	// Nested is true when the field is a sub-structure (struct or matrix)
	// rather than flattened <field>_<member> siblings.
	Nested bool
	// StructValued is true for a struct, false for a matrix or siblings.
	StructValued bool
}

// Schema is the unified field set of one merge. Field and member names are
// ordered by first appearance over the sorted dives; names first seen in
// the same dive are ordered lexically.
type Schema struct {
	Scalars   []string
	Compounds Fields[[]string]
	Blocks    Fields[[]string]

	// Per-field presence, one entry per dive in sorted order.
	ScalarPresence   map[string][]Presence
	CompoundPresence map[string][]Presence
	BlockPresence    map[string][]Presence

	// Ignored lists allow-list entries that matched no field or member.
	Ignored []string
}

func emptySchema() *Schema {
	return &Schema{
		Compounds:        newFields[[]string](),
		Blocks:           newFields[[]string](),
		ScalarPresence:   make(map[string][]Presence),
		CompoundPresence: make(map[string][]Presence),
		BlockPresence:    make(map[string][]Presence),
	}
}

// memberUnion accumulates member names per field in first-seen order.
type memberUnion struct {
	fields Fields[[]string]
	seen   map[string]map[string]bool
}

func newMemberUnion() *memberUnion {
	return &memberUnion{fields: newFields[[]string](), seen: make(map[string]map[string]bool)}
}

func (u *memberUnion) add(field string, members []string) {
	seen, ok := u.seen[field]
	if !ok {
		seen = make(map[string]bool)
		u.seen[field] = seen
		u.fields.Add(field, nil)
	}
	list := u.fields.ByName[field]
	for _, m := range members {
		if !seen[m] {
			seen[m] = true
			list = append(list, m)
		}
	}
	u.fields.ByName[field] = list
}

// flattenedSiblings returns the scalar names of r that hold members of a
// Flattened compound and so are not scalar fields of their own.
func flattenedSiblings(r dive.Record) map[string]bool {
	out := make(map[string]bool)
	for name, c := range r.Compounds {
		if c.Encoding != dive.Flattened {
			continue
		}
		for _, m := range c.Members {
			out[dive.MemberName(name, m)] = true
		}
	}
	return out
}

// Unify computes the schema of c restricted to params. A nil params keeps
// every field. An entry keeps a scalar or a compound/block by its own name,
// or a single member by its <field>_<member> name. Compounds and blocks
// left with no member are dropped. Entries that match nothing are recorded
// in Schema.Ignored and otherwise have no effect.
func Unify(c *Corpus, params []string) *Schema {
	n := c.Len()
	var scalars []string
	seenScalar := make(map[string]bool)
	compounds := newMemberUnion()
	blocks := newMemberUnion()
	siblings := make([]map[string]bool, n)

	for i, r := range c.Records {
		siblings[i] = flattenedSiblings(r)
		for _, name := range slices.Sorted(maps.Keys(r.Compounds)) {
			compounds.add(name, r.Compounds[name].Members)
		}
		for _, name := range slices.Sorted(maps.Keys(r.Scalars)) {
			if siblings[i][name] || seenScalar[name] {
				continue
			}
			seenScalar[name] = true
			scalars = append(scalars, name)
		}
		for _, name := range slices.Sorted(maps.Keys(r.Blocks)) {
			if t := r.Blocks[name]; t != nil {
				blocks.add(name, t.Columns)
			}
		}
	}

	s := emptySchema()
	sel := newSelector(params)
	for _, name := range scalars {
		if sel.field(name) {
			s.Scalars = append(s.Scalars, name)
		}
	}
	for _, name := range compounds.fields.Names {
		if members := sel.members(name, compounds.fields.ByName[name]); len(members) > 0 {
			s.Compounds.Add(name, members)
		}
	}
	for _, name := range blocks.fields.Names {
		if members := sel.members(name, blocks.fields.ByName[name]); len(members) > 0 {
			s.Blocks.Add(name, members)
		}
	}
	s.Ignored = sel.unmatched()
	for _, p := range s.Ignored {
		monitoring.Debugf("merge: parameter %q matches no field or member, ignored", p)
	}

	for _, name := range s.Scalars {
		pres := make([]Presence, n)
		for i, r := range c.Records {
			_, ok := r.Scalars[name]
			pres[i].Present = ok && !siblings[i][name]
		}
		s.ScalarPresence[name] = pres
	}
	for _, name := range s.Compounds.Names {
		pres := make([]Presence, n)
		for i, r := range c.Records {
			comp, ok := r.Compounds[name]
			if !ok {
				continue
			}
			pres[i] = Presence{
				Present:      true,
				Nested:       comp.Encoding != dive.Flattened,
				StructValued: comp.Encoding == dive.Nested,
			}
		}
		s.CompoundPresence[name] = pres
	}
	for _, name := range s.Blocks.Names {
		pres := make([]Presence, n)
		for i, r := range c.Records {
			if r.Blocks[name] != nil {
				pres[i] = Presence{Present: true, Nested: true}
			}
		}
		s.BlockPresence[name] = pres
	}
	return s
}

// selector applies a parameter allow-list and remembers which entries
// matched something.
type selector struct {
	all     bool
	params  []string
	allowed map[string]bool
	matched map[string]bool
}

func newSelector(params []string) *selector {
	sel := &selector{all: params == nil, params: params, allowed: make(map[string]bool), matched: make(map[string]bool)}
	for _, p := range params {
		sel.allowed[p] = true
	}
	return sel
}

func (s *selector) field(name string) bool {
	if s.all {
		return true
	}
	if s.allowed[name] {
		s.matched[name] = true
		return true
	}
	return false
}

func (s *selector) members(field string, members []string) []string {
	if s.field(field) {
		return slices.Clone(members)
	}
	var out []string
	for _, m := range members {
		if name := dive.MemberName(field, m); s.allowed[name] {
			s.matched[name] = true
			out = append(out, m)
		}
	}
	return out
}

func (s *selector) unmatched() []string {
	var out []string
	for _, p := range s.params {
		if !s.matched[p] && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
