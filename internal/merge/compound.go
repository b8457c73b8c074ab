package merge

import (
	"github.com/banshee-data/glider-logs/internal/dive"
)

// mergeCompounds builds a dives x members table per compound field. Each
// dive's own member order is mapped onto the unified order by name, so the
// nested, matrix and flattened encodings all land in the same cells.
func mergeCompounds(c *Corpus, s *Schema) Fields[*Table] {
	out := newFields[*Table]()
	n := c.Len()
	for _, name := range s.Compounds.Names {
		members := s.Compounds.ByName[name]
		unified := indexOf(members)

		// Pass 1: record-local member positions and the column kinds.
		local := make([][]int, n)
		kinds := make([]dive.Kind, len(members))
		kindSet := make([]bool, len(members))
		for i, r := range c.Records {
			comp, ok := r.Compounds[name]
			if !ok {
				continue
			}
			local[i] = make([]int, len(comp.Members))
			for j, m := range comp.Members {
				col, ok := unified[m]
				if !ok {
					local[i][j] = -1 // filtered out
					continue
				}
				local[i][j] = col
				if kindSet[col] {
					continue
				}
				if v, ok := comp.At(name, j, r.Scalars); ok {
					kinds[col] = v.Kind
					kindSet[col] = true
				}
			}
		}

		// Pass 2: scatter each dive into its row.
		t := NewTable(members, kinds, n)
		for i, r := range c.Records {
			comp, ok := r.Compounds[name]
			if !ok {
				continue
			}
			for j, col := range local[i] {
				if col < 0 {
					continue
				}
				if v, ok := comp.At(name, j, r.Scalars); ok {
					setLogged(t.Columns[col], i, v, dive.MemberName(name, members[col]))
				}
			}
		}
		out.Add(name, t)
	}
	return out
}

func indexOf(names []string) map[string]int {
	idx := make(map[string]int, len(names))
	for i, name := range names {
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return idx
}
