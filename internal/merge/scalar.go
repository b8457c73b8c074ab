package merge

import (
	"github.com/banshee-data/glider-logs/internal/dive"
)

// mergeScalars builds one column per scalar field. The column kind is taken
// from the first dive that carries the field; dives without it keep the
// sentinel.
func mergeScalars(c *Corpus, s *Schema) Fields[*Column] {
	out := newFields[*Column]()
	n := c.Len()
	for _, name := range s.Scalars {
		pres := s.ScalarPresence[name]
		lookup := func(i int) (dive.Value, bool) {
			if !pres[i].Present {
				return dive.Value{}, false
			}
			return c.Records[i].Scalars[name], true
		}

		col := NewColumn(firstKind(n, lookup), n)
		for i := 0; i < n; i++ {
			if v, ok := lookup(i); ok {
				setLogged(col, i, v, name)
			}
		}
		out.Add(name, col)
	}
	return out
}
