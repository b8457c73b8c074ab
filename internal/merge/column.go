package merge

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/glider-logs/internal/dive"
)

// Column is one aligned, typed column. Exactly one of Num and Text is used,
// selected by Kind.
type Column struct {
	Kind dive.Kind
	Num  []float64
	Text []string
}

// NewColumn returns a column of n sentinel values of the given kind.
func NewColumn(kind dive.Kind, n int) *Column {
	c := &Column{Kind: kind}
	if kind == dive.KindText {
		c.Text = make([]string, n)
		return c
	}
	c.Num = make([]float64, n)
	for i := range c.Num {
		c.Num[i] = math.NaN()
	}
	return c
}

// Len returns the number of entries.
func (c *Column) Len() int {
	if c.Kind == dive.KindText {
		return len(c.Text)
	}
	return len(c.Num)
}

// At returns entry i as a Value.
func (c *Column) At(i int) dive.Value {
	if c.Kind == dive.KindText {
		return dive.Text(c.Text[i])
	}
	return dive.Number(c.Num[i])
}

// Set stores v at i, converting it to the column kind. It reports whether
// a conversion was needed.
func (c *Column) Set(i int, v dive.Value) (coerced bool) {
	if v.Kind != c.Kind {
		v = v.As(c.Kind)
		coerced = true
	}
	if c.Kind == dive.KindText {
		c.Text[i] = v.Text
	} else {
		c.Num[i] = v.Num
	}
	return coerced
}

// Values returns the entries as a Value slice.
func (c *Column) Values() []dive.Value {
	out := make([]dive.Value, c.Len())
	for i := range out {
		out[i] = c.At(i)
	}
	return out
}

// Clone returns a deep copy.
func (c *Column) Clone() *Column {
	return &Column{Kind: c.Kind, Num: slices.Clone(c.Num), Text: slices.Clone(c.Text)}
}

// Table is a set of aligned columns named by member. For compound fields
// there is one row per dive; for event blocks one row per logged event.
type Table struct {
	Members []string
	Columns []*Column
	// TimeColumn names the mission-relative elapsed-time member of an
	// event block. Empty for compound tables.
	TimeColumn string
	rows       int
}

// NewTable returns a table of the given members and kinds, every cell set
// to its sentinel.
func NewTable(members []string, kinds []dive.Kind, rows int) *Table {
	t := &Table{Members: slices.Clone(members), Columns: make([]*Column, len(members)), rows: rows}
	for i := range members {
		t.Columns[i] = NewColumn(kinds[i], rows)
	}
	return t
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return t.rows }

// Column returns the column of the named member, or nil.
func (t *Table) Column(member string) *Column {
	if i := slices.Index(t.Members, member); i >= 0 {
		return t.Columns[i]
	}
	return nil
}

// Row returns row i across all members, in member order.
func (t *Table) Row(i int) []dive.Value {
	out := make([]dive.Value, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = c.At(i)
	}
	return out
}

// Kinds returns the kind of every column in member order.
func (t *Table) Kinds() []dive.Kind {
	out := make([]dive.Kind, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = c.Kind
	}
	return out
}

// Dense copies the table into a gonum matrix, rows x members. Text cells
// become NaN. An empty table yields nil since gonum has no zero-size
// matrices.
func (t *Table) Dense() *mat.Dense {
	if t.rows == 0 || len(t.Columns) == 0 {
		return nil
	}
	m := mat.NewDense(t.rows, len(t.Columns), nil)
	for j, c := range t.Columns {
		for i := 0; i < t.rows; i++ {
			if c.Kind == dive.KindText {
				m.Set(i, j, math.NaN())
				continue
			}
			m.Set(i, j, c.Num[i])
		}
	}
	return m
}

// Fields is an insertion-ordered map from field name to T.
type Fields[T any] struct {
	Names  []string
	ByName map[string]T
}

func newFields[T any]() Fields[T] {
	return Fields[T]{ByName: make(map[string]T)}
}

// Add appends name, or replaces its value if already present.
func (f *Fields[T]) Add(name string, v T) {
	if f.ByName == nil {
		f.ByName = make(map[string]T)
	}
	if _, ok := f.ByName[name]; !ok {
		f.Names = append(f.Names, name)
	}
	f.ByName[name] = v
}

// Get returns the value stored under name.
func (f Fields[T]) Get(name string) (T, bool) {
	v, ok := f.ByName[name]
	return v, ok
}

// Len returns the number of fields.
func (f Fields[T]) Len() int { return len(f.Names) }
