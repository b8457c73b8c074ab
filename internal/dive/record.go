package dive

import (
	"fmt"
	"maps"
	"slices"
)

// Header identifies one dive.
type Header struct {
	Version       string  `json:"version"`
	GliderID      string  `json:"glider_id"`
	MissionNumber int     `json:"mission_number"`
	DiveNumber    int     `json:"dive_number"`
	StartTime     float64 `json:"start_time"` // seconds since epoch
}

func (h Header) String() string {
	return fmt.Sprintf("sg%s mission %d dive %d", h.GliderID, h.MissionNumber, h.DiveNumber)
}

// Encoding is the storage shape of a compound parameter inside a record.
type Encoding int

const (
	// Nested stores the compound as a struct: member name -> value.
	Nested Encoding = iota
	// Matrix stores the compound as a 1xN numeric row in record-local member order.
	Matrix
	// Flattened stores each member as a sibling scalar named <field>_<member>.
	Flattened
)

func (e Encoding) String() string {
	switch e {
	case Nested:
		return "nested"
	case Matrix:
		return "matrix"
	case Flattened:
		return "flattened"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// ParseEncoding maps the textual encoding name back to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "nested", "struct":
		return Nested, nil
	case "matrix", "array":
		return Matrix, nil
	case "flattened", "merged":
		return Flattened, nil
	}
	return 0, fmt.Errorf("unknown compound encoding %q", s)
}

// Compound is a parameter with an ordered set of named members.
// Which of Fields and Row is populated depends on Encoding; a Flattened
// compound carries neither and is resolved against the record's scalars.
type Compound struct {
	Encoding Encoding
	Members  []string
	Fields   map[string]Value // Nested
	Row      []float64        // Matrix
}

// MemberName joins a compound field and a member into the flattened name.
func MemberName(field, member string) string {
	return field + "_" + member
}

// Resolve returns the record-local member list and one value per member.
// scalars supplies the sibling values for the Flattened encoding. Members
// with no stored value resolve to the numeric sentinel.
func (c Compound) Resolve(field string, scalars map[string]Value) ([]string, []Value) {
	values := make([]Value, len(c.Members))
	for i := range c.Members {
		v, ok := c.At(field, i, scalars)
		if !ok {
			v = Sentinel(KindNumber)
		}
		values[i] = v
	}
	return c.Members, values
}

// At returns the value stored for the i-th record-local member, and whether
// the record actually holds one.
func (c Compound) At(field string, i int, scalars map[string]Value) (Value, bool) {
	if i < 0 || i >= len(c.Members) {
		return Value{}, false
	}
	member := c.Members[i]
	switch c.Encoding {
	case Nested:
		v, ok := c.Fields[member]
		return v, ok
	case Matrix:
		if i < len(c.Row) {
			return Number(c.Row[i]), true
		}
	case Flattened:
		v, ok := scalars[MemberName(field, member)]
		return v, ok
	}
	return Value{}, false
}

// Table is a small column-named table of event rows, as logged once per
// dive for guidance cycles, state transitions and GPS fixes.
type Table struct {
	Columns []string
	Rows    [][]Value
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	return slices.Index(t.Columns, name)
}

// Len returns the number of rows. A nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Record is the parsed content of one dive log file.
type Record struct {
	Header           Header
	StartTimeSeconds float64
	Scalars          map[string]Value
	Compounds        map[string]Compound
	Blocks           map[string]*Table
	SourceName       string
	Devices          []string
	Sensors          []string
}

// Snapshot carries raw values for a record when an upstream parser keeps
// dive metadata and dive values apart.
type Snapshot struct {
	Scalars   map[string]Value
	Compounds map[string]Compound
	Blocks    map[string]*Table
}

// Clone returns a copy of r whose maps and lists can be changed without
// touching r. Tables and compound payloads are shared; they are never
// written through a clone.
func (r Record) Clone() Record {
	out := r
	out.Scalars = maps.Clone(r.Scalars)
	out.Compounds = maps.Clone(r.Compounds)
	out.Blocks = maps.Clone(r.Blocks)
	out.Devices = slices.Clone(r.Devices)
	out.Sensors = slices.Clone(r.Sensors)
	return out
}

// WithSnapshot returns a clone of r with s overlaid. Entries in s replace
// entries of the same name in r.
func (r Record) WithSnapshot(s Snapshot) Record {
	out := r.Clone()
	if len(s.Scalars) > 0 && out.Scalars == nil {
		out.Scalars = make(map[string]Value, len(s.Scalars))
	}
	maps.Copy(out.Scalars, s.Scalars)
	if len(s.Compounds) > 0 && out.Compounds == nil {
		out.Compounds = make(map[string]Compound, len(s.Compounds))
	}
	maps.Copy(out.Compounds, s.Compounds)
	if len(s.Blocks) > 0 && out.Blocks == nil {
		out.Blocks = make(map[string]*Table, len(s.Blocks))
	}
	maps.Copy(out.Blocks, s.Blocks)
	return out
}
