package merge

import (
	"github.com/banshee-data/glider-logs/internal/dive"
)

// RecordArray is the row-major form of a Table: one record per row keyed by
// member. Members and Kinds keep the column order and types so the table
// can be rebuilt exactly.
type RecordArray struct {
	Members    []string
	Kinds      []dive.Kind
	TimeColumn string
	Rows       []map[string]dive.Value
}

// Records converts t to its row-major form.
func (t *Table) Records() *RecordArray {
	ra := &RecordArray{
		Members:    append([]string(nil), t.Members...),
		Kinds:      t.Kinds(),
		TimeColumn: t.TimeColumn,
		Rows:       make([]map[string]dive.Value, t.rows),
	}
	for i := 0; i < t.rows; i++ {
		row := make(map[string]dive.Value, len(t.Members))
		for j, m := range t.Members {
			row[m] = t.Columns[j].At(i)
		}
		ra.Rows[i] = row
	}
	return ra
}

// Table converts ra back to column-major form. A member missing from a row
// is filled with the sentinel of its column.
func (ra *RecordArray) Table() *Table {
	t := NewTable(ra.Members, ra.Kinds, len(ra.Rows))
	t.TimeColumn = ra.TimeColumn
	for i, row := range ra.Rows {
		for j, m := range ra.Members {
			if v, ok := row[m]; ok {
				t.Columns[j].Set(i, v)
			}
		}
	}
	return t
}

// Output is a formatted Dataset. Which of the collections are populated
// depends on Format:
//
//	array   Scalars, Compounds, Blocks
//	merged  Scalars (with one <field>_<member> column per compound member),
//	        Series (one <block>_<member> column per block member)
//	struct  Scalars, CompoundRecords, BlockRecords
//
// Scalar columns always have one entry per dive. Series columns have one
// entry per block row.
type Output struct {
	Format       Format
	Headers      []dive.Header
	Sources      []string
	Devices      [][]string
	Sensors      [][]string
	MissionStart float64
	Schema       *Schema

	Scalars   Fields[*Column]
	Compounds Fields[*Table]
	Blocks    Fields[*Table]
	Series    Fields[*Column]

	CompoundRecords Fields[*RecordArray]
	BlockRecords    Fields[*RecordArray]
}

// Len returns the number of dives.
func (o *Output) Len() int { return len(o.Headers) }

// FormatDataset reshapes ds into the requested view. Values are shared with
// ds, not copied, except for struct rows and for merged columns that combine
// a member with a same-named scalar.
func FormatDataset(ds *Dataset, format Format) (*Output, error) {
	f, err := ParseFormat(string(format))
	if err != nil {
		return nil, err
	}

	out := &Output{
		Format:          f,
		Headers:         ds.Headers,
		Sources:         ds.Sources,
		Devices:         ds.Devices,
		Sensors:         ds.Sensors,
		MissionStart:    ds.MissionStart,
		Schema:          ds.Schema,
		Scalars:         newFields[*Column](),
		Compounds:       newFields[*Table](),
		Blocks:          newFields[*Table](),
		Series:          newFields[*Column](),
		CompoundRecords: newFields[*RecordArray](),
		BlockRecords:    newFields[*RecordArray](),
	}
	for _, name := range ds.Scalars.Names {
		out.Scalars.Add(name, ds.Scalars.ByName[name])
	}

	switch f {
	case FormatArray:
		for _, name := range ds.Compounds.Names {
			out.Compounds.Add(name, ds.Compounds.ByName[name])
		}
		for _, name := range ds.Blocks.Names {
			out.Blocks.Add(name, ds.Blocks.ByName[name])
		}

	case FormatMerged:
		for _, name := range ds.Compounds.Names {
			explode(&out.Scalars, name, ds.Compounds.ByName[name])
		}
		for _, name := range ds.Blocks.Names {
			explode(&out.Series, name, ds.Blocks.ByName[name])
		}

	case FormatStruct:
		for _, name := range ds.Compounds.Names {
			out.CompoundRecords.Add(name, ds.Compounds.ByName[name].Records())
		}
		for _, name := range ds.Blocks.Names {
			out.BlockRecords.Add(name, ds.Blocks.ByName[name].Records())
		}
	}
	return out, nil
}

// explode adds one column per member of t under <field>_<member>. A column
// that already has that name keeps its place and is combined with the
// member: member values win and the existing column fills the rows where
// the member is absent. Neither input column is modified.
func explode(dst *Fields[*Column], field string, t *Table) {
	for j, m := range t.Members {
		name := dive.MemberName(field, m)
		col := t.Columns[j]
		if prev, ok := dst.Get(name); ok && prev.Len() == col.Len() {
			col = combine(col, prev)
		}
		dst.Add(name, col)
	}
}

// combine returns a copy of primary with its sentinel entries taken from
// fallback, converted to primary's kind.
func combine(primary, fallback *Column) *Column {
	out := primary.Clone()
	for i := 0; i < out.Len(); i++ {
		if out.At(i).IsSentinel() {
			if v := fallback.At(i); !v.IsSentinel() {
				out.Set(i, v)
			}
		}
	}
	return out
}
