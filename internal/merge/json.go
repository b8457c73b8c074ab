package merge

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/banshee-data/glider-logs/internal/dive"
)

// JSON has no NaN, so numeric sentinels are written as null.

func appendValue(buf *bytes.Buffer, v dive.Value) error {
	if v.Kind == dive.KindText {
		b, err := json.Marshal(v.Text)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
	if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
		buf.WriteString("null")
		return nil
	}
	b, err := json.Marshal(v.Num)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func appendValues(buf *bytes.Buffer, vs []dive.Value) error {
	buf.WriteByte('[')
	for i, v := range vs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := appendValue(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// MarshalJSON writes the column as a JSON array.
func (c *Column) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := appendValues(&buf, c.Values()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON writes the table with its rows in row-major order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	members, err := json.Marshal(t.Members)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"members":`)
	buf.Write(members)
	if t.TimeColumn != "" {
		tc, _ := json.Marshal(t.TimeColumn)
		buf.WriteString(`,"time_column":`)
		buf.Write(tc)
	}
	buf.WriteString(`,"rows":[`)
	for i := 0; i < t.rows; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := appendValues(&buf, t.Row(i)); err != nil {
			return nil, err
		}
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON writes the records as an array of objects keyed by member.
func (ra *RecordArray) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range ra.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		first := true
		for _, m := range ra.Members {
			v, ok := row[m]
			if !ok {
				continue
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, err := json.Marshal(m)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := appendValue(&buf, v); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalJSON writes the fields as a JSON object in insertion order.
func (f Fields[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range f.Names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.ByName[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type schemaJSON struct {
	Scalars   []string         `json:"scalars"`
	Compounds Fields[[]string] `json:"compounds"`
	Blocks    Fields[[]string] `json:"blocks"`
	Ignored   []string         `json:"ignored,omitempty"`
}

// MarshalJSON writes the field and member names; presence is omitted.
func (s *Schema) MarshalJSON() ([]byte, error) {
	scalars := s.Scalars
	if scalars == nil {
		scalars = []string{}
	}
	return json.Marshal(schemaJSON{
		Scalars:   scalars,
		Compounds: s.Compounds,
		Blocks:    s.Blocks,
		Ignored:   s.Ignored,
	})
}

type outputJSON struct {
	Format          Format                `json:"format"`
	Headers         []dive.Header         `json:"headers"`
	Sources         []string              `json:"sources"`
	Devices         [][]string            `json:"devices"`
	Sensors         [][]string            `json:"sensors"`
	MissionStart    *float64              `json:"mission_start"`
	Schema          *Schema               `json:"schema"`
	Scalars         Fields[*Column]       `json:"scalars"`
	Compounds       *Fields[*Table]       `json:"compounds,omitempty"`
	Blocks          *Fields[*Table]       `json:"blocks,omitempty"`
	Series          *Fields[*Column]      `json:"series,omitempty"`
	CompoundRecords *Fields[*RecordArray] `json:"compound_records,omitempty"`
	BlockRecords    *Fields[*RecordArray] `json:"block_records,omitempty"`
}

// MarshalJSON writes the collections that belong to the output format.
func (o *Output) MarshalJSON() ([]byte, error) {
	headers := o.Headers
	if headers == nil {
		headers = []dive.Header{}
	}
	j := outputJSON{
		Format:  o.Format,
		Headers: headers,
		Sources: o.Sources,
		Devices: o.Devices,
		Sensors: o.Sensors,
		Schema:  o.Schema,
		Scalars: o.Scalars,
	}
	if !math.IsNaN(o.MissionStart) {
		ms := o.MissionStart
		j.MissionStart = &ms
	}
	switch o.Format {
	case FormatArray:
		j.Compounds, j.Blocks = &o.Compounds, &o.Blocks
	case FormatMerged:
		j.Series = &o.Series
	case FormatStruct:
		j.CompoundRecords, j.BlockRecords = &o.CompoundRecords, &o.BlockRecords
	}
	return json.Marshal(j)
}
