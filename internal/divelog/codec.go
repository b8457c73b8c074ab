// Package divelog reads and writes the per-dive JSON documents produced by
// the upstream log parser, and loads whole directories of them.
//
// Numeric values that the glider did not log are written as null and
// decode to NaN.
package divelog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/glider-logs/internal/dive"
)

// ErrInvalidLog is wrapped by every decode failure.
var ErrInvalidLog = errors.New("invalid dive log")

type recordJSON struct {
	Header    dive.Header                `json:"header"`
	StartTime *float64                   `json:"start_time,omitempty"`
	Source    string                     `json:"source,omitempty"`
	Devices   []string                   `json:"devices,omitempty"`
	Sensors   []string                   `json:"sensors,omitempty"`
	Scalars   map[string]json.RawMessage `json:"scalars,omitempty"`
	Compounds map[string]compoundJSON    `json:"compounds,omitempty"`
	Blocks    map[string]blockJSON       `json:"blocks,omitempty"`
}

type snapshotJSON struct {
	Scalars   map[string]json.RawMessage `json:"scalars,omitempty"`
	Compounds map[string]compoundJSON    `json:"compounds,omitempty"`
	Blocks    map[string]blockJSON       `json:"blocks,omitempty"`
}

type compoundJSON struct {
	Encoding string                     `json:"encoding"`
	Members  []string                   `json:"members"`
	Values   map[string]json.RawMessage `json:"values,omitempty"`
	Row      []*float64                 `json:"row,omitempty"`
}

type blockJSON struct {
	Columns []string            `json:"columns"`
	Rows    [][]json.RawMessage `json:"rows"`
}

// Decode parses one dive document. start_time defaults to the header's
// start time when omitted.
func Decode(data []byte) (dive.Record, error) {
	var rj recordJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rj); err != nil {
		return dive.Record{}, fmt.Errorf("%w: %v", ErrInvalidLog, err)
	}

	r := dive.Record{
		Header:           rj.Header,
		StartTimeSeconds: rj.Header.StartTime,
		SourceName:       rj.Source,
		Devices:          rj.Devices,
		Sensors:          rj.Sensors,
	}
	if rj.StartTime != nil {
		r.StartTimeSeconds = *rj.StartTime
	}

	var err error
	if r.Scalars, err = decodeScalars(rj.Scalars); err != nil {
		return dive.Record{}, err
	}
	if r.Compounds, err = decodeCompounds(rj.Compounds); err != nil {
		return dive.Record{}, err
	}
	if r.Blocks, err = decodeBlocks(rj.Blocks); err != nil {
		return dive.Record{}, err
	}
	return r, nil
}

// DecodeSnapshot parses a raw-value snapshot: the scalars, compounds and
// blocks sections of a dive document without header information.
func DecodeSnapshot(data []byte) (dive.Snapshot, error) {
	var sj snapshotJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sj); err != nil {
		return dive.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidLog, err)
	}

	var s dive.Snapshot
	var err error
	if s.Scalars, err = decodeScalars(sj.Scalars); err != nil {
		return dive.Snapshot{}, err
	}
	if s.Compounds, err = decodeCompounds(sj.Compounds); err != nil {
		return dive.Snapshot{}, err
	}
	if s.Blocks, err = decodeBlocks(sj.Blocks); err != nil {
		return dive.Snapshot{}, err
	}
	return s, nil
}

// Encode writes r as a dive document.
func Encode(r dive.Record) ([]byte, error) {
	start := r.StartTimeSeconds
	rj := recordJSON{
		Header:    r.Header,
		StartTime: &start,
		Source:    r.SourceName,
		Devices:   r.Devices,
		Sensors:   r.Sensors,
		Scalars:   make(map[string]json.RawMessage, len(r.Scalars)),
		Compounds: make(map[string]compoundJSON, len(r.Compounds)),
		Blocks:    make(map[string]blockJSON, len(r.Blocks)),
	}
	for name, v := range r.Scalars {
		rj.Scalars[name] = encodeValue(v)
	}
	for name, c := range r.Compounds {
		cj := compoundJSON{Encoding: c.Encoding.String(), Members: c.Members}
		switch c.Encoding {
		case dive.Nested:
			cj.Values = make(map[string]json.RawMessage, len(c.Fields))
			for m, v := range c.Fields {
				cj.Values[m] = encodeValue(v)
			}
		case dive.Matrix:
			cj.Row = make([]*float64, len(c.Row))
			for i, v := range c.Row {
				if !math.IsNaN(v) {
					cj.Row[i] = &v
				}
			}
		}
		rj.Compounds[name] = cj
	}
	for name, t := range r.Blocks {
		if t == nil {
			continue
		}
		bj := blockJSON{Columns: t.Columns, Rows: make([][]json.RawMessage, len(t.Rows))}
		for i, row := range t.Rows {
			bj.Rows[i] = make([]json.RawMessage, len(row))
			for j, v := range row {
				bj.Rows[i][j] = encodeValue(v)
			}
		}
		rj.Blocks[name] = bj
	}
	return json.MarshalIndent(rj, "", "  ")
}

func decodeValue(raw json.RawMessage) (dive.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return dive.Sentinel(dive.KindNumber), nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return dive.Value{}, err
		}
		return dive.Text(s), nil
	case '{', '[', 't', 'f':
		return dive.Value{}, fmt.Errorf("unsupported value %s", raw)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return dive.Value{}, err
	}
	return dive.Number(f), nil
}

func encodeValue(v dive.Value) json.RawMessage {
	if v.Kind == dive.KindText {
		b, _ := json.Marshal(v.Text)
		return b
	}
	if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
		return json.RawMessage("null")
	}
	b, _ := json.Marshal(v.Num)
	return b
}

func decodeScalars(in map[string]json.RawMessage) (map[string]dive.Value, error) {
	out := make(map[string]dive.Value, len(in))
	for name, raw := range in {
		v, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: scalar %s: %v", ErrInvalidLog, name, err)
		}
		out[name] = v
	}
	return out, nil
}

func decodeCompounds(in map[string]compoundJSON) (map[string]dive.Compound, error) {
	out := make(map[string]dive.Compound, len(in))
	for name, cj := range in {
		enc, err := dive.ParseEncoding(cj.Encoding)
		if err != nil {
			return nil, fmt.Errorf("%w: compound %s: %v", ErrInvalidLog, name, err)
		}
		c := dive.Compound{Encoding: enc, Members: cj.Members}
		switch enc {
		case dive.Nested:
			c.Fields = make(map[string]dive.Value, len(cj.Values))
			for m, raw := range cj.Values {
				v, err := decodeValue(raw)
				if err != nil {
					return nil, fmt.Errorf("%w: compound %s member %s: %v", ErrInvalidLog, name, m, err)
				}
				c.Fields[m] = v
			}
		case dive.Matrix:
			if len(cj.Row) > len(cj.Members) {
				return nil, fmt.Errorf("%w: compound %s has %d values for %d members", ErrInvalidLog, name, len(cj.Row), len(cj.Members))
			}
			c.Row = make([]float64, len(cj.Row))
			for i, v := range cj.Row {
				c.Row[i] = math.NaN()
				if v != nil {
					c.Row[i] = *v
				}
			}
		}
		out[name] = c
	}
	return out, nil
}

func decodeBlocks(in map[string]blockJSON) (map[string]*dive.Table, error) {
	out := make(map[string]*dive.Table, len(in))
	for name, bj := range in {
		t := &dive.Table{Columns: bj.Columns, Rows: make([][]dive.Value, len(bj.Rows))}
		for i, row := range bj.Rows {
			if len(row) > len(bj.Columns) {
				return nil, fmt.Errorf("%w: block %s row %d has %d cells for %d columns", ErrInvalidLog, name, i, len(row), len(bj.Columns))
			}
			t.Rows[i] = make([]dive.Value, len(row))
			for j, raw := range row {
				v, err := decodeValue(raw)
				if err != nil {
					return nil, fmt.Errorf("%w: block %s row %d: %v", ErrInvalidLog, name, i, err)
				}
				t.Rows[i][j] = v
			}
		}
		out[name] = t
	}
	return out, nil
}
