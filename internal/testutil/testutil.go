// Package testutil provides shared test utilities and fixtures.
//
// RecordBuilder assembles glider dive records for tests of the merge
// engine, the codec, the store and the HTTP API without hand-writing map
// literals in every test.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/glider-logs/internal/dive"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// RecordBuilder assembles a dive.Record.
type RecordBuilder struct {
	r dive.Record
}

// NewRecord starts a record for the given mission and dive starting at
// start epoch seconds. The source name follows the basestation pattern.
func NewRecord(mission, diveNum int, start float64) *RecordBuilder {
	return &RecordBuilder{r: dive.Record{
		Header: dive.Header{
			Version:       "66.12",
			GliderID:      "523",
			MissionNumber: mission,
			DiveNumber:    diveNum,
			StartTime:     start,
		},
		StartTimeSeconds: start,
		Scalars:          map[string]dive.Value{},
		Compounds:        map[string]dive.Compound{},
		Blocks:           map[string]*dive.Table{},
		SourceName:       fmt.Sprintf("p523%04d.log", diveNum),
	}}
}

// Scalar sets a numeric scalar.
func (b *RecordBuilder) Scalar(name string, v float64) *RecordBuilder {
	b.r.Scalars[name] = dive.Number(v)
	return b
}

// Text sets a text scalar.
func (b *RecordBuilder) Text(name, v string) *RecordBuilder {
	b.r.Scalars[name] = dive.Text(v)
	return b
}

// Nested adds a struct-valued compound. values pair up with members.
func (b *RecordBuilder) Nested(field string, members []string, values ...float64) *RecordBuilder {
	fields := make(map[string]dive.Value, len(members))
	for i, m := range members {
		if i < len(values) {
			fields[m] = dive.Number(values[i])
		}
	}
	b.r.Compounds[field] = dive.Compound{Encoding: dive.Nested, Members: members, Fields: fields}
	return b
}

// Matrix adds a matrix-valued compound with a single row.
func (b *RecordBuilder) Matrix(field string, members []string, row ...float64) *RecordBuilder {
	b.r.Compounds[field] = dive.Compound{Encoding: dive.Matrix, Members: members, Row: row}
	return b
}

// Flattened adds a compound stored as <field>_<member> scalar siblings.
func (b *RecordBuilder) Flattened(field string, members []string, values ...float64) *RecordBuilder {
	for i, m := range members {
		if i < len(values) {
			b.r.Scalars[dive.MemberName(field, m)] = dive.Number(values[i])
		}
	}
	b.r.Compounds[field] = dive.Compound{Encoding: dive.Flattened, Members: members}
	return b
}

// Block adds an event table with numeric rows.
func (b *RecordBuilder) Block(name string, columns []string, rows ...[]float64) *RecordBuilder {
	t := &dive.Table{Columns: columns, Rows: make([][]dive.Value, len(rows))}
	for i, row := range rows {
		t.Rows[i] = make([]dive.Value, len(row))
		for j, v := range row {
			t.Rows[i][j] = dive.Number(v)
		}
	}
	b.r.Blocks[name] = t
	return b
}

// Source overrides the source file name.
func (b *RecordBuilder) Source(name string) *RecordBuilder {
	b.r.SourceName = name
	return b
}

// Devices sets the device list.
func (b *RecordBuilder) Devices(devices ...string) *RecordBuilder {
	b.r.Devices = devices
	return b
}

// Sensors sets the sensor list.
func (b *RecordBuilder) Sensors(sensors ...string) *RecordBuilder {
	b.r.Sensors = sensors
	return b
}

// Build returns the record.
func (b *RecordBuilder) Build() dive.Record {
	return b.r
}

// Mission returns a small two-mission campaign with ragged schemas: a GC
// compound in all three encodings, a STATE block with differing columns
// and a scalar missing from one dive.
func Mission() []dive.Record {
	const t0 = 1572942615
	return []dive.Record{
		NewRecord(1, 2, t0+3600).
			Scalar("D_TGT", 90).
			Text("MISSION_NAME", "shelf").
			Matrix("GC", []string{"b", "c"}, 2.5, 3.5).
			Block("STATE", []string{"secs", "state"}, []float64{0, 1}, []float64{40, 2}).
			Devices("SBE_CT", "Aanderaa").
			Build(),
		NewRecord(1, 1, t0).
			Scalar("D_TGT", 80).
			Scalar("T_DIVE", 30).
			Text("MISSION_NAME", "shelf").
			Nested("GC", []string{"a", "b"}, 1, 2).
			Block("STATE", []string{"secs", "state"}, []float64{0, 1}, []float64{5, 2}, []float64{30, 3}).
			Devices("SBE_CT").
			Build(),
		NewRecord(2, 1, t0+7200).
			Scalar("D_TGT", 100).
			Text("MISSION_NAME", "slope").
			Flattened("GC", []string{"a", "c"}, 10, 30).
			Block("STATE", []string{"state", "secs", "eop_code"}, []float64{1, 0, 7}).
			Sensors("wlbb2f").
			Build(),
	}
}
