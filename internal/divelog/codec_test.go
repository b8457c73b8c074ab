package divelog

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/glider-logs/internal/dive"
	"github.com/banshee-data/glider-logs/internal/fsutil"
	"github.com/banshee-data/glider-logs/internal/merge"
	"github.com/banshee-data/glider-logs/internal/testutil"
)

const sampleDive = `{
  "header": {"version": "66.12", "glider_id": "523", "mission_number": 4, "dive_number": 17, "start_time": 1572942615},
  "source": "p5230017.log",
  "devices": ["SBE_CT"],
  "scalars": {"D_TGT": 90, "MISSION_NAME": "shelf", "T_MISSION": null, "GC_a": 1.5},
  "compounds": {
    "SM_CCo": {"encoding": "nested", "members": ["x", "y"], "values": {"x": 2, "y": null}},
    "MHEAD_RNG_PITCHd_Wd": {"encoding": "matrix", "members": ["mhead", "rng", "pitch"], "row": [270, null, -17.5]},
    "GC": {"encoding": "flattened", "members": ["a"]}
  },
  "blocks": {"STATE": {"columns": ["secs", "state"], "rows": [[0, "begin dive"], [120, "end dive"]]}}
}`

func TestDecode(t *testing.T) {
	t.Parallel()

	r, err := Decode([]byte(sampleDive))
	require.NoError(t, err)

	assert.Equal(t, 4, r.Header.MissionNumber)
	assert.Equal(t, 17, r.Header.DiveNumber)
	assert.Equal(t, 1572942615.0, r.StartTimeSeconds)
	assert.Equal(t, "p5230017.log", r.SourceName)
	assert.Equal(t, []string{"SBE_CT"}, r.Devices)

	assert.Equal(t, dive.Number(90), r.Scalars["D_TGT"])
	assert.Equal(t, dive.Text("shelf"), r.Scalars["MISSION_NAME"])
	assert.True(t, r.Scalars["T_MISSION"].IsSentinel())

	sm := r.Compounds["SM_CCo"]
	assert.Equal(t, dive.Nested, sm.Encoding)
	assert.Equal(t, dive.Number(2), sm.Fields["x"])
	assert.True(t, math.IsNaN(sm.Fields["y"].Num))

	mh := r.Compounds["MHEAD_RNG_PITCHd_Wd"]
	assert.Equal(t, dive.Matrix, mh.Encoding)
	require.Len(t, mh.Row, 3)
	assert.True(t, math.IsNaN(mh.Row[1]))
	assert.Equal(t, -17.5, mh.Row[2])

	_, values := r.Compounds["GC"].Resolve("GC", r.Scalars)
	assert.Equal(t, []dive.Value{dive.Number(1.5)}, values)

	state := r.Blocks["STATE"]
	require.Equal(t, 2, state.Len())
	assert.Equal(t, dive.Text("end dive"), state.Rows[1][1])
}

func TestDecode_StartTimeOverride(t *testing.T) {
	t.Parallel()

	r, err := Decode([]byte(`{"header": {"mission_number": 1, "dive_number": 1, "start_time": 10}, "start_time": 12.5}`))
	require.NoError(t, err)
	assert.Equal(t, 12.5, r.StartTimeSeconds)
	assert.Equal(t, 10.0, r.Header.StartTime)
	assert.NotNil(t, r.Scalars)
	assert.NotNil(t, r.Blocks)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"not_json", `{"header":`},
		{"unknown_field", `{"header": {}, "colour": "red"}`},
		{"bad_encoding", `{"compounds": {"GC": {"encoding": "tensor", "members": []}}}`},
		{"object_scalar", `{"scalars": {"X": {"nested": 1}}}`},
		{"bool_scalar", `{"scalars": {"X": true}}`},
		{"long_matrix_row", `{"compounds": {"GC": {"encoding": "matrix", "members": ["a"], "row": [1, 2]}}}`},
		{"long_block_row", `{"blocks": {"GPS": {"columns": ["lat"], "rows": [[1, 2]]}}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.doc))
			assert.ErrorIs(t, err, ErrInvalidLog)
		})
	}
}

func TestDecodeSnapshot(t *testing.T) {
	t.Parallel()

	s, err := DecodeSnapshot([]byte(`{"scalars": {"X": 3}, "blocks": {"GPS": {"columns": ["lat"], "rows": [[48.5]]}}}`))
	require.NoError(t, err)
	assert.Equal(t, dive.Number(3), s.Scalars["X"])
	assert.Equal(t, 1, s.Blocks["GPS"].Len())

	_, err = DecodeSnapshot([]byte(`{"header": {}}`))
	assert.ErrorIs(t, err, ErrInvalidLog)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	opts := []cmp.Option{cmpopts.EquateNaNs(), cmpopts.EquateEmpty()}
	for _, r := range testutil.Mission() {
		data, err := Encode(r)
		require.NoError(t, err)
		back, err := Decode(data)
		require.NoError(t, err)
		if diff := cmp.Diff(r, back, opts...); diff != "" {
			t.Errorf("%s: round trip mismatch (-want +got):\n%s", r.Header, diff)
		}
	}
}

func TestEncode_NaNAsNull(t *testing.T) {
	t.Parallel()

	r := testutil.NewRecord(1, 1, 100).Scalar("X", math.NaN()).Matrix("M", []string{"a", "b"}, math.NaN(), 1).Build()
	data, err := Encode(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"X": null`)
	assert.Contains(t, string(data), "null,\n")
}

func TestLoadDir(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	for _, r := range testutil.Mission() {
		r.SourceName = ""
		path := "/logs/" + r.Header.String() + ".json"
		require.NoError(t, WriteFile(mfs, path, r))
	}
	require.NoError(t, mfs.WriteFile("/logs/README.txt", []byte("not a dive"), 0o644))
	require.NoError(t, mfs.WriteFile("/logs/old/p5239999.json", []byte("{"), 0o644))

	records, err := LoadDir(mfs, "/logs")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "sg523 mission 1 dive 1.json", records[0].SourceName)

	out, err := merge.Merge(records)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())
	gc, ok := out.Compounds.Get("GC")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, gc.Members)
}

func TestLoadDir_Errors(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	_, err := LoadDir(mfs, "/missing")
	assert.Error(t, err)

	require.NoError(t, mfs.WriteFile("/logs/bad.json", []byte(`{"scalars": {"X": [1]}}`), 0o644))
	_, err = LoadDir(mfs, "/logs")
	assert.ErrorIs(t, err, ErrInvalidLog)
	assert.Contains(t, err.Error(), "/logs/bad.json")
}

func TestLoadFile_OS(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/p5230017.json"
	r, err := Decode([]byte(sampleDive))
	require.NoError(t, err)
	require.NoError(t, WriteFile(fsutil.OSFileSystem{}, path, r))

	back, err := LoadFile(fsutil.OSFileSystem{}, path)
	require.NoError(t, err)
	assert.Equal(t, r.Header, back.Header)
	assert.Equal(t, "p5230017.log", back.SourceName)
}
