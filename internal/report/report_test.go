package report

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/glider-logs/internal/dive"
	"github.com/banshee-data/glider-logs/internal/merge"
	"github.com/banshee-data/glider-logs/internal/testutil"
)

func missionDataset(t *testing.T) *merge.Dataset {
	t.Helper()
	ds, err := merge.Build(testutil.Mission(), nil, merge.DefaultOptions())
	require.NoError(t, err)
	return ds
}

func TestBlockSummary(t *testing.T) {
	t.Parallel()

	got, err := BlockSummary(missionDataset(t), "STATE")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, ColumnSummary{Member: "secs", Count: 6, Min: 0, Max: 7200, Mean: (0 + 5 + 30 + 3600 + 3640 + 7200) / 6.0}, got[0])
	assert.Equal(t, "state", got[1].Member)
	assert.Equal(t, 1.0, got[1].Min)
	assert.Equal(t, 3.0, got[1].Max)

	// eop_code is only logged by the last dive.
	assert.Equal(t, 1, got[2].Count)
	assert.Equal(t, 7.0, got[2].Mean)

	_, err = BlockSummary(missionDataset(t), "GPS")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestTableSummary_AllMissingAndText(t *testing.T) {
	t.Parallel()

	tbl := merge.NewTable([]string{"x", "label"}, []dive.Kind{dive.KindNumber, dive.KindText}, 2)
	got := TableSummary(tbl)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Count)
	assert.True(t, math.IsNaN(got[0].Min))
	assert.True(t, math.IsNaN(got[0].Mean))

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"member":"x","count":0,"min":null,"max":null,"mean":null}]`, string(data))
}

func TestTableSummary_Compound(t *testing.T) {
	t.Parallel()

	gc, ok := missionDataset(t).Compounds.Get("GC")
	require.True(t, ok)
	got := TableSummary(gc)
	require.Len(t, got, 3)
	assert.Equal(t, ColumnSummary{Member: "a", Count: 2, Min: 1, Max: 10, Mean: 5.5}, got[0])
	assert.Equal(t, ColumnSummary{Member: "b", Count: 2, Min: 2, Max: 2.5, Mean: 2.25}, got[1])
	assert.Equal(t, ColumnSummary{Member: "c", Count: 2, Min: 3.5, Max: 30, Mean: 16.75}, got[2])
}

func TestPlotBlockTime(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.png")
	require.NoError(t, PlotBlockTime(missionDataset(t), "STATE", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "expected PNG header")

	assert.ErrorIs(t, PlotBlockTime(missionDataset(t), "NOPE", path), ErrUnknownField)
}

func TestPlotTable_WithoutTimeColumn(t *testing.T) {
	t.Parallel()

	records := []dive.Record{
		testutil.NewRecord(1, 1, 0).Block("GPS", []string{"lat", "lon"}, []float64{48.5, -125.1}, []float64{48.6, -125.0}).Build(),
	}
	ds, err := merge.Build(records, nil, merge.DefaultOptions())
	require.NoError(t, err)
	gps, _ := ds.Blocks.Get("GPS")

	path := filepath.Join(t.TempDir(), "gps.svg")
	require.NoError(t, PlotTable(gps, "GPS", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestScalarChart(t *testing.T) {
	t.Parallel()

	ds := missionDataset(t)
	var buf bytes.Buffer
	require.NoError(t, DatasetScalarChart(&buf, ds, "T_DIVE"))
	html := buf.String()
	assert.Contains(t, html, "T_DIVE")
	assert.Contains(t, html, "1.1")
	assert.Contains(t, html, "2.1")

	buf.Reset()
	assert.Error(t, DatasetScalarChart(&buf, ds, "MISSION_NAME"), "text scalars cannot be charted")
	assert.ErrorIs(t, DatasetScalarChart(&buf, ds, "NOPE"), ErrUnknownField)

	col := merge.NewColumn(dive.KindNumber, 1)
	assert.Error(t, ScalarChart(&buf, "X", ds.Headers, col))
}

func TestGenerateColors(t *testing.T) {
	t.Parallel()

	assert.Nil(t, generateColors(0))
	colors := generateColors(3)
	require.Len(t, colors, 3)
	assert.NotEqual(t, colors[0], colors[1])
}
