package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/glider-logs/internal/config"
	"github.com/banshee-data/glider-logs/internal/testutil"
)

func TestParseOptions_Defaults(t *testing.T) {
	t.Parallel()

	opts, err := ParseOptions()
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)
	assert.Nil(t, opts.Params)
	assert.Nil(t, opts.Period)
	assert.Equal(t, "secs", opts.TimeColumns["STATE"])
}

func TestParseOptions_Pairs(t *testing.T) {
	t.Parallel()

	opts, err := ParseOptions(
		"FORMAT", "Struct",
		"Params", []string{"GC", "D_TGT"},
		"period", [2]float64{10, 20},
		"ordering", "RANK",
	)
	require.NoError(t, err)
	assert.Equal(t, FormatStruct, opts.Format)
	assert.Equal(t, []string{"GC", "D_TGT"}, opts.Params)
	assert.Equal(t, &Period{Start: 10, End: 20}, opts.Period)
	assert.Equal(t, OrderRank, opts.Ordering)
}

func TestParseOptions_AllSelectors(t *testing.T) {
	t.Parallel()

	for _, params := range []any{"all", "ALL", []string{"all"}} {
		opts, err := ParseOptions("params", params, "period", "all")
		require.NoError(t, err)
		assert.Nil(t, opts.Params, "%v", params)
		assert.Nil(t, opts.Period)
	}

	opts, err := ParseOptions("params", "D_TGT")
	require.NoError(t, err)
	assert.Equal(t, []string{"D_TGT"}, opts.Params)
}

func TestParseOptions_ParamsAreCopied(t *testing.T) {
	t.Parallel()

	params := []string{"GC"}
	opts, err := ParseOptions("params", params)
	require.NoError(t, err)
	params[0] = "changed"
	assert.Equal(t, []string{"GC"}, opts.Params)
}

func TestParseOptions_SingleValue(t *testing.T) {
	t.Parallel()

	want := Options{Format: FormatMerged, Params: []string{"X"}}
	got, err := ParseOptions(want)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = ParseOptions(&want)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = ParseOptions((*Options)(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), got)
}

func TestParseOptions_FromConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.ParseMergeConfig([]byte(`{
		"format": "merged",
		"params": ["GC_st_secs"],
		"period": {"start": "2019-11-05T08:30:15Z", "end": "1572950000"},
		"blocks": {"PUMP": "elapsed"}
	}`))
	require.NoError(t, err)

	for _, arg := range []any{cfg, *cfg} {
		opts, err := ParseOptions(arg)
		require.NoError(t, err)
		assert.Equal(t, FormatMerged, opts.Format)
		assert.Equal(t, []string{"GC_st_secs"}, opts.Params)
		require.NotNil(t, opts.Period)
		assert.Equal(t, 1572942615.0, opts.Period.Start)
		assert.Equal(t, 1572950000.0, opts.Period.End)
		assert.Equal(t, OrderLexicographic, opts.Ordering)
		assert.Equal(t, "elapsed", opts.TimeColumns["PUMP"])
		assert.Equal(t, "st_secs", opts.TimeColumns["GC"])
	}
}

func TestOptionsFromConfig_Invalid(t *testing.T) {
	t.Parallel()

	bad := "cell"
	_, err := OptionsFromConfig(&config.MergeConfig{Format: &bad})
	assert.ErrorIs(t, err, ErrInvalidOutputFormat)
	assert.NotErrorIs(t, err, ErrInvalidOptions)

	badOrder := "chronological"
	_, err = OptionsFromConfig(&config.MergeConfig{Ordering: &badOrder})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	upper := "STRUCT"
	opts, err := OptionsFromConfig(&config.MergeConfig{Format: &upper})
	require.NoError(t, err)
	assert.Equal(t, FormatStruct, opts.Format)

	opts, err = OptionsFromConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatArray, false},
		{"array", FormatArray, false},
		{"Merged", FormatMerged, false},
		{"struct", FormatStruct, false},
		{"table", "", true},
	}
	for _, tc := range tests {
		got, err := ParseFormat(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidOutputFormat, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestPeriod_ContainsIsInclusive(t *testing.T) {
	t.Parallel()

	p := Period{Start: 10, End: 20}
	assert.True(t, p.Contains(10))
	assert.True(t, p.Contains(20))
	assert.False(t, p.Contains(9.999))
	assert.False(t, p.Contains(20.001))
}

func TestParseOptions_ValidatesOptionsValue(t *testing.T) {
	t.Parallel()

	_, err := ParseOptions(Options{Ordering: "chronological"})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = ParseOptions(&Options{Format: "cell"})
	assert.ErrorIs(t, err, ErrInvalidOutputFormat)

	_, err = Build(testutil.Mission(), nil, Options{Ordering: "chronological"})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	opts, err := ParseOptions(Options{Ordering: OrderRank})
	require.NoError(t, err)
	assert.Equal(t, OrderRank, opts.Ordering)
}
