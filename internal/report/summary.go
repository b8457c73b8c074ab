// Package report turns merged datasets into summaries and plots: per-column
// statistics of event blocks, PNG time plots and HTML charts of scalar
// parameters across dives.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/glider-logs/internal/dive"
	"github.com/banshee-data/glider-logs/internal/merge"
)

// ErrUnknownField is returned when a dataset has no field of that name.
var ErrUnknownField = errors.New("unknown field")

// ColumnSummary holds statistics over the non-sentinel values of one
// numeric column. Min, Max and Mean are NaN when Count is zero.
type ColumnSummary struct {
	Member string  `json:"member"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
}

// MarshalJSON writes the NaN statistics of an empty column as null.
func (s ColumnSummary) MarshalJSON() ([]byte, error) {
	orNull := func(v float64) *float64 {
		if math.IsNaN(v) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		Member string   `json:"member"`
		Count  int      `json:"count"`
		Min    *float64 `json:"min"`
		Max    *float64 `json:"max"`
		Mean   *float64 `json:"mean"`
	}{s.Member, s.Count, orNull(s.Min), orNull(s.Max), orNull(s.Mean)})
}

// BlockSummary summarises every numeric column of a merged event block.
func BlockSummary(ds *merge.Dataset, block string) ([]ColumnSummary, error) {
	t, ok := ds.Blocks.Get(block)
	if !ok {
		return nil, fmt.Errorf("%w: block %s", ErrUnknownField, block)
	}
	return TableSummary(t), nil
}

// TableSummary summarises every numeric column of t in member order. Text
// columns are skipped. Columns are read from the table's dense matrix form.
func TableSummary(t *merge.Table) []ColumnSummary {
	m := t.Dense()
	var out []ColumnSummary
	for j, member := range t.Members {
		if t.Columns[j].Kind != dive.KindNumber {
			continue
		}
		var values []float64
		if m != nil {
			values = mat.Col(nil, j, m)
		}
		out = append(out, summarize(member, values))
	}
	return out
}

func summarize(member string, values []float64) ColumnSummary {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	s := ColumnSummary{Member: member, Count: len(present), Min: math.NaN(), Max: math.NaN(), Mean: math.NaN()}
	if len(present) == 0 {
		return s
	}
	s.Min = floats.Min(present)
	s.Max = floats.Max(present)
	s.Mean = floats.Sum(present) / float64(len(present))
	return s
}
