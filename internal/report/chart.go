package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/glider-logs/internal/dive"
	"github.com/banshee-data/glider-logs/internal/merge"
)

// ScalarChart renders an HTML line chart of one numeric scalar column, one
// point per dive labelled "mission.dive". Missing values leave a gap.
func ScalarChart(w io.Writer, field string, headers []dive.Header, col *merge.Column) error {
	if col.Kind != dive.KindNumber {
		return fmt.Errorf("scalar %s is %s, not numeric", field, col.Kind)
	}
	if col.Len() != len(headers) {
		return fmt.Errorf("scalar %s has %d values for %d dives", field, col.Len(), len(headers))
	}

	x := make([]string, len(headers))
	y := make([]opts.LineData, len(headers))
	for i, h := range headers {
		x[i] = fmt.Sprintf("%d.%d", h.MissionNumber, h.DiveNumber)
		if v := col.Num[i]; math.IsNaN(v) {
			y[i] = opts.LineData{Value: "-"}
		} else {
			y[i] = opts.LineData{Value: v}
		}
	}

	subtitle := fmt.Sprintf("dives=%d", len(headers))
	if len(headers) > 0 {
		subtitle = fmt.Sprintf("sg%s dives=%d", headers[0].GliderID, len(headers))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: field, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: field, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "mission.dive", NameLocation: "middle", NameGap: 25}),
	)
	line.SetXAxis(x).AddSeries(field, y)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

// DatasetScalarChart renders ScalarChart for a field of ds.
func DatasetScalarChart(w io.Writer, ds *merge.Dataset, field string) error {
	col, ok := ds.Scalars.Get(field)
	if !ok {
		return fmt.Errorf("%w: scalar %s", ErrUnknownField, field)
	}
	return ScalarChart(w, field, ds.Headers, col)
}
