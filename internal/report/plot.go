package report

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/glider-logs/internal/dive"
	"github.com/banshee-data/glider-logs/internal/merge"
)

// PlotBlockTime writes a PNG (or any format plot.Save supports, by
// extension) of a merged event block. Every numeric member is drawn as one
// line against the block's mission-relative time column, or against the
// row index when the block has none.
func PlotBlockTime(ds *merge.Dataset, block, path string) error {
	t, ok := ds.Blocks.Get(block)
	if !ok {
		return fmt.Errorf("%w: block %s", ErrUnknownField, block)
	}
	return PlotTable(t, block, path)
}

// PlotTable draws t as described for PlotBlockTime.
func PlotTable(t *merge.Table, title, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "value"

	var xs []float64
	timeCol := t.Column(t.TimeColumn)
	if t.TimeColumn != "" && timeCol != nil {
		xs = timeCol.Num
		p.X.Label.Text = t.TimeColumn + " (s since first dive)"
	} else {
		xs = make([]float64, t.Rows())
		for i := range xs {
			xs[i] = float64(i)
		}
		p.X.Label.Text = "row"
	}

	var series []int
	for j, m := range t.Members {
		if m != t.TimeColumn && t.Columns[j].Kind == dive.KindNumber {
			series = append(series, j)
		}
	}
	colors := generateColors(len(series))

	for i, j := range series {
		pts := make(plotter.XYs, 0, t.Rows())
		for row, y := range t.Columns[j].Num {
			if math.IsNaN(y) || math.IsNaN(xs[row]) {
				continue
			}
			pts = append(pts, plotter.XY{X: xs[row], Y: y})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to create line for %s: %w", t.Members[j], err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(t.Members[j], line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// generateColors spreads n colours evenly around the hue wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := range colors {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
