package report

import (
	"bytes"
	"context"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/plantops/maintwatch/internal/stats"
)

// TrendPNG renders a watch item's measurement series and its fitted trend
// line as a PNG.
func (r *Reporter) TrendPNG(ctx context.Context, watchID int64) ([]byte, error) {
	item, err := r.DB.GetWatchItem(ctx, watchID)
	if err != nil {
		return nil, err
	}
	values, err := r.DB.MeasurementValues(ctx, watchID)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("watch item %d has no measurements", watchID)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s", item.EntityName, item.IssueType)
	p.X.Label.Text = "measurement"
	p.Y.Label.Text = "minutes"

	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	dataLine, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build series line: %w", err)
	}
	dataLine.Width = vg.Points(1)
	p.Add(dataLine)
	p.Legend.Add("measured", dataLine)

	if trend := stats.Trend(values, r.Thresholds.GetMinTrendPoints(), r.Thresholds.GetTrendPValue()); trend != nil {
		fit := plotter.XYs{
			{X: 0, Y: trend.Intercept},
			{X: float64(len(values) - 1), Y: trend.Intercept + trend.Slope*float64(len(values)-1)},
		}
		fitLine, err := plotter.NewLine(fit)
		if err != nil {
			return nil, fmt.Errorf("failed to build trend line: %w", err)
		}
		fitLine.Width = vg.Points(1)
		fitLine.Color = color.RGBA{R: 220, G: 60, B: 60, A: 255}
		fitLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(fitLine)
		p.Legend.Add(fmt.Sprintf("trend (p=%.3f)", trend.PValue), fitLine)
	}

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to render trend plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write trend plot: %w", err)
	}
	return buf.Bytes(), nil
}
