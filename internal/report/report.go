// Package report renders findings and watch-list series as browser charts
// and trend plot images.
package report

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/plantops/maintwatch/internal/config"
	"github.com/plantops/maintwatch/internal/store"
)

// Reporter renders charts from the store.
type Reporter struct {
	DB         *store.DB
	Thresholds *config.Thresholds
}

// NewReporter returns a Reporter on the given store.
func NewReporter(db *store.DB, cfg *config.Thresholds) *Reporter {
	return &Reporter{DB: db, Thresholds: cfg}
}

// FindingsChart renders a bar chart of z-scores for one analysis type,
// worst offenders included up to limit.
func (r *Reporter) FindingsChart(ctx context.Context, analysisType string, limit int, w io.Writer) error {
	findings, err := r.DB.FindingsByAnalysisType(ctx, analysisType, limit)
	if err != nil {
		return err
	}
	if len(findings) == 0 {
		return fmt.Errorf("no findings recorded for analysis type %q", analysisType)
	}

	labels := make([]string, 0, len(findings))
	zScores := make([]opts.BarData, 0, len(findings))
	values := make([]opts.BarData, 0, len(findings))
	for _, f := range findings {
		label := f.EntityID
		if f.Dimension1 != "" {
			label += " / " + f.Dimension1
		}
		labels = append(labels, label)
		zScores = append(zScores, opts.BarData{Value: f.ZScore})
		values = append(values, opts.BarData{Value: f.Value})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Performance Findings", Width: "1100px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Performance findings: " + analysisType,
			Subtitle: fmt.Sprintf("%d finding(s), z-score threshold %.1f", len(findings), r.Thresholds.GetZScore()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).
		AddSeries("z-score", zScores).
		AddSeries("value (min)", values)

	return bar.Render(w)
}

// MeasurementChart renders the measurement series of a watch item as a
// line chart.
func (r *Reporter) MeasurementChart(ctx context.Context, watchID int64, w io.Writer) error {
	item, err := r.DB.GetWatchItem(ctx, watchID)
	if err != nil {
		return err
	}
	measurements, err := r.DB.MeasurementsForWatch(ctx, watchID)
	if err != nil {
		return err
	}
	if len(measurements) == 0 {
		return fmt.Errorf("watch item %d has no measurements", watchID)
	}

	dates := make([]string, 0, len(measurements))
	values := make([]opts.LineData, 0, len(measurements))
	for _, m := range measurements {
		dates = append(dates, m.Date.Format(store.DateFormat))
		values = append(values, opts.LineData{Value: m.Value})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Watchlist Measurements", Width: "1100px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s: %s", item.EntityName, item.IssueType),
			Subtitle: fmt.Sprintf("monitoring %s to %s (%s)", item.MonitorStart.Format(store.DateFormat), item.MonitorEnd.Format(store.DateFormat), item.Status),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(dates).
		AddSeries(item.IssueType, values,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	return line.Render(w)
}

// AttachRoutes mounts the report endpoints on mux.
func (r *Reporter) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/reports/findings", func(w http.ResponseWriter, req *http.Request) {
		analysisType := req.URL.Query().Get("type")
		if analysisType == "" {
			analysisType = "overall"
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := r.FindingsChart(req.Context(), analysisType, 50, w); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
		}
	})

	mux.HandleFunc("/reports/watch", func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.ParseInt(req.URL.Query().Get("id"), 10, 64)
		if err != nil {
			http.Error(w, "missing or invalid id parameter", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := r.MeasurementChart(req.Context(), id, w); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
		}
	})

	mux.HandleFunc("/reports/watch/trend.png", func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.ParseInt(req.URL.Query().Get("id"), 10, 64)
		if err != nil {
			http.Error(w, "missing or invalid id parameter", http.StatusBadRequest)
			return
		}
		png, err := r.TrendPNG(req.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})
}
