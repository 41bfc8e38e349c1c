package perf

import (
	"context"
	"fmt"
	"time"

	"github.com/plantops/maintwatch/internal/config"
	"github.com/plantops/maintwatch/internal/monitoring"
	"github.com/plantops/maintwatch/internal/store"
	"github.com/plantops/maintwatch/internal/timeutil"
)

// Pipeline runs the full analysis pass: aggregate, interpret, persist
// findings, and open watch-list monitoring for each one.
type Pipeline struct {
	DB         *store.DB
	Thresholds *config.Thresholds
	Clock      timeutil.Clock
}

// NewPipeline wires a Pipeline on the given store using the real clock.
func NewPipeline(db *store.DB, cfg *config.Thresholds) *Pipeline {
	return &Pipeline{DB: db, Thresholds: cfg, Clock: timeutil.RealClock{}}
}

// Result summarizes one analysis run.
type Result struct {
	EventsAnalyzed   int
	FindingsCreated  int
	WatchItemsOpened int
}

// Run analyzes [start, end) and returns what it produced. Per-finding
// persistence failures are logged and skipped so one bad row cannot sink
// the whole run.
func (p *Pipeline) Run(ctx context.Context, start, end time.Time) (*Result, error) {
	analyzer := NewAnalyzer(p.DB)
	agg, err := analyzer.Aggregate(ctx, start, end)
	if err != nil {
		return nil, err
	}

	findings := NewInterpreter(p.Thresholds).Interpret(agg)

	res := &Result{EventsAnalyzed: agg.EventCount}
	for _, f := range findings {
		id, err := p.DB.InsertFinding(ctx, f)
		if err != nil {
			monitoring.Logf("perf: failed to persist finding for %s: %v", f.EntityID, err)
			continue
		}
		res.FindingsCreated++

		opened, err := p.openWatchItem(ctx, id, f)
		if err != nil {
			monitoring.Logf("perf: failed to open watch item for %s: %v", f.EntityID, err)
			continue
		}
		if opened {
			res.WatchItemsOpened++
		}
	}
	return res, nil
}

// IssueType maps a finding metric onto the watch-list issue type whose
// measurements track it.
func IssueType(metric string) string {
	switch metric {
	case MetricResponseTime, MetricTrendResponseTime:
		return "response_time"
	case MetricRepairByMachine, MetricRepairByMachineReason, MetricTrendRepairTime:
		return "repair_time"
	default:
		return metric
	}
}

// monitorSchedule returns the measurement cadence and window for an issue
// type. Response-time issues move fast and get daily checks over a short
// window; repair-time issues need more data per point and run longer.
func monitorSchedule(issueType string) (frequency string, days int) {
	switch issueType {
	case "response_time":
		return "daily", 14
	case "repair_time":
		return "weekly", 28
	default:
		return "weekly", 21
	}
}

// openWatchItem puts the finding's entity under monitoring unless that
// entity/issue pair is already actively watched.
func (p *Pipeline) openWatchItem(ctx context.Context, findingID int64, f store.Finding) (bool, error) {
	issueType := IssueType(f.Metric)

	exists, err := p.DB.OpenWatchItemExists(ctx, f.EntityID, issueType)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	frequency, days := monitorSchedule(issueType)
	today := p.Clock.Now()
	_, err = p.DB.InsertWatchItem(ctx, store.WatchItem{
		EntityType:       "mechanic",
		EntityID:         f.EntityID,
		EntityName:       f.EntityID,
		IssueType:        issueType,
		MachineType:      f.Dimension1,
		Reason:           f.Dimension2,
		MonitorFrequency: frequency,
		MonitorStart:     today,
		MonitorEnd:       today.AddDate(0, 0, days),
		FindingID:        &findingID,
		Notes:            f.Summary,
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert watch item: %w", err)
	}
	return true, nil
}
