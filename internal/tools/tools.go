// Package tools exposes the batch pipelines as named, parameter-map
// callable operations: the seam the HTTP API and the CLI both dispatch
// through.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/plantops/maintwatch/internal/config"
	"github.com/plantops/maintwatch/internal/perf"
	"github.com/plantops/maintwatch/internal/runlog"
	"github.com/plantops/maintwatch/internal/schedule"
	"github.com/plantops/maintwatch/internal/store"
	"github.com/plantops/maintwatch/internal/timeutil"
	"github.com/plantops/maintwatch/internal/watchlist"
)

// Tool names.
const (
	ToolRunScheduledMaintenance = "run_scheduled_maintenance"
	ToolAnalyzePerformance      = "analyze_mechanic_performance"
	ToolRunWatchlistChecks      = "run_watchlist_checks"
	ToolQueryWatchlist          = "query_watchlist"
	ToolQueryScheduled          = "query_scheduled_maintenance"
)

// Func is one callable tool. Params and results are JSON-shaped; a
// throttled run returns a frequency_blocked payload, not an error.
type Func func(ctx context.Context, params map[string]any) (map[string]any, error)

// Deps carries everything the tools operate on.
type Deps struct {
	DB         *store.DB
	Thresholds *config.Thresholds
	Clock      timeutil.Clock
	Recorder   *runlog.Recorder
}

// NewDeps wires Deps on the given store using the real clock.
func NewDeps(db *store.DB, cfg *config.Thresholds) *Deps {
	return &Deps{
		DB:         db,
		Thresholds: cfg,
		Clock:      timeutil.RealClock{},
		Recorder:   runlog.NewRecorder(db),
	}
}

// Registry returns the tool table.
func Registry(d *Deps) map[string]Func {
	return map[string]Func{
		ToolRunScheduledMaintenance: d.runScheduledMaintenance,
		ToolAnalyzePerformance:      d.analyzePerformance,
		ToolRunWatchlistChecks:      d.runWatchlistChecks,
		ToolQueryWatchlist:          d.queryWatchlist,
		ToolQueryScheduled:          d.queryScheduled,
	}
}

func blockedPayload(b runlog.Blocked) map[string]any {
	return map[string]any{
		"status":            b.Status,
		"tool":              b.Tool,
		"last_run_date":     b.LastRunDate,
		"min_interval_days": b.MinDays,
		"days_remaining":    b.DaysRemaining,
		"message":           b.Message,
	}
}

// checkThrottle returns a blocked payload when the tool ran too recently
// and force is not set.
func (d *Deps) checkThrottle(ctx context.Context, tool string, force bool) (map[string]any, error) {
	if force {
		return nil, nil
	}
	minDays := d.Thresholds.GetMinRunIntervalDays()
	ok, lastRun, err := d.Recorder.CanRun(ctx, tool, minDays)
	if err != nil {
		return nil, err
	}
	if !ok {
		return blockedPayload(d.Recorder.BlockedResult(tool, *lastRun, minDays)), nil
	}
	return nil, nil
}

func runMetadata(force bool) map[string]any {
	if force {
		return map[string]any{"forced": true}
	}
	return nil
}

func (d *Deps) runScheduledMaintenance(ctx context.Context, params map[string]any) (map[string]any, error) {
	force := boolParam(params, "force")
	if blocked, err := d.checkThrottle(ctx, ToolRunScheduledMaintenance, force); blocked != nil || err != nil {
		return blocked, err
	}

	maxTasks, err := intParam(params, "max_tasks", 0)
	if err != nil {
		return nil, err
	}

	runID := d.Recorder.Start(ctx, ToolRunScheduledMaintenance, nil, nil, "scheduling run")

	sched := schedule.NewScheduler(d.DB, d.Thresholds)
	sched.Clock = d.Clock
	res, err := sched.Run(ctx, maxTasks)
	if err != nil {
		d.Recorder.Fail(ctx, runID, err.Error())
		return nil, err
	}

	summary := fmt.Sprintf("%d task(s) created, %d skipped", res.TasksCreated, res.SkippedExisting)
	if err := d.Recorder.Complete(ctx, runID,
		int64(res.TasksCreated+res.SkippedExisting), int64(res.TasksCreated),
		summary, runMetadata(force)); err != nil {
		return nil, err
	}

	return map[string]any{
		"status":           "completed",
		"run_id":           runID,
		"tasks_created":    res.TasksCreated,
		"high_priority":    res.HighPriority,
		"medium_priority":  res.MediumPriority,
		"skipped_existing": res.SkippedExisting,
		"failed":           res.Failed,
	}, nil
}

func (d *Deps) analyzePerformance(ctx context.Context, params map[string]any) (map[string]any, error) {
	force := boolParam(params, "force")
	if blocked, err := d.checkThrottle(ctx, ToolAnalyzePerformance, force); blocked != nil || err != nil {
		return blocked, err
	}

	end, err := dateParam(params, "end_date", d.Clock.Now())
	if err != nil {
		return nil, err
	}
	start, err := dateParam(params, "start_date",
		end.AddDate(0, 0, -d.Thresholds.GetMonitorWindowDays()))
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("start_date %s must be before end_date %s",
			start.Format(store.DateFormat), end.Format(store.DateFormat))
	}

	runID := d.Recorder.Start(ctx, ToolAnalyzePerformance, &start, &end, "performance analysis")

	pipeline := perf.NewPipeline(d.DB, d.Thresholds)
	pipeline.Clock = d.Clock
	res, err := pipeline.Run(ctx, start, end)
	if err != nil {
		d.Recorder.Fail(ctx, runID, err.Error())
		return nil, err
	}

	summary := fmt.Sprintf("%d finding(s) from %d event(s)", res.FindingsCreated, res.EventsAnalyzed)
	if err := d.Recorder.Complete(ctx, runID,
		int64(res.EventsAnalyzed), int64(res.FindingsCreated),
		summary, runMetadata(force)); err != nil {
		return nil, err
	}

	return map[string]any{
		"status":             "completed",
		"run_id":             runID,
		"period_start":       start.Format(store.DateFormat),
		"period_end":         end.Format(store.DateFormat),
		"events_analyzed":    res.EventsAnalyzed,
		"findings_created":   res.FindingsCreated,
		"watch_items_opened": res.WatchItemsOpened,
	}, nil
}

// runWatchlistChecks is meant to run daily and is not throttled.
func (d *Deps) runWatchlistChecks(ctx context.Context, params map[string]any) (map[string]any, error) {
	runID := d.Recorder.Start(ctx, ToolRunWatchlistChecks, nil, nil, "watchlist pass")

	monitor := watchlist.NewMonitor(d.DB, d.Thresholds)
	monitor.Clock = d.Clock
	res, err := monitor.RunChecks(ctx)
	if err != nil {
		d.Recorder.Fail(ctx, runID, err.Error())
		return nil, err
	}

	summary := fmt.Sprintf("%d measurement(s), %d evaluation(s)", res.MeasurementsTaken, res.ItemsEvaluated)
	if err := d.Recorder.Complete(ctx, runID,
		int64(res.ItemsChecked), int64(res.MeasurementsTaken),
		summary, nil); err != nil {
		return nil, err
	}

	decisions := map[string]any{}
	for k, v := range res.Decisions {
		decisions[k] = v
	}
	return map[string]any{
		"status":             "completed",
		"run_id":             runID,
		"items_checked":      res.ItemsChecked,
		"measurements_taken": res.MeasurementsTaken,
		"items_evaluated":    res.ItemsEvaluated,
		"decisions":          decisions,
	}, nil
}

func (d *Deps) queryWatchlist(ctx context.Context, params map[string]any) (map[string]any, error) {
	status := stringParam(params, "status", store.StatusOpen)
	limit, err := intParam(params, "limit", 50)
	if err != nil {
		return nil, err
	}

	items, err := d.DB.WatchItemsByStatus(ctx, status, limit)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0, len(items))
	for _, w := range items {
		rows = append(rows, map[string]any{
			"id":                w.ID,
			"entity_id":         w.EntityID,
			"entity_name":       w.EntityName,
			"issue_type":        w.IssueType,
			"machine_type":      w.MachineType,
			"monitor_frequency": w.MonitorFrequency,
			"monitor_start":     w.MonitorStart.Format(store.DateFormat),
			"monitor_end":       w.MonitorEnd.Format(store.DateFormat),
			"status":            w.Status,
			"extension_count":   w.ExtensionCount,
		})
	}
	return map[string]any{"status": "ok", "count": len(rows), "items": rows}, nil
}

func (d *Deps) queryScheduled(ctx context.Context, params map[string]any) (map[string]any, error) {
	status := stringParam(params, "status", "")
	assignee := stringParam(params, "assignee", "")
	limit, err := intParam(params, "limit", 50)
	if err != nil {
		return nil, err
	}

	tasks, err := d.DB.MaintenanceTasks(ctx, status, assignee, limit)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, map[string]any{
			"id":            task.ID,
			"machine_id":    task.MachineID,
			"machine_type":  task.MachineType,
			"description":   task.Description,
			"assignee":      task.Assignee,
			"mechanic_name": task.MechanicName,
			"priority":      task.Priority,
			"status":        task.Status,
			"due_by":        task.DueBy.Format(store.DateFormat),
		})
	}
	return map[string]any{"status": "ok", "count": len(rows), "tasks": rows}, nil
}

// dateParam reads a YYYY-MM-DD parameter, defaulting when absent.
func dateParam(params map[string]any, key string, fallback time.Time) (time.Time, error) {
	s := stringParam(params, key, "")
	if s == "" {
		return fallback, nil
	}
	t, err := time.Parse(store.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", key, s)
	}
	return t, nil
}
