// Package runlog brackets batch-tool executions and throttles how often
// each tool may run.
package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plantops/maintwatch/internal/monitoring"
	"github.com/plantops/maintwatch/internal/store"
	"github.com/plantops/maintwatch/internal/timeutil"
)

// Recorder writes the run history for batch tools and answers whether a
// tool is allowed to run yet.
type Recorder struct {
	DB    *store.DB
	Clock timeutil.Clock
}

// NewRecorder returns a Recorder on the given store using the real clock.
func NewRecorder(db *store.DB) *Recorder {
	return &Recorder{DB: db, Clock: timeutil.RealClock{}}
}

// CanRun reports whether toolName may run now, given a minimum number of
// days between completed runs. The second return is the last completed run
// date when one exists. Only completed runs throttle: failed or abandoned
// runs never block a retry.
func (r *Recorder) CanRun(ctx context.Context, toolName string, minDays int) (bool, *time.Time, error) {
	last, err := r.DB.LastCompletedRun(ctx, toolName)
	if err != nil {
		return false, nil, fmt.Errorf("failed to check last run of %s: %w", toolName, err)
	}
	if last == nil {
		return true, nil, nil
	}

	elapsed := r.Clock.Now().Sub(last.RunDate)
	allowed := elapsed >= time.Duration(minDays)*24*time.Hour
	return allowed, &last.RunDate, nil
}

// Start records the beginning of a run and returns its id. A failed insert
// is logged and a fresh id returned anyway so the batch itself still runs;
// losing one history row is better than losing the run.
func (r *Recorder) Start(ctx context.Context, toolName string, periodStart, periodEnd *time.Time, summary string) string {
	runID := uuid.NewString()
	err := r.DB.InsertToolRun(ctx, store.ToolRunLog{
		ID:          runID,
		ToolName:    toolName,
		RunDate:     r.Clock.Now(),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Status:      store.RunInProgress,
		Summary:     summary,
	})
	if err != nil {
		monitoring.Logf("runlog: failed to record start of %s: %v", toolName, err)
	}
	return runID
}

// Complete finalizes a run as successful. metadata is JSON-encoded; a
// forced run should carry {"forced": true} so the bypass is auditable.
func (r *Recorder) Complete(ctx context.Context, runID string, processed, created int64, summary string, metadata map[string]any) error {
	meta := encodeMetadata(metadata)
	err := r.DB.UpdateToolRun(ctx, runID, store.RunCompleted, processed, created, summary, meta, r.Clock.Now())
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", runID, err)
	}
	return nil
}

// Fail finalizes a run as failed, keeping the error text as the summary.
func (r *Recorder) Fail(ctx context.Context, runID, errMsg string) error {
	err := r.DB.UpdateToolRun(ctx, runID, store.RunFailed, 0, 0, errMsg, "", r.Clock.Now())
	if err != nil {
		return fmt.Errorf("failed to mark run %s failed: %w", runID, err)
	}
	return nil
}

func encodeMetadata(metadata map[string]any) string {
	if len(metadata) == 0 {
		return ""
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		monitoring.Logf("runlog: failed to encode run metadata: %v", err)
		return ""
	}
	return string(b)
}

// Blocked describes a run refused by the throttle. It serializes into the
// warning payload the tools layer returns instead of an error.
type Blocked struct {
	Status        string `json:"status"`
	Tool          string `json:"tool"`
	LastRunDate   string `json:"last_run_date"`
	MinDays       int    `json:"min_interval_days"`
	DaysRemaining int    `json:"days_remaining"`
	Message       string `json:"message"`
}

// BlockedResult builds the structured refusal for a throttled tool.
func (r *Recorder) BlockedResult(toolName string, lastRun time.Time, minDays int) Blocked {
	elapsed := int(r.Clock.Now().Sub(lastRun).Hours() / 24)
	remaining := minDays - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return Blocked{
		Status:      "frequency_blocked",
		Tool:        toolName,
		LastRunDate: lastRun.Format(store.DateFormat),
		MinDays:     minDays,
		DaysRemaining: remaining,
		Message: fmt.Sprintf("%s last completed %s; next run allowed in %d day(s)",
			toolName, lastRun.Format(store.DateFormat), remaining),
	}
}
