package watchlist

import (
	"context"
	"fmt"
	"time"

	"github.com/plantops/maintwatch/internal/config"
	"github.com/plantops/maintwatch/internal/monitoring"
	"github.com/plantops/maintwatch/internal/notify"
	"github.com/plantops/maintwatch/internal/stats"
	"github.com/plantops/maintwatch/internal/store"
	"github.com/plantops/maintwatch/internal/timeutil"
)

// Monitor drives the watch-list lifecycle: collecting measurements on each
// item's cadence and evaluating items whose window has closed.
type Monitor struct {
	DB         *store.DB
	Thresholds *config.Thresholds
	Clock      timeutil.Clock
	Notifier   *notify.Notifier
}

// NewMonitor wires a Monitor on the given store using the real clock.
func NewMonitor(db *store.DB, cfg *config.Thresholds) *Monitor {
	return &Monitor{
		DB:         db,
		Thresholds: cfg,
		Clock:      timeutil.RealClock{},
		Notifier:   notify.NewNotifier(db),
	}
}

// DueForMeasurement reports whether an item should be measured today.
// Daily items measure every day, weekly items on Mondays, monthly items on
// the first of the month. Items outside their window or past monitoring
// are never due.
func DueForMeasurement(item store.WatchItem, today time.Time) bool {
	if item.Status != store.StatusOpen && item.Status != store.StatusExtended {
		return false
	}
	if today.Before(item.MonitorStart) || today.After(item.MonitorEnd) {
		return false
	}
	switch item.MonitorFrequency {
	case "daily":
		return true
	case "weekly":
		return today.Weekday() == time.Monday
	case "monthly":
		return today.Day() == 1
	default:
		return false
	}
}

// DueForEvaluation reports whether an item's monitoring window has closed.
func DueForEvaluation(item store.WatchItem, today time.Time) bool {
	if item.Status != store.StatusOpen && item.Status != store.StatusExtended {
		return false
	}
	return !today.Before(item.MonitorEnd)
}

// CheckResult summarizes one full watch-list pass.
type CheckResult struct {
	ItemsChecked      int
	MeasurementsTaken int
	ItemsEvaluated    int
	Decisions         map[string]int
}

// RunChecks performs the measurement pass and then the evaluation pass over
// every actively monitored item. Per-item failures are logged and skipped.
func (m *Monitor) RunChecks(ctx context.Context) (*CheckResult, error) {
	today := truncateToDay(m.Clock.Now())
	items, err := m.DB.ActiveWatchItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active watch items: %w", err)
	}

	res := &CheckResult{ItemsChecked: len(items), Decisions: map[string]int{}}
	for _, item := range items {
		if !DueForMeasurement(item, today) {
			continue
		}
		taken, err := m.measure(ctx, item, today)
		if err != nil {
			monitoring.Logf("watchlist: measurement failed for item %d (%s): %v", item.ID, item.EntityID, err)
			continue
		}
		if taken {
			res.MeasurementsTaken++
		}
	}

	for _, item := range items {
		if !DueForEvaluation(item, today) {
			continue
		}
		decision, err := m.evaluate(ctx, item, today)
		if err != nil {
			monitoring.Logf("watchlist: evaluation failed for item %d (%s): %v", item.ID, item.EntityID, err)
			continue
		}
		res.ItemsEvaluated++
		res.Decisions[decision]++
	}
	return res, nil
}

// measure records today's value for the item's metric. No matching event
// yet is not an error, just nothing to record.
func (m *Monitor) measure(ctx context.Context, item store.WatchItem, today time.Time) (bool, error) {
	already, err := m.DB.HasMeasurementOn(ctx, item.ID, today)
	if err != nil {
		return false, err
	}
	if already {
		return false, nil
	}

	value, ok, err := m.DB.LatestEventValue(ctx, item.EntityID, item.IssueType,
		item.MachineType, item.Reason, endOfDay(today))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := m.DB.InsertMeasurement(ctx, item.ID, today, value); err != nil {
		return false, err
	}
	return true, nil
}

// evaluate closes out one item's monitoring window: analyze, decide, apply
// the transition and notify. Returns the decision reached.
func (m *Monitor) evaluate(ctx context.Context, item store.WatchItem, today time.Time) (string, error) {
	values, err := m.DB.MeasurementValues(ctx, item.ID)
	if err != nil {
		return "", err
	}

	ev := NewEvaluator(m.Thresholds)
	summary := ev.Decide(item, ev.Analyze(item, values))
	summary.SummaryDate = today

	if err := m.apply(ctx, item, &summary, today); err != nil {
		return "", err
	}
	m.notifyDecision(ctx, item, summary)
	return summary.Decision, nil
}

// apply performs the status transition for a decision and persists the
// summary. Extension keeps the item live, so its summary stays non-final
// and any prior final summary is flipped back.
func (m *Monitor) apply(ctx context.Context, item store.WatchItem, summary *store.TaskSummary, today time.Time) error {
	now := m.Clock.Now()

	// Too little data is a reason to look, not to close the book: the item
	// keeps its status so later measurements can still land.
	if summary.InsufficientData {
		summary.IsFinal = false
		if _, err := m.DB.InsertTaskSummary(ctx, *summary); err != nil {
			return err
		}
		return nil
	}

	switch summary.Decision {
	case DecisionClose:
		summary.IsFinal = true
		if err := m.DB.UpdateWatchStatus(ctx, item.ID, store.StatusCompleted, now); err != nil {
			return err
		}
	case DecisionExtend:
		summary.IsFinal = false
		newEnd := item.MonitorEnd.AddDate(0, 0, m.Thresholds.GetExtensionDays())
		if err := m.DB.ExtendWatchItem(ctx, item.ID, newEnd, now); err != nil {
			return err
		}
		if err := m.DB.ClearFinalSummaries(ctx, item.ID); err != nil {
			return err
		}
	case DecisionReview:
		summary.IsFinal = true
		if err := m.DB.UpdateWatchStatus(ctx, item.ID, store.StatusNeedsReview, now); err != nil {
			return err
		}
	case DecisionIntervene:
		summary.IsFinal = true
		if err := m.DB.UpdateWatchStatus(ctx, item.ID, store.StatusNeedsIntervention, now); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown decision %q for watch item %d", summary.Decision, item.ID)
	}

	if _, err := m.DB.InsertTaskSummary(ctx, *summary); err != nil {
		return err
	}
	return nil
}

func (m *Monitor) notifyDecision(ctx context.Context, item store.WatchItem, s store.TaskSummary) {
	if m.Notifier == nil {
		return
	}
	subject := fmt.Sprintf("Watchlist %s: %s (%s)", s.Decision, item.EntityName, item.IssueType)
	message := fmt.Sprintf("trend: %s, stability: %s, performance: %s. %s",
		trendLabel(item, s), stabilityLabel(s), performanceLabel(s), s.Explanation)
	m.Notifier.Send(ctx, "", subject, message)
}

func trendLabel(item store.WatchItem, s store.TaskSummary) string {
	improving := s.TrendSlope > 0
	if stats.IsTimeMetric(item.IssueType) {
		improving = s.TrendSlope < 0
	}
	switch {
	case s.TrendSlope == 0:
		return "flat"
	case improving:
		return "improving"
	default:
		return "worsening"
	}
}

func stabilityLabel(s store.TaskSummary) string {
	if s.SplitIsSignificant {
		return "shifted"
	}
	return "stable"
}

func performanceLabel(s store.TaskSummary) string {
	switch {
	case s.InsufficientData:
		return "unknown"
	case s.ImprovementPct > 0:
		return fmt.Sprintf("improved %.1f%%", s.ImprovementPct)
	default:
		return fmt.Sprintf("declined %.1f%%", -s.ImprovementPct)
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
