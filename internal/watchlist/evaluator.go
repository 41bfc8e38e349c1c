// Package watchlist runs the monitoring lifecycle for flagged entities:
// periodic measurements, end-of-window evaluation, and the close / extend /
// review / intervene decision.
package watchlist

import (
	"fmt"

	"github.com/plantops/maintwatch/internal/config"
	"github.com/plantops/maintwatch/internal/stats"
	"github.com/plantops/maintwatch/internal/store"
)

// Decisions reached at the end of a monitoring window.
const (
	DecisionClose     = "close"
	DecisionExtend    = "extend"
	DecisionReview    = "review"
	DecisionIntervene = "intervene"
)

// Evaluator computes the end-of-window summary and decision for a watch
// item from its measurement series.
type Evaluator struct {
	Thresholds *config.Thresholds
}

// NewEvaluator returns an Evaluator using cfg (nil means defaults).
func NewEvaluator(cfg *config.Thresholds) *Evaluator {
	return &Evaluator{Thresholds: cfg}
}

// Analyze reduces a measurement series to a summary. With fewer than two
// measurements no comparison is possible and the summary is marked
// insufficient.
func (e *Evaluator) Analyze(item store.WatchItem, values []float64) store.TaskSummary {
	s := store.TaskSummary{
		WatchID:          item.ID,
		MeasurementCount: int64(len(values)),
	}
	if len(values) < 2 {
		s.InsufficientData = true
		return s
	}

	s.BaselineValue = values[0]
	s.LatestValue = values[len(values)-1]
	s.RawChangePct = stats.PctChange(s.BaselineValue, s.LatestValue)
	s.ImprovementPct = stats.ImprovementPct(s.RawChangePct, item.IssueType)

	window := e.Thresholds.GetMovingAvgWindow()
	if avg, ok := stats.MovingAverage(values, window); ok {
		s.MovingAverage = avg
		s.MovingAverageChangePct = stats.ImprovementPct(
			stats.PctChange(s.BaselineValue, avg), item.IssueType)
	}

	if trend := stats.Trend(values, e.Thresholds.GetMinTrendPoints(), e.Thresholds.GetTrendPValue()); trend != nil {
		s.TrendSlope = trend.Slope
		s.TrendRSquared = trend.RSquared
		s.TrendPValue = trend.PValue
		s.TrendIsSignificant = trend.IsSignificant
	}

	split := stats.TTestSplit(values, e.Thresholds.GetSplitTestPValue())
	if !split.InsufficientData {
		s.SplitPValue = split.PValue
		s.SplitIsSignificant = split.IsSignificant
	}

	return s
}

// Decide applies the decision ladder to a summary, filling in Decision,
// Confidence and Explanation. First matching rule wins.
func (e *Evaluator) Decide(item store.WatchItem, s store.TaskSummary) store.TaskSummary {
	if s.InsufficientData {
		s.Decision = DecisionReview
		s.Confidence = "low"
		s.Explanation = fmt.Sprintf("only %d measurement(s) collected; not enough data to judge %s",
			s.MeasurementCount, item.IssueType)
		return s
	}

	improving := e.trendImproving(item, s)
	significant := s.TrendIsSignificant || s.SplitIsSignificant

	switch {
	case s.ImprovementPct >= e.Thresholds.GetCloseStrongPct() && improving && significant:
		s.Decision = DecisionClose
		s.Confidence = "high"
		s.Explanation = fmt.Sprintf("%.1f%% improvement with a statistically supported improving trend", s.ImprovementPct)
	case s.ImprovementPct >= e.Thresholds.GetCloseModeratePct() && improving:
		s.Decision = DecisionClose
		s.Confidence = "medium"
		s.Explanation = fmt.Sprintf("%.1f%% improvement with an improving trend", s.ImprovementPct)
	case s.ImprovementPct >= e.Thresholds.GetExtendPct() && improving:
		s.Decision = DecisionExtend
		s.Confidence = "medium"
		s.Explanation = fmt.Sprintf("%.1f%% improvement is promising but not conclusive; extending the window", s.ImprovementPct)
	case s.ImprovementPct > 0:
		s.Decision = DecisionReview
		s.Confidence = "medium"
		s.Explanation = fmt.Sprintf("%.1f%% improvement without a supporting trend; needs a manual look", s.ImprovementPct)
	default:
		s.Decision = DecisionIntervene
		s.Confidence = "high"
		s.Explanation = fmt.Sprintf("no improvement (%.1f%%); intervention needed", s.ImprovementPct)
	}
	return s
}

// trendImproving reports whether the fitted trend moves the metric the
// right way: down for duration metrics, up otherwise. A flat slope does not
// count as improving.
func (e *Evaluator) trendImproving(item store.WatchItem, s store.TaskSummary) bool {
	if stats.IsTimeMetric(item.IssueType) {
		return s.TrendSlope < 0
	}
	return s.TrendSlope > 0
}
