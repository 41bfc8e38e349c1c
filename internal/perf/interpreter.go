package perf

import (
	"fmt"
	"sort"

	"github.com/plantops/maintwatch/internal/config"
	"github.com/plantops/maintwatch/internal/stats"
	"github.com/plantops/maintwatch/internal/store"
)

// Analysis type and metric names carried on findings.
const (
	AnalysisOverall         = "overall"
	AnalysisByMachine       = "by_machine"
	AnalysisByMachineReason = "by_machine_reason"
	AnalysisTrend           = "trend"

	MetricResponseTime          = "response_time"
	MetricRepairByMachine       = "repair_time_by_machine"
	MetricRepairByMachineReason = "repair_time_by_machine_reason"
	MetricTrendRepairTime       = "trend_repair_time"
	MetricTrendResponseTime     = "trend_response_time"
)

// Interpreter applies the configured thresholds to an Aggregates and emits
// findings for everything that crosses them.
type Interpreter struct {
	Thresholds *config.Thresholds
}

// NewInterpreter returns an Interpreter using cfg (nil means defaults).
func NewInterpreter(cfg *config.Thresholds) *Interpreter {
	return &Interpreter{Thresholds: cfg}
}

// Interpret produces the deduplicated finding set for one analysis period.
func (in *Interpreter) Interpret(agg *Aggregates) []store.Finding {
	var findings []store.Finding

	findings = append(findings, in.thresholdFindings(AnalysisOverall, MetricResponseTime, agg.Overall)...)
	findings = append(findings, in.thresholdFindings(AnalysisByMachine, MetricRepairByMachine, agg.ByMachine)...)
	findings = append(findings, in.thresholdFindings(AnalysisByMachineReason, MetricRepairByMachineReason, agg.ByMachineReason)...)
	findings = append(findings, in.trendFindings(agg)...)

	return dedup(findings)
}

func (in *Interpreter) thresholdFindings(analysisType, metric string, groups []GroupStat) []store.Finding {
	threshold := in.Thresholds.GetZScore()
	var findings []store.Finding
	for _, g := range groups {
		if g.ZScore <= threshold {
			continue
		}
		f := store.Finding{
			AnalysisType: analysisType,
			EntityID:     g.EntityID,
			Dimension1:   g.Dimension1,
			Dimension2:   g.Dimension2,
			Metric:       metric,
			Value:        g.Value,
			MeanValue:    g.GroupMean,
			ZScore:       g.ZScore,
			Threshold:    threshold,
			SampleCount:  g.SampleCount,
		}
		if g.HasBest {
			f.PctDiff = g.PctWorseThanBest
		}
		f.Summary = thresholdSummary(f)
		findings = append(findings, f)
	}
	return findings
}

func thresholdSummary(f store.Finding) string {
	scope := ""
	if f.Dimension1 != "" {
		scope = " on " + f.Dimension1
	}
	if f.Dimension2 != "" {
		scope += " (" + f.Dimension2 + ")"
	}
	return fmt.Sprintf("%s: %s%s averages %.1f min vs group mean %.1f (z=%.2f, n=%d)",
		f.EntityID, f.Metric, scope, f.Value, f.MeanValue, f.ZScore, f.SampleCount)
}

func (in *Interpreter) trendFindings(agg *Aggregates) []store.Finding {
	minPoints := in.Thresholds.GetMinTrendPoints()
	pValue := in.Thresholds.GetTrendPValue()
	pctThreshold := in.Thresholds.GetTrendPctPerPeriod()

	mechanics := make([]string, 0, len(agg.MonthlySeries))
	for name := range agg.MonthlySeries {
		mechanics = append(mechanics, name)
	}
	sort.Strings(mechanics)

	var findings []store.Finding
	for _, name := range mechanics {
		series := agg.MonthlySeries[name]
		for _, m := range []struct {
			metric string
			values []float64
		}{
			{MetricTrendRepairTime, series.RepairTime},
			{MetricTrendResponseTime, series.ResponseTime},
		} {
			trend := stats.Trend(m.values, minPoints, pValue)
			if trend == nil || !trend.IsSignificant {
				continue
			}
			// These are duration metrics, so a rising trend is a
			// deterioration; improving mechanics are left alone.
			if trend.PctChangePerPeriod <= pctThreshold {
				continue
			}
			findings = append(findings, store.Finding{
				AnalysisType: AnalysisTrend,
				EntityID:     name,
				Metric:       m.metric,
				Value:        trend.PctChangePerPeriod,
				MeanValue:    trend.Intercept,
				Threshold:    pctThreshold,
				SampleCount:  int64(trend.PeriodsAnalyzed),
				Summary: fmt.Sprintf("%s: %s worsening %.1f%%/month over %d months (p=%.3f, %s confidence)",
					name, m.metric, trend.PctChangePerPeriod, trend.PeriodsAnalyzed,
					trend.PValue, ConfidenceLabel(trend.PValue)),
			})
		}
	}
	return findings
}

// ConfidenceLabel buckets a p-value into the label carried on trend
// findings and notifications.
func ConfidenceLabel(pValue float64) string {
	switch {
	case pValue < 0.01:
		return "high"
	case pValue < 0.05:
		return "medium"
	default:
		return "low"
	}
}

type dedupKey struct {
	analysisType string
	entityID     string
	metric       string
	value        float64
	dim1         string
	dim2         string
}

// dedup drops repeat findings within one run; the first occurrence wins.
func dedup(findings []store.Finding) []store.Finding {
	seen := map[dedupKey]bool{}
	var out []store.Finding
	for _, f := range findings {
		key := dedupKey{f.AnalysisType, f.EntityID, f.Metric, f.Value, f.Dimension1, f.Dimension2}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}
