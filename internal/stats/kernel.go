// Package stats is the pure statistics kernel behind findings generation and
// watchlist evaluation: z-score normalisation, percentage-of-best comparison,
// least-squares trend fitting and a two-sample significance test.
//
// Every function is stateless and total: bad input degrades to zeros or a
// "not ok" result instead of an error, because the callers prefer partial
// batch results over aborting a whole analysis run.
package stats

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ZScores converts values to z-scores against the group's own mean and
// population standard deviation. When the deviation is zero (or the group is
// empty) every score is exactly 0 so a uniform group never flags anyone.
func ZScores(values []float64) (scores []float64, mean, stddev float64) {
	scores = make([]float64, len(values))
	if len(values) == 0 {
		return scores, 0, 0
	}

	mean = stat.Mean(values, nil)
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	stddev = math.Sqrt(sumSq / float64(len(values)))

	if stddev == 0 {
		return scores, mean, 0
	}
	for i, v := range values {
		scores[i] = (v - mean) / stddev
	}
	return scores, mean, stddev
}

// ZScoresLoose is ZScores over loosely typed rows: entries that cannot be
// read as a number are skipped for the mean/deviation and receive a score of
// 0, preserving positional alignment with the input.
func ZScoresLoose(values []any) (scores []float64, mean, stddev float64) {
	scores = make([]float64, len(values))

	var clean []float64
	numeric := make([]bool, len(values))
	for i, v := range values {
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		numeric[i] = true
		clean = append(clean, f)
	}
	if len(clean) == 0 {
		return scores, 0, 0
	}

	cleanScores, mean, stddev := ZScores(clean)
	j := 0
	for i := range values {
		if numeric[i] {
			scores[i] = cleanScores[j]
			j++
		}
	}
	return scores, mean, stddev
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// PctWorseThanBest returns how many percent value sits above best. A best of
// zero or below is a nonsensical baseline, reported as ok=false.
func PctWorseThanBest(value, best float64) (float64, bool) {
	if best <= 0 {
		return 0, false
	}
	return (value - best) / best * 100.0, true
}

// TrendResult is the outcome of a least-squares trend fit over an
// index-based x axis.
type TrendResult struct {
	Slope              float64
	Intercept          float64
	PctChangePerPeriod float64
	PValue             float64
	RSquared           float64
	IsSignificant      bool
	PeriodsAnalyzed    int
}

// Trend fits an ordinary least-squares line through values indexed 0..n-1
// (index-based rather than raw timestamps, which keeps the slope readable
// regardless of sampling cadence). Returns nil when fewer than minPoints
// values exist. significanceP is the p-value below which the trend counts as
// significant.
func Trend(values []float64, minPoints int, significanceP float64) *TrendResult {
	if minPoints < 2 {
		minPoints = 2
	}
	n := len(values)
	if n < minPoints {
		return nil
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}

	intercept, slope := stat.LinearRegression(xs, values, nil, false)
	r2 := stat.RSquared(xs, values, nil, intercept, slope)
	p := slopePValue(xs, values, intercept, slope)

	// Normalise the total predicted change against the regression's own
	// starting level, falling back to the first observation when the
	// intercept is unusable.
	start := intercept
	if start <= 0 {
		start = values[0]
	}
	var pctPerPeriod float64
	if start > 0 {
		totalChange := slope * float64(n-1)
		pctPerPeriod = (totalChange / start) * 100.0 / float64(n-1)
	}

	return &TrendResult{
		Slope:              slope,
		Intercept:          intercept,
		PctChangePerPeriod: pctPerPeriod,
		PValue:             p,
		RSquared:           r2,
		IsSignificant:      p < significanceP,
		PeriodsAnalyzed:    n,
	}
}

// slopePValue is the two-sided p-value for the null hypothesis slope==0,
// using the t distribution with n-2 degrees of freedom.
func slopePValue(xs, ys []float64, intercept, slope float64) float64 {
	n := len(xs)
	if n < 3 {
		return 1.0
	}

	var sse, sxx float64
	meanX := stat.Mean(xs, nil)
	for i := range xs {
		resid := ys[i] - (intercept + slope*xs[i])
		sse += resid * resid
		dx := xs[i] - meanX
		sxx += dx * dx
	}
	if sxx == 0 {
		return 1.0
	}
	se := math.Sqrt(sse / float64(n-2) / sxx)
	if se == 0 {
		// Perfect fit: a non-zero slope is as significant as it gets.
		if slope == 0 {
			return 1.0
		}
		return 0.0
	}

	t := math.Abs(slope / se)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	return 2 * dist.Survival(t)
}

// SignificanceResult is the outcome of the split-halves significance test.
type SignificanceResult struct {
	IsSignificant    bool
	PValue           float64
	Confidence       float64
	InsufficientData bool
}

// TTestSplit splits a measurement series at its midpoint and runs a pooled
// two-sample t-test between the halves. The significance threshold is looser
// than the trend test's on purpose: watchlist series are short, and the test
// exists to catch changes a regression over four points cannot.
//
// Fewer than 4 total points is flagged as insufficient data.
func TTestSplit(values []float64, significanceP float64) SignificanceResult {
	if len(values) < 4 {
		return SignificanceResult{PValue: 1.0, InsufficientData: true}
	}

	mid := len(values) / 2
	first, second := values[:mid], values[mid:]
	p := pooledTTestP(first, second)

	return SignificanceResult{
		IsSignificant: p <= significanceP,
		PValue:        p,
		Confidence:    (1.0 - p) * 100.0,
	}
}

// pooledTTestP computes the two-sided p-value of an independent two-sample
// t-test assuming equal variances.
func pooledTTestP(a, b []float64) float64 {
	na, nb := float64(len(a)), float64(len(b))
	meanA := stat.Mean(a, nil)
	meanB := stat.Mean(b, nil)
	varA := stat.Variance(a, nil)
	varB := stat.Variance(b, nil)

	df := na + nb - 2
	if df <= 0 {
		return 1.0
	}
	pooled := ((na-1)*varA + (nb-1)*varB) / df
	se := math.Sqrt(pooled * (1/na + 1/nb))
	if se == 0 {
		if meanA == meanB {
			return 1.0
		}
		return 0.0
	}

	t := math.Abs((meanA - meanB) / se)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.Survival(t)
}

// MovingAverage returns the mean of the last window values. ok is false when
// fewer than window values exist.
func MovingAverage(values []float64, window int) (float64, bool) {
	if window < 1 || len(values) < window {
		return 0, false
	}
	tail := values[len(values)-window:]
	return stat.Mean(tail, nil), true
}

// PctChange is the raw percentage change from baseline to latest. A zero
// baseline yields 0 rather than a division blow-up.
func PctChange(baseline, latest float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (latest - baseline) / baseline * 100.0
}

// timeMetrics are the issue types where a falling value is an improvement.
var timeMetrics = map[string]bool{
	"response_time": true,
	"repair_time":   true,
}

// IsTimeMetric reports whether issueType measures a duration.
func IsTimeMetric(issueType string) bool {
	return timeMetrics[issueType]
}

// ImprovementPct normalises a raw change percentage so that positive always
// means improvement: for duration metrics a drop is the win, so the sign is
// flipped.
func ImprovementPct(rawChangePct float64, issueType string) float64 {
	if IsTimeMetric(issueType) {
		return -rawChangePct
	}
	return rawChangePct
}

// Percentile returns the p-th percentile (0..100) of values using the
// nearest-rank method. Used by reporting, not by the decision rules.
func Percentile(values []float64, p float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0], true
	}
	if p >= 100 {
		return sorted[len(sorted)-1], true
	}
	rank := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	return sorted[rank], true
}
