package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZScores(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	scores, mean, stddev := ZScores(values)

	require.Len(t, scores, len(values))
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.0, stddev, 1e-9)
	assert.InDelta(t, -1.5, scores[0], 1e-9)
	assert.InDelta(t, 2.0, scores[7], 1e-9)

	// Scores of the whole group sum to zero.
	var sum float64
	for _, s := range scores {
		sum += s
	}
	assert.InDelta(t, 0.0, sum, 1e-9)
}

func TestZScoresUniformGroup(t *testing.T) {
	scores, mean, stddev := ZScores([]float64{3, 3, 3, 3})

	assert.Equal(t, 0.0, stddev)
	assert.Equal(t, 3.0, mean)
	for _, s := range scores {
		assert.Equal(t, 0.0, s)
	}
}

func TestZScoresEmpty(t *testing.T) {
	scores, mean, stddev := ZScores(nil)
	assert.Empty(t, scores)
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, stddev)
}

func TestZScoresLoose(t *testing.T) {
	values := []any{2.0, "broken", 4, nil, "6"}
	scores, mean, stddev := ZScoresLoose(values)

	require.Len(t, scores, 5)
	assert.InDelta(t, 4.0, mean, 1e-9)
	assert.Greater(t, stddev, 0.0)

	// Non-numeric entries score 0, numeric entries keep their position.
	assert.Equal(t, 0.0, scores[1])
	assert.Equal(t, 0.0, scores[3])
	assert.InDelta(t, -scores[4], scores[0], 1e-9)
	assert.Equal(t, 0.0, scores[2])
}

func TestZScoresLooseAllBad(t *testing.T) {
	scores, mean, stddev := ZScoresLoose([]any{"x", nil, struct{}{}})
	assert.Equal(t, []float64{0, 0, 0}, scores)
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, stddev)
}

func TestPctWorseThanBest(t *testing.T) {
	pct, ok := PctWorseThanBest(15, 10)
	require.True(t, ok)
	assert.InDelta(t, 50.0, pct, 1e-9)

	pct, ok = PctWorseThanBest(10, 10)
	require.True(t, ok)
	assert.InDelta(t, 0.0, pct, 1e-9)
}

func TestPctWorseThanBestBadBaseline(t *testing.T) {
	_, ok := PctWorseThanBest(5, 0)
	assert.False(t, ok)

	_, ok = PctWorseThanBest(5, -2)
	assert.False(t, ok)
}

func TestTrendTooFewPoints(t *testing.T) {
	assert.Nil(t, Trend([]float64{1, 2}, 3, 0.05))
	assert.Nil(t, Trend(nil, 3, 0.05))
}

func TestTrendRisingSeries(t *testing.T) {
	// Strictly linear rise, perfect fit.
	res := Trend([]float64{10, 12, 14, 16, 18}, 3, 0.05)
	require.NotNil(t, res)

	assert.InDelta(t, 2.0, res.Slope, 1e-9)
	assert.InDelta(t, 10.0, res.Intercept, 1e-9)
	assert.InDelta(t, 1.0, res.RSquared, 1e-9)
	assert.True(t, res.IsSignificant)
	assert.Equal(t, 5, res.PeriodsAnalyzed)

	// Total change 8 over baseline 10 is 80%, spread over 4 periods.
	assert.InDelta(t, 20.0, res.PctChangePerPeriod, 1e-9)
}

func TestTrendFlatSeries(t *testing.T) {
	res := Trend([]float64{5, 5, 5, 5, 5}, 3, 0.05)
	require.NotNil(t, res)

	assert.InDelta(t, 0.0, res.Slope, 1e-9)
	assert.InDelta(t, 0.0, res.PctChangePerPeriod, 1e-9)
	assert.False(t, res.IsSignificant)
}

func TestTrendNoisySeriesNotSignificant(t *testing.T) {
	res := Trend([]float64{10, 14, 9, 13, 10, 12}, 3, 0.05)
	require.NotNil(t, res)
	assert.False(t, res.IsSignificant)
	assert.Greater(t, res.PValue, 0.05)
}

func TestTrendNonPositiveIntercept(t *testing.T) {
	// Intercept fits below zero; the percentage falls back to the first value.
	res := Trend([]float64{1, 2, 8, 13}, 3, 0.05)
	require.NotNil(t, res)
	assert.Less(t, res.Intercept, 0.0)
	assert.Greater(t, res.PctChangePerPeriod, 0.0)
	assert.False(t, math.IsInf(res.PctChangePerPeriod, 0))
}

func TestTTestSplitInsufficientData(t *testing.T) {
	res := TTestSplit([]float64{1, 2, 3}, 0.10)
	assert.True(t, res.InsufficientData)
	assert.False(t, res.IsSignificant)
	assert.Equal(t, 1.0, res.PValue)
}

func TestTTestSplitClearShift(t *testing.T) {
	// First half around 100, second half around 50.
	values := []float64{100, 102, 98, 101, 50, 52, 48, 51}
	res := TTestSplit(values, 0.10)

	require.False(t, res.InsufficientData)
	assert.True(t, res.IsSignificant)
	assert.Less(t, res.PValue, 0.01)
	assert.Greater(t, res.Confidence, 99.0)
}

func TestTTestSplitNoShift(t *testing.T) {
	values := []float64{50, 52, 48, 51, 49, 51, 50, 49}
	res := TTestSplit(values, 0.10)

	require.False(t, res.InsufficientData)
	assert.False(t, res.IsSignificant)
}

func TestTTestSplitIdenticalHalves(t *testing.T) {
	res := TTestSplit([]float64{5, 5, 5, 5}, 0.10)
	require.False(t, res.InsufficientData)
	assert.False(t, res.IsSignificant)
	assert.Equal(t, 1.0, res.PValue)
}

func TestMovingAverage(t *testing.T) {
	avg, ok := MovingAverage([]float64{1, 2, 3, 4, 5}, 3)
	require.True(t, ok)
	assert.InDelta(t, 4.0, avg, 1e-9)

	_, ok = MovingAverage([]float64{1, 2}, 3)
	assert.False(t, ok)

	_, ok = MovingAverage([]float64{1, 2, 3}, 0)
	assert.False(t, ok)
}

func TestPctChange(t *testing.T) {
	assert.InDelta(t, -50.0, PctChange(10, 5), 1e-9)
	assert.InDelta(t, 25.0, PctChange(8, 10), 1e-9)
	assert.Equal(t, 0.0, PctChange(0, 10))
}

func TestImprovementPct(t *testing.T) {
	// A 20% drop in repair time is a 20% improvement.
	assert.InDelta(t, 20.0, ImprovementPct(-20.0, "repair_time"), 1e-9)
	assert.InDelta(t, 20.0, ImprovementPct(-20.0, "response_time"), 1e-9)

	// For count-style metrics the sign stays as-is.
	assert.InDelta(t, -20.0, ImprovementPct(-20.0, "failure_count"), 1e-9)
	assert.InDelta(t, 15.0, ImprovementPct(15.0, "quality"), 1e-9)
}

func TestPercentile(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6}

	p, ok := Percentile(values, 50)
	require.True(t, ok)
	assert.Equal(t, 3.0, p)

	p, ok = Percentile(values, 100)
	require.True(t, ok)
	assert.Equal(t, 9.0, p)

	p, ok = Percentile(values, 0)
	require.True(t, ok)
	assert.Equal(t, 1.0, p)

	_, ok = Percentile(nil, 50)
	assert.False(t, ok)
}

func TestSlopePValuePerfectFit(t *testing.T) {
	res := Trend([]float64{1, 2, 3, 4}, 3, 0.05)
	require.NotNil(t, res)
	assert.Equal(t, 0.0, res.PValue)
	assert.False(t, math.IsNaN(res.PctChangePerPeriod))
}
