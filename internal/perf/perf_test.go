package perf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantops/maintwatch/internal/store"
	"github.com/plantops/maintwatch/internal/timeutil"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seedEvents writes one event per mechanic per day with fixed per-mechanic
// metric values.
func seedEvents(t *testing.T, db *store.DB, day time.Time, rows []store.DowntimeEvent) {
	t.Helper()
	ctx := context.Background()
	for i, ev := range rows {
		if ev.ResolvedAt.IsZero() {
			ev.ResolvedAt = day.Add(time.Duration(i) * time.Hour)
		}
		require.NoError(t, db.RecordDowntimeEvent(ctx, ev))
	}
}

func TestAggregateOverallZScores(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)

	// Three mechanics; Janssen is clearly slow to respond.
	seedEvents(t, db, date(2026, 2, 10), []store.DowntimeEvent{
		{MechanicName: "Novak", MachineType: "press", ResponseTimeMin: 10, RepairTimeMin: 60},
		{MechanicName: "Smit", MachineType: "press", ResponseTimeMin: 12, RepairTimeMin: 65},
		{MechanicName: "Janssen", MachineType: "press", ResponseTimeMin: 40, RepairTimeMin: 62},
	})

	agg, err := NewAnalyzer(db).Aggregate(context.Background(), date(2026, 2, 1), date(2026, 3, 1))
	require.NoError(t, err)
	require.Len(t, agg.Overall, 3)
	assert.Equal(t, 3, agg.EventCount)

	byName := map[string]GroupStat{}
	for _, g := range agg.Overall {
		byName[g.EntityID] = g
	}
	assert.Greater(t, byName["Janssen"].ZScore, 1.0)
	assert.Less(t, byName["Novak"].ZScore, 0.0)

	// Novak is the best; Janssen is 300% worse.
	require.True(t, byName["Janssen"].HasBest)
	assert.InDelta(t, 300.0, byName["Janssen"].PctWorseThanBest, 1e-9)
	assert.InDelta(t, 0.0, byName["Novak"].PctWorseThanBest, 1e-9)
}

func TestAggregateDropsSingleMechanicGroups(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)

	seedEvents(t, db, date(2026, 2, 10), []store.DowntimeEvent{
		{MechanicName: "Novak", MachineType: "press", Reason: "belt", RepairTimeMin: 60},
		{MechanicName: "Smit", MachineType: "press", Reason: "belt", RepairTimeMin: 90},
		// Only mechanic on the lathe: no comparison group.
		{MechanicName: "Janssen", MachineType: "lathe", Reason: "belt", RepairTimeMin: 120},
	})

	agg, err := NewAnalyzer(db).Aggregate(context.Background(), date(2026, 2, 1), date(2026, 3, 1))
	require.NoError(t, err)

	for _, g := range agg.ByMachine {
		assert.NotEqual(t, "lathe", g.Dimension1)
	}
	assert.Len(t, agg.ByMachine, 2)
	assert.Len(t, agg.ByMachineReason, 2)
}

func TestInterpretEmitsThresholdFindings(t *testing.T) {
	agg := &Aggregates{
		Overall: []GroupStat{
			{EntityID: "Novak", Value: 10, ZScore: -0.7, GroupMean: 18, SampleCount: 5},
			{EntityID: "Janssen", Value: 30, ZScore: 1.4, GroupMean: 18, SampleCount: 6, PctWorseThanBest: 200, HasBest: true},
		},
	}

	findings := NewInterpreter(nil).Interpret(agg)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, AnalysisOverall, f.AnalysisType)
	assert.Equal(t, "Janssen", f.EntityID)
	assert.Equal(t, MetricResponseTime, f.Metric)
	assert.Equal(t, 1.0, f.Threshold)
	assert.Equal(t, 200.0, f.PctDiff)
	assert.Contains(t, f.Summary, "Janssen")
}

func TestInterpretTrendFindings(t *testing.T) {
	agg := &Aggregates{
		MonthlySeries: map[string]MonthlySeries{
			// Repair time worsening sharply month over month.
			"Janssen": {
				Months:       []string{"2026-01", "2026-02", "2026-03", "2026-04"},
				RepairTime:   []float64{60, 75, 90, 105},
				ResponseTime: []float64{12, 12, 12, 12},
			},
			// Improving mechanic stays unflagged.
			"Novak": {
				Months:       []string{"2026-01", "2026-02", "2026-03", "2026-04"},
				RepairTime:   []float64{90, 80, 70, 60},
				ResponseTime: []float64{10, 10, 10, 10},
			},
		},
	}

	findings := NewInterpreter(nil).Interpret(agg)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, AnalysisTrend, f.AnalysisType)
	assert.Equal(t, "Janssen", f.EntityID)
	assert.Equal(t, MetricTrendRepairTime, f.Metric)
	assert.Greater(t, f.Value, 5.0)
	assert.Contains(t, f.Summary, "high confidence")
}

func TestDedupKeepsFirst(t *testing.T) {
	f := store.Finding{
		AnalysisType: AnalysisOverall, EntityID: "Janssen",
		Metric: MetricResponseTime, Value: 30,
	}
	dup := f
	dup.Summary = "second occurrence"
	other := f
	other.Value = 31

	out := dedup([]store.Finding{f, dup, other})
	require.Len(t, out, 2)
	assert.Empty(t, out[0].Summary)
	assert.Equal(t, 31.0, out[1].Value)
}

func TestConfidenceLabel(t *testing.T) {
	assert.Equal(t, "high", ConfidenceLabel(0.004))
	assert.Equal(t, "medium", ConfidenceLabel(0.03))
	assert.Equal(t, "low", ConfidenceLabel(0.2))
}

func TestIssueTypeMapping(t *testing.T) {
	assert.Equal(t, "response_time", IssueType(MetricResponseTime))
	assert.Equal(t, "response_time", IssueType(MetricTrendResponseTime))
	assert.Equal(t, "repair_time", IssueType(MetricRepairByMachine))
	assert.Equal(t, "repair_time", IssueType(MetricRepairByMachineReason))
	assert.Equal(t, "repair_time", IssueType(MetricTrendRepairTime))
}

func TestPipelineOpensWatchItemsOnce(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)
	ctx := context.Background()

	// Janssen's response time is far above the other two mechanics'. Repair
	// times are uniform so only the response comparison fires.
	seedEvents(t, db, date(2026, 2, 10), []store.DowntimeEvent{
		{MechanicName: "Novak", MachineType: "press", ResponseTimeMin: 10, RepairTimeMin: 60},
		{MechanicName: "Smit", MachineType: "press", ResponseTimeMin: 12, RepairTimeMin: 60},
		{MechanicName: "Janssen", MachineType: "press", ResponseTimeMin: 45, RepairTimeMin: 60},
	})

	clock := timeutil.NewMockClock(date(2026, 3, 1))
	p := &Pipeline{DB: db, Clock: clock}

	res, err := p.Run(ctx, date(2026, 2, 1), date(2026, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, res.EventsAnalyzed)
	require.Equal(t, 1, res.FindingsCreated)
	require.Equal(t, 1, res.WatchItemsOpened)

	items, err := db.ActiveWatchItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, "Janssen", item.EntityID)
	assert.Equal(t, "response_time", item.IssueType)
	assert.Equal(t, "daily", item.MonitorFrequency)
	assert.True(t, item.MonitorEnd.Equal(date(2026, 3, 15)))
	require.NotNil(t, item.FindingID)

	// A second run finds the same outlier but must not double-watch it.
	res, err = p.Run(ctx, date(2026, 2, 1), date(2026, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FindingsCreated)
	assert.Equal(t, 0, res.WatchItemsOpened)

	items, err = db.ActiveWatchItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
