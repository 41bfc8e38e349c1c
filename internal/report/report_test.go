package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantops/maintwatch/internal/store"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedWatchSeries(t *testing.T, db *store.DB, values []float64) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := db.InsertWatchItem(ctx, store.WatchItem{
		EntityID: "Janssen", EntityName: "Janssen", IssueType: "repair_time",
		MonitorFrequency: "daily",
		MonitorStart:     date(2026, 3, 1),
		MonitorEnd:       date(2026, 3, 15),
	})
	require.NoError(t, err)
	for i, v := range values {
		require.NoError(t, db.InsertMeasurement(ctx, id, date(2026, 3, 1+i), v))
	}
	return id
}

func TestFindingsChartRendersHTML(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)
	ctx := context.Background()

	_, err := db.InsertFinding(ctx, store.Finding{
		AnalysisType: "overall", EntityID: "Janssen",
		Metric: "response_time", Value: 30, MeanValue: 18, ZScore: 1.4,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	r := NewReporter(db, nil)
	require.NoError(t, r.FindingsChart(ctx, "overall", 50, &buf))
	assert.Contains(t, buf.String(), "Janssen")
	assert.Contains(t, buf.String(), "z-score")
}

func TestFindingsChartEmptyIsError(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)

	var buf bytes.Buffer
	err := NewReporter(db, nil).FindingsChart(context.Background(), "overall", 50, &buf)
	assert.Error(t, err)
}

func TestMeasurementChartRendersHTML(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)

	id := seedWatchSeries(t, db, []float64{100, 95, 90, 85})

	var buf bytes.Buffer
	r := NewReporter(db, nil)
	require.NoError(t, r.MeasurementChart(context.Background(), id, &buf))
	assert.Contains(t, buf.String(), "repair_time")
	assert.Contains(t, buf.String(), "2026-03-01")
}

func TestTrendPNG(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)

	id := seedWatchSeries(t, db, []float64{100, 95, 90, 85, 80})

	png, err := NewReporter(db, nil).TrendPNG(context.Background(), id)
	require.NoError(t, err)
	require.NotEmpty(t, png)
	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestTrendPNGNoMeasurements(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)
	ctx := context.Background()

	id, err := db.InsertWatchItem(ctx, store.WatchItem{
		EntityID: "Smit", IssueType: "repair_time",
		MonitorStart: date(2026, 3, 1), MonitorEnd: date(2026, 3, 15),
	})
	require.NoError(t, err)

	_, err = NewReporter(db, nil).TrendPNG(ctx, id)
	assert.Error(t, err)
}
