package runlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantops/maintwatch/internal/store"
	"github.com/plantops/maintwatch/internal/timeutil"
)

func setup(t *testing.T) (*Recorder, *timeutil.MockClock, func()) {
	t.Helper()
	db := store.SetupTestDB(t)
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	rec := &Recorder{DB: db, Clock: clock}
	return rec, clock, func() { store.CleanupTestDB(t, db) }
}

func TestCanRunNoHistory(t *testing.T) {
	rec, _, cleanup := setup(t)
	defer cleanup()

	ok, last, err := rec.CanRun(context.Background(), "scheduler", 30)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, last)
}

func TestThrottleBlocksRecentRun(t *testing.T) {
	rec, clock, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	runID := rec.Start(ctx, "scheduler", nil, nil, "scheduled run")
	require.NotEmpty(t, runID)
	require.NoError(t, rec.Complete(ctx, runID, 5, 5, "5 tasks", nil))

	ok, last, err := rec.CanRun(ctx, "scheduler", 30)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NotNil(t, last)

	// 10 days later, still blocked.
	clock.Advance(10 * 24 * time.Hour)
	ok, _, err = rec.CanRun(ctx, "scheduler", 30)
	require.NoError(t, err)
	assert.False(t, ok)

	// Past the 30-day mark, allowed again.
	clock.Advance(21 * 24 * time.Hour)
	ok, _, err = rec.CanRun(ctx, "scheduler", 30)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFailedRunsDoNotThrottle(t *testing.T) {
	rec, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	runID := rec.Start(ctx, "analyzer", nil, nil, "")
	require.NoError(t, rec.Fail(ctx, runID, "source table locked"))

	ok, last, err := rec.CanRun(ctx, "analyzer", 30)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, last)

	runs, err := rec.DB.ToolRunsFor(ctx, "analyzer", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunFailed, runs[0].Status)
	assert.Equal(t, "source table locked", runs[0].Summary)
}

func TestThrottleIsPerTool(t *testing.T) {
	rec, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	runID := rec.Start(ctx, "scheduler", nil, nil, "")
	require.NoError(t, rec.Complete(ctx, runID, 1, 1, "", nil))

	ok, _, err := rec.CanRun(ctx, "analyzer", 30)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompleteRecordsMetadata(t *testing.T) {
	rec, _, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	runID := rec.Start(ctx, "analyzer", &start, &end, "monthly analysis")
	require.NoError(t, rec.Complete(ctx, runID, 40, 3, "3 findings",
		map[string]any{"forced": true}))

	runs, err := rec.DB.ToolRunsFor(ctx, "analyzer", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunCompleted, runs[0].Status)
	assert.Equal(t, int64(40), runs[0].ItemsProcessed)
	assert.Contains(t, runs[0].Metadata, `"forced":true`)
	require.NotNil(t, runs[0].PeriodStart)
	assert.True(t, runs[0].PeriodStart.Equal(start))
}

func TestBlockedResult(t *testing.T) {
	rec, clock, cleanup := setup(t)
	defer cleanup()

	lastRun := clock.Now().Add(-10 * 24 * time.Hour)
	blocked := rec.BlockedResult("scheduler", lastRun, 30)

	assert.Equal(t, "frequency_blocked", blocked.Status)
	assert.Equal(t, "scheduler", blocked.Tool)
	assert.Equal(t, 20, blocked.DaysRemaining)
	assert.Contains(t, blocked.Message, "20 day(s)")
}
