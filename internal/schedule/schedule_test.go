package schedule

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantops/maintwatch/internal/notify"
	"github.com/plantops/maintwatch/internal/store"
	"github.com/plantops/maintwatch/internal/timeutil"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRiskScore(t *testing.T) {
	// 3 per failure, downtime/100, half a point per year of age.
	assert.InDelta(t, 3*9+840.0/100+0.5*6, RiskScore(9, 840, 6), 1e-9)
	assert.Equal(t, 0.0, RiskScore(0, 0, 0))
}

func TestImportClusters(t *testing.T) {
	db := store.SetupTestDB(t)
	defer store.CleanupTestDB(t, db)
	ctx := context.Background()
	clock := timeutil.NewMockClock(date(2026, 3, 1))

	results := []ClusterResult{
		{MachineID: "M-001", MachineType: "press", Cluster: 1, FailureCount: 9, TotalDowntimeMin: 840, MachineAgeYears: 6},
		{MachineID: "M-002", MachineType: "lathe", Cluster: 0, FailureCount: 1, TotalDowntimeMin: 30, MachineAgeYears: 2},
	}
	require.NoError(t, ImportClusters(ctx, db, clock, results))

	m, err := db.GetMachine(ctx, "M-001")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, int64(1), m.Cluster)
	assert.InDelta(t, RiskScore(9, 840, 6), m.RiskScore, 1e-9)
	require.NotNil(t, m.ClusteredAt)

	// Re-import refreshes in place.
	results[0].FailureCount = 11
	require.NoError(t, ImportClusters(ctx, db, clock, results))
	m, err = db.GetMachine(ctx, "M-001")
	require.NoError(t, err)
	assert.Equal(t, int64(11), m.FailureCount)

	err = ImportClusters(ctx, db, clock, []ClusterResult{{Cluster: 1}})
	assert.Error(t, err)
}

func TestRankCandidatesParetoCut(t *testing.T) {
	// Failure counts 50, 30, 15, 5 (total 100): cumulative shares are
	// 0.50, 0.80, 0.95, 1.00, so the first two are high priority.
	machines := []store.Machine{
		{MachineID: "A", FailureCount: 50},
		{MachineID: "B", FailureCount: 30},
		{MachineID: "C", FailureCount: 15},
		{MachineID: "D", FailureCount: 5},
	}

	candidates := RankCandidates(machines, 0.80, 0)
	require.Len(t, candidates, 4)
	assert.Equal(t, PriorityHigh, candidates[0].Priority)
	assert.Equal(t, PriorityHigh, candidates[1].Priority)
	assert.Equal(t, PriorityMedium, candidates[2].Priority)
	assert.Equal(t, PriorityMedium, candidates[3].Priority)

	capped := RankCandidates(machines, 0.80, 2)
	assert.Len(t, capped, 2)

	assert.Empty(t, RankCandidates(nil, 0.80, 0))
}

func newTestScheduler(t *testing.T) (*Scheduler, func()) {
	t.Helper()
	db := store.SetupTestDB(t)
	s := &Scheduler{
		DB:       db,
		Clock:    timeutil.NewMockClock(date(2026, 3, 1)),
		Notifier: notify.NewNotifier(db),
		Rand:     rand.New(rand.NewSource(1)),
	}
	return s, func() { store.CleanupTestDB(t, db) }
}

func seedCrew(t *testing.T, db *store.DB) {
	t.Helper()
	ctx := context.Background()
	for _, m := range []store.Mechanic{
		{EmployeeNumber: "E100", Name: "Jan", Surname: "Novak"},
		{EmployeeNumber: "E200", Name: "Ana", Surname: "Smit"},
		{EmployeeNumber: "E300", Name: "Piet", Surname: "Janssen"},
	} {
		require.NoError(t, db.UpsertMechanic(ctx, m))
	}
}

func TestSchedulerRunCreatesAndSkips(t *testing.T) {
	s, cleanup := newTestScheduler(t)
	defer cleanup()
	ctx := context.Background()
	seedCrew(t, s.DB)

	// Cluster-1 failures 50/30/20: cumulative shares 0.5 and 0.8 stay
	// inside the Pareto cut, the tail machine goes medium.
	require.NoError(t, ImportClusters(ctx, s.DB, s.Clock, []ClusterResult{
		{MachineID: "M-001", MachineType: "press", Cluster: 1, FailureCount: 50},
		{MachineID: "M-002", MachineType: "press", Cluster: 1, FailureCount: 30},
		{MachineID: "M-003", MachineType: "lathe", Cluster: 1, FailureCount: 20},
		{MachineID: "M-004", MachineType: "lathe", Cluster: 0, FailureCount: 40},
	}))

	res, err := s.Run(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TasksCreated)
	assert.Equal(t, 2, res.HighPriority)
	assert.Equal(t, 1, res.MediumPriority)
	assert.Equal(t, 0, res.SkippedExisting)

	tasks, err := s.DB.MaintenanceTasks(ctx, store.StatusOpen, "", 0)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	// Cluster-0 machine never gets a task.
	for _, task := range tasks {
		assert.NotEqual(t, "M-004", task.MachineID)
	}

	// Due dates: high +7d, medium +14d.
	byMachine := map[string]store.MaintenanceTask{}
	for _, task := range tasks {
		byMachine[task.MachineID] = task
	}
	assert.True(t, byMachine["M-001"].DueBy.Equal(date(2026, 3, 8)))
	assert.True(t, byMachine["M-003"].DueBy.Equal(date(2026, 3, 15)))

	// Second run: every machine already has an open task.
	res, err = s.Run(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TasksCreated)
	assert.Equal(t, 3, res.SkippedExisting)

	tasks, err = s.DB.MaintenanceTasks(ctx, store.StatusOpen, "", 0)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)

	// One aggregate notification from the first run, none from the second.
	ns, err := s.DB.Notifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Contains(t, ns[0].Subject, "3 maintenance task(s) scheduled")
}

func TestSchedulerBalancesWorkload(t *testing.T) {
	s, cleanup := newTestScheduler(t)
	defer cleanup()
	ctx := context.Background()
	seedCrew(t, s.DB)

	// Janssen already carries 3 open tasks.
	for _, machineID := range []string{"X-1", "X-2", "X-3"} {
		_, err := s.DB.InsertMaintenanceTask(ctx, store.MaintenanceTask{
			MachineID: machineID, Assignee: "E300", Priority: "medium",
			DueBy: date(2026, 3, 10),
		})
		require.NoError(t, err)
	}

	require.NoError(t, ImportClusters(ctx, s.DB, s.Clock, []ClusterResult{
		{MachineID: "M-001", Cluster: 1, FailureCount: 10},
		{MachineID: "M-002", Cluster: 1, FailureCount: 8},
	}))

	res, err := s.Run(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 2, res.TasksCreated)

	// With workloads [0, 0, 3] the loaded mechanic must never be picked.
	tasks, err := s.DB.MaintenanceTasks(ctx, store.StatusOpen, "E300", 0)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)

	// The two new tasks spread over the two idle mechanics.
	e100, err := s.DB.MaintenanceTasks(ctx, store.StatusOpen, "E100", 0)
	require.NoError(t, err)
	e200, err := s.DB.MaintenanceTasks(ctx, store.StatusOpen, "E200", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, len(e100)+len(e200))
	assert.Equal(t, 1, len(e100))
	assert.Equal(t, 1, len(e200))
}

func TestSchedulerRequiresCrew(t *testing.T) {
	s, cleanup := newTestScheduler(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, ImportClusters(ctx, s.DB, s.Clock, []ClusterResult{
		{MachineID: "M-001", Cluster: 1, FailureCount: 10},
	}))

	_, err := s.Run(ctx, 0)
	assert.Error(t, err)
}

func TestSchedulerMaxTasksCap(t *testing.T) {
	s, cleanup := newTestScheduler(t)
	defer cleanup()
	ctx := context.Background()
	seedCrew(t, s.DB)

	require.NoError(t, ImportClusters(ctx, s.DB, s.Clock, []ClusterResult{
		{MachineID: "M-001", Cluster: 1, FailureCount: 10},
		{MachineID: "M-002", Cluster: 1, FailureCount: 9},
		{MachineID: "M-003", Cluster: 1, FailureCount: 8},
	}))

	res, err := s.Run(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TasksCreated)
}
