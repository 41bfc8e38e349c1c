package schedule

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/plantops/maintwatch/internal/config"
	"github.com/plantops/maintwatch/internal/monitoring"
	"github.com/plantops/maintwatch/internal/notify"
	"github.com/plantops/maintwatch/internal/store"
	"github.com/plantops/maintwatch/internal/timeutil"
)

// Scheduler creates maintenance tasks for high-risk machines and balances
// them across the crew.
type Scheduler struct {
	DB         *store.DB
	Thresholds *config.Thresholds
	Clock      timeutil.Clock
	Notifier   *notify.Notifier
	// Rand breaks workload ties; injectable so tests can pin the choice.
	Rand *rand.Rand
}

// NewScheduler wires a Scheduler on the given store using the real clock.
func NewScheduler(db *store.DB, cfg *config.Thresholds) *Scheduler {
	return &Scheduler{
		DB:         db,
		Thresholds: cfg,
		Clock:      timeutil.RealClock{},
		Notifier:   notify.NewNotifier(db),
		Rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Result summarizes one scheduling run.
type Result struct {
	TasksCreated    int
	HighPriority    int
	MediumPriority  int
	SkippedExisting int
	Failed          int
}

// Run ranks the high-risk cluster and schedules one task per machine that
// does not already have an open one. Per-machine failures are logged and
// counted, never fatal. maxTasks of 0 falls back to the configured cap.
func (s *Scheduler) Run(ctx context.Context, maxTasks int) (*Result, error) {
	if maxTasks <= 0 {
		maxTasks = s.Thresholds.GetMaxTasks()
	}

	machines, err := s.DB.MachinesInCluster(ctx, HighRiskCluster)
	if err != nil {
		return nil, err
	}
	candidates := RankCandidates(machines, s.Thresholds.GetParetoShare(), maxTasks)

	mechanics, err := s.DB.Mechanics(ctx)
	if err != nil {
		return nil, err
	}
	if len(mechanics) == 0 {
		return nil, fmt.Errorf("no mechanics on file to assign tasks to")
	}

	openCounts, err := s.DB.OpenTaskCounts(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	today := s.Clock.Now()
	for _, c := range candidates {
		exists, err := s.DB.OpenTaskExists(ctx, c.Machine.MachineID)
		if err != nil {
			monitoring.Logf("schedule: failed to check open task for %s: %v", c.Machine.MachineID, err)
			res.Failed++
			continue
		}
		if exists {
			res.SkippedExisting++
			continue
		}

		assignee := s.pickAssignee(mechanics, openCounts)
		dueDays := s.Thresholds.GetMediumPriorityDueDays()
		if c.Priority == PriorityHigh {
			dueDays = s.Thresholds.GetHighPriorityDueDays()
		}

		_, err = s.DB.InsertMaintenanceTask(ctx, store.MaintenanceTask{
			MachineID:    c.Machine.MachineID,
			MachineType:  c.Machine.MachineType,
			IssueType:    "preventive",
			Description:  taskDescription(c),
			Assignee:     assignee.EmployeeNumber,
			MechanicName: assignee.Name + " " + assignee.Surname,
			Priority:     c.Priority,
			DueBy:        today.AddDate(0, 0, dueDays),
		})
		if err != nil {
			if errors.Is(err, store.ErrDuplicateOpenTask) {
				res.SkippedExisting++
			} else {
				monitoring.Logf("schedule: failed to create task for %s: %v", c.Machine.MachineID, err)
				res.Failed++
			}
			continue
		}

		openCounts[assignee.EmployeeNumber]++
		res.TasksCreated++
		if c.Priority == PriorityHigh {
			res.HighPriority++
		} else {
			res.MediumPriority++
		}
	}

	s.notifyRun(ctx, res)
	return res, nil
}

// pickAssignee returns the mechanic with the fewest open tasks, choosing
// uniformly at random among ties so repeated runs don't pile work onto
// whoever sorts first.
func (s *Scheduler) pickAssignee(mechanics []store.Mechanic, openCounts map[string]int64) store.Mechanic {
	minCount := int64(-1)
	var leastLoaded []store.Mechanic
	for _, m := range mechanics {
		c := openCounts[m.EmployeeNumber]
		switch {
		case minCount < 0 || c < minCount:
			minCount = c
			leastLoaded = []store.Mechanic{m}
		case c == minCount:
			leastLoaded = append(leastLoaded, m)
		}
	}
	return leastLoaded[s.Rand.Intn(len(leastLoaded))]
}

func taskDescription(c Candidate) string {
	return fmt.Sprintf("Preventive maintenance for %s (%s): %d failures, %.0f min downtime, risk score %.1f",
		c.Machine.MachineID, c.Machine.MachineType, c.Machine.FailureCount,
		c.Machine.TotalDowntimeMin, c.Machine.RiskScore)
}

// notifyRun sends one aggregate notification per run, never one per task.
func (s *Scheduler) notifyRun(ctx context.Context, res *Result) {
	if s.Notifier == nil || res.TasksCreated == 0 {
		return
	}
	s.Notifier.Sendf(ctx, "",
		fmt.Sprintf("%d maintenance task(s) scheduled", res.TasksCreated),
		"%d high priority, %d medium priority; %d machine(s) already had open tasks",
		res.HighPriority, res.MediumPriority, res.SkippedExisting)
}
