// Package schedule turns machine risk-cluster results into assigned,
// prioritized preventive-maintenance tasks.
package schedule

import (
	"context"
	"fmt"

	"github.com/plantops/maintwatch/internal/store"
	"github.com/plantops/maintwatch/internal/timeutil"
)

// HighRiskCluster is the cluster label the upstream clustering step gives
// to the failure-prone machine group.
const HighRiskCluster = 1

// Priorities assigned to scheduled tasks.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// ClusterResult is the output contract of the external clustering step,
// one row per machine.
type ClusterResult struct {
	MachineID        string  `json:"machine_id"`
	MachineType      string  `json:"machine_type"`
	Cluster          int64   `json:"cluster"`
	FailureCount     int64   `json:"failure_count"`
	TotalDowntimeMin float64 `json:"total_downtime"`
	MachineAgeYears  float64 `json:"machine_age_years"`
}

// RiskScore is the urgency score for a machine: failures dominate, with
// downtime and age as lighter signals.
func RiskScore(failureCount int64, totalDowntimeMin, ageYears float64) float64 {
	return 3.0*float64(failureCount) + totalDowntimeMin/100.0 + 0.5*ageYears
}

// ImportClusters persists a clustering batch, computing each machine's risk
// score. Existing machine rows are refreshed in place.
func ImportClusters(ctx context.Context, db *store.DB, clock timeutil.Clock, results []ClusterResult) error {
	now := clock.Now()
	for _, r := range results {
		if r.MachineID == "" {
			return fmt.Errorf("cluster result with empty machine_id")
		}
		err := db.UpsertMachine(ctx, store.Machine{
			MachineID:        r.MachineID,
			MachineType:      r.MachineType,
			FailureCount:     r.FailureCount,
			TotalDowntimeMin: r.TotalDowntimeMin,
			Cluster:          r.Cluster,
			RiskScore:        RiskScore(r.FailureCount, r.TotalDowntimeMin, r.MachineAgeYears),
			ClusteredAt:      &now,
		})
		if err != nil {
			return fmt.Errorf("failed to import cluster result for %s: %w", r.MachineID, err)
		}
	}
	return nil
}

// Candidate is a machine selected for preventive maintenance.
type Candidate struct {
	Machine  store.Machine
	Priority string
}

// RankCandidates applies the Pareto cut to the high-risk cluster: machines
// are taken in failure-count order, and those inside the leading
// paretoShare of total failures get high priority, the tail medium.
// maxTasks caps the list (0 means no cap). Machines must already be sorted
// by failure count descending.
func RankCandidates(machines []store.Machine, paretoShare float64, maxTasks int) []Candidate {
	var total int64
	for _, m := range machines {
		total += m.FailureCount
	}

	candidates := make([]Candidate, 0, len(machines))
	var cumulative int64
	for _, m := range machines {
		cumulative += m.FailureCount
		priority := PriorityMedium
		if total > 0 && float64(cumulative)/float64(total) <= paretoShare {
			priority = PriorityHigh
		}
		candidates = append(candidates, Candidate{Machine: m, Priority: priority})
	}

	if maxTasks > 0 && len(candidates) > maxTasks {
		candidates = candidates[:maxTasks]
	}
	return candidates
}
