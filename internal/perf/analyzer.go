// Package perf turns raw downtime events into statistical findings about
// mechanic performance, and opens watch-list monitoring for each finding.
package perf

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/plantops/maintwatch/internal/stats"
	"github.com/plantops/maintwatch/internal/store"
)

// GroupStat is one mechanic's aggregate within a comparison group, scored
// against the rest of that group.
type GroupStat struct {
	EntityID   string
	Dimension1 string
	Dimension2 string

	Value            float64
	ZScore           float64
	GroupMean        float64
	GroupStdDev      float64
	PctWorseThanBest float64
	HasBest          bool
	SampleCount      int64
}

// MonthlySeries holds one mechanic's month-bucketed averages, oldest first.
type MonthlySeries struct {
	Months       []string
	RepairTime   []float64
	ResponseTime []float64
}

// Aggregates is the full statistical picture of one analysis period.
type Aggregates struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	EventCount  int

	// Overall compares mean response time across the whole crew.
	Overall []GroupStat
	// ByMachine compares mean repair time between mechanics working the
	// same machine type.
	ByMachine []GroupStat
	// ByMachineReason narrows further to machine type plus failure reason;
	// groups where only one mechanic appears carry no comparison and are
	// dropped.
	ByMachineReason []GroupStat
	// MonthlySeries feeds the trend analysis, keyed by mechanic name.
	MonthlySeries map[string]MonthlySeries
}

// Analyzer aggregates downtime events into comparison groups.
type Analyzer struct {
	DB *store.DB
}

// NewAnalyzer returns an Analyzer on the given store.
func NewAnalyzer(db *store.DB) *Analyzer {
	return &Analyzer{DB: db}
}

// Aggregate loads events resolved within [start, end) and computes every
// comparison group.
func (a *Analyzer) Aggregate(ctx context.Context, start, end time.Time) (*Aggregates, error) {
	events, err := a.DB.DowntimeEventsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load events for analysis: %w", err)
	}

	agg := &Aggregates{
		PeriodStart:   start,
		PeriodEnd:     end,
		EventCount:    len(events),
		MonthlySeries: map[string]MonthlySeries{},
	}
	if len(events) == 0 {
		return agg, nil
	}

	agg.Overall = scoreGroups(groupMeans(events, func(ev store.DowntimeEvent) (groupKey, float64) {
		return groupKey{entity: ev.MechanicName}, ev.ResponseTimeMin
	}))

	// Repair-time comparisons only make sense between mechanics working
	// the same machine type, so z-scores are computed per dimension group.
	agg.ByMachine = scorePerDimension(groupMeans(events, func(ev store.DowntimeEvent) (groupKey, float64) {
		return groupKey{entity: ev.MechanicName, dim1: ev.MachineType}, ev.RepairTimeMin
	}), 1)

	agg.ByMachineReason = scorePerDimension(groupMeans(events, func(ev store.DowntimeEvent) (groupKey, float64) {
		return groupKey{entity: ev.MechanicName, dim1: ev.MachineType, dim2: ev.Reason}, ev.RepairTimeMin
	}), 2)

	agg.MonthlySeries = monthlySeries(events)

	return agg, nil
}

type groupKey struct {
	entity string
	dim1   string
	dim2   string
}

type groupMean struct {
	key   groupKey
	mean  float64
	count int64
}

func groupMeans(events []store.DowntimeEvent, pick func(store.DowntimeEvent) (groupKey, float64)) []groupMean {
	sums := map[groupKey]float64{}
	counts := map[groupKey]int64{}
	for _, ev := range events {
		key, v := pick(ev)
		sums[key] += v
		counts[key]++
	}

	means := make([]groupMean, 0, len(sums))
	for key, sum := range sums {
		means = append(means, groupMean{key: key, mean: sum / float64(counts[key]), count: counts[key]})
	}
	sort.Slice(means, func(i, j int) bool {
		a, b := means[i].key, means[j].key
		if a.dim1 != b.dim1 {
			return a.dim1 < b.dim1
		}
		if a.dim2 != b.dim2 {
			return a.dim2 < b.dim2
		}
		return a.entity < b.entity
	})
	return means
}

// scoreGroups z-scores one flat set of means against each other. Lower is
// better for every metric here, so best is the minimum.
func scoreGroups(means []groupMean) []GroupStat {
	values := make([]float64, len(means))
	for i, m := range means {
		values[i] = m.mean
	}
	scores, mean, stddev := stats.ZScores(values)

	best, hasBest := minValue(values)
	out := make([]GroupStat, len(means))
	for i, m := range means {
		st := GroupStat{
			EntityID:    m.key.entity,
			Dimension1:  m.key.dim1,
			Dimension2:  m.key.dim2,
			Value:       m.mean,
			ZScore:      scores[i],
			GroupMean:   mean,
			GroupStdDev: stddev,
			SampleCount: m.count,
		}
		if hasBest {
			if pct, ok := stats.PctWorseThanBest(m.mean, best); ok {
				st.PctWorseThanBest = pct
				st.HasBest = true
			}
		}
		out[i] = st
	}
	return out
}

// scorePerDimension partitions means by their dimension key and scores each
// partition independently. Partitions with a single mechanic are dropped:
// a group of one has nobody to be worse than. dims selects how much of the
// key identifies a partition.
func scorePerDimension(means []groupMean, dims int) []GroupStat {
	partitions := map[groupKey][]groupMean{}
	for _, m := range means {
		pk := groupKey{dim1: m.key.dim1}
		if dims >= 2 {
			pk.dim2 = m.key.dim2
		}
		partitions[pk] = append(partitions[pk], m)
	}

	keys := make([]groupKey, 0, len(partitions))
	for k := range partitions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].dim1 != keys[j].dim1 {
			return keys[i].dim1 < keys[j].dim1
		}
		return keys[i].dim2 < keys[j].dim2
	})

	var out []GroupStat
	for _, k := range keys {
		part := partitions[k]
		if len(part) < 2 {
			continue
		}
		out = append(out, scoreGroups(part)...)
	}
	return out
}

func minValue(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min, true
}

const monthLayout = "2006-01"

func monthlySeries(events []store.DowntimeEvent) map[string]MonthlySeries {
	type bucket struct {
		repairSum, responseSum float64
		count                  float64
	}
	perMechanic := map[string]map[string]*bucket{}
	for _, ev := range events {
		month := ev.ResolvedAt.Format(monthLayout)
		buckets, ok := perMechanic[ev.MechanicName]
		if !ok {
			buckets = map[string]*bucket{}
			perMechanic[ev.MechanicName] = buckets
		}
		b, ok := buckets[month]
		if !ok {
			b = &bucket{}
			buckets[month] = b
		}
		b.repairSum += ev.RepairTimeMin
		b.responseSum += ev.ResponseTimeMin
		b.count++
	}

	out := make(map[string]MonthlySeries, len(perMechanic))
	for mechanic, buckets := range perMechanic {
		months := make([]string, 0, len(buckets))
		for month := range buckets {
			months = append(months, month)
		}
		sort.Strings(months)

		series := MonthlySeries{Months: months}
		for _, month := range months {
			b := buckets[month]
			series.RepairTime = append(series.RepairTime, b.repairSum/b.count)
			series.ResponseTime = append(series.ResponseTime, b.responseSum/b.count)
		}
		out[mechanic] = series
	}
	return out
}
