package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Thresholds holds every tunable cut-off used by the analysis and scheduling
// pipelines. All fields are pointers so a partial JSON config can override
// some values while the rest fall back to defaults through the Get* methods.
//
// The same numbers appear in findings generation, watchlist evaluation and
// scheduling; keeping them here means a policy change is one edit, not a hunt
// through three packages.
type Thresholds struct {
	// Finding generation
	ZScore            *float64 `json:"z_score,omitempty"`
	TrendPctPerPeriod *float64 `json:"trend_pct_per_period,omitempty"`
	TrendPValue       *float64 `json:"trend_p_value,omitempty"`
	MinTrendPoints    *int     `json:"min_trend_points,omitempty"`

	// Watchlist evaluation
	SplitTestPValue   *float64 `json:"split_test_p_value,omitempty"`
	CloseStrongPct    *float64 `json:"close_strong_pct,omitempty"`
	CloseModeratePct  *float64 `json:"close_moderate_pct,omitempty"`
	ExtendPct         *float64 `json:"extend_pct,omitempty"`
	MovingAvgWindow   *int     `json:"moving_avg_window,omitempty"`
	MonitorWindowDays *int     `json:"monitor_window_days,omitempty"`
	ExtensionDays     *int     `json:"extension_days,omitempty"`

	// Scheduling
	ParetoShare           *float64 `json:"pareto_share,omitempty"`
	HighPriorityDueDays   *int     `json:"high_priority_due_days,omitempty"`
	MediumPriorityDueDays *int     `json:"medium_priority_due_days,omitempty"`
	MaxTasks              *int     `json:"max_tasks,omitempty"`

	// Run throttle
	MinRunIntervalDays *int `json:"min_run_interval_days,omitempty"`
}

// Defaults mirrored by the Get* accessors.
const (
	defaultZScore             = 1.0
	defaultTrendPctPerPeriod  = 5.0
	defaultTrendPValue        = 0.05
	defaultMinTrendPoints     = 3
	defaultSplitTestPValue    = 0.10
	defaultCloseStrongPct     = 15.0
	defaultCloseModeratePct   = 10.0
	defaultExtendPct          = 5.0
	defaultMovingAvgWindow    = 3
	defaultMonitorWindowDays  = 30
	defaultExtensionDays      = 14
	defaultParetoShare        = 0.80
	defaultHighPriorityDue    = 7
	defaultMediumPriorityDue  = 14
	defaultMinRunIntervalDays = 30
)

// Load reads a Thresholds config from a JSON file. Fields omitted from the
// file retain their defaults, so partial configs are safe.
func Load(path string) (*Thresholds, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Thresholds{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects values that would make the decision rules nonsensical.
func (t *Thresholds) Validate() error {
	if t.ZScore != nil && *t.ZScore <= 0 {
		return fmt.Errorf("z_score must be positive, got %v", *t.ZScore)
	}
	if t.TrendPValue != nil && (*t.TrendPValue <= 0 || *t.TrendPValue >= 1) {
		return fmt.Errorf("trend_p_value must be in (0,1), got %v", *t.TrendPValue)
	}
	if t.SplitTestPValue != nil && (*t.SplitTestPValue <= 0 || *t.SplitTestPValue >= 1) {
		return fmt.Errorf("split_test_p_value must be in (0,1), got %v", *t.SplitTestPValue)
	}
	if t.ParetoShare != nil && (*t.ParetoShare <= 0 || *t.ParetoShare > 1) {
		return fmt.Errorf("pareto_share must be in (0,1], got %v", *t.ParetoShare)
	}
	if t.MinTrendPoints != nil && *t.MinTrendPoints < 2 {
		return fmt.Errorf("min_trend_points must be at least 2, got %d", *t.MinTrendPoints)
	}
	if t.ExtensionDays != nil && *t.ExtensionDays < 1 {
		return fmt.Errorf("extension_days must be at least 1, got %d", *t.ExtensionDays)
	}
	if t.MonitorWindowDays != nil && *t.MonitorWindowDays < 1 {
		return fmt.Errorf("monitor_window_days must be at least 1, got %d", *t.MonitorWindowDays)
	}
	// The three improvement cut-offs must stay ordered or the first-match
	// decision rule silently shadows a branch.
	if t.GetCloseStrongPct() < t.GetCloseModeratePct() || t.GetCloseModeratePct() < t.GetExtendPct() {
		return fmt.Errorf("improvement cut-offs must satisfy close_strong >= close_moderate >= extend")
	}
	return nil
}

func (t *Thresholds) GetZScore() float64 {
	if t != nil && t.ZScore != nil {
		return *t.ZScore
	}
	return defaultZScore
}

func (t *Thresholds) GetTrendPctPerPeriod() float64 {
	if t != nil && t.TrendPctPerPeriod != nil {
		return *t.TrendPctPerPeriod
	}
	return defaultTrendPctPerPeriod
}

func (t *Thresholds) GetTrendPValue() float64 {
	if t != nil && t.TrendPValue != nil {
		return *t.TrendPValue
	}
	return defaultTrendPValue
}

func (t *Thresholds) GetMinTrendPoints() int {
	if t != nil && t.MinTrendPoints != nil {
		return *t.MinTrendPoints
	}
	return defaultMinTrendPoints
}

func (t *Thresholds) GetSplitTestPValue() float64 {
	if t != nil && t.SplitTestPValue != nil {
		return *t.SplitTestPValue
	}
	return defaultSplitTestPValue
}

func (t *Thresholds) GetCloseStrongPct() float64 {
	if t != nil && t.CloseStrongPct != nil {
		return *t.CloseStrongPct
	}
	return defaultCloseStrongPct
}

func (t *Thresholds) GetCloseModeratePct() float64 {
	if t != nil && t.CloseModeratePct != nil {
		return *t.CloseModeratePct
	}
	return defaultCloseModeratePct
}

func (t *Thresholds) GetExtendPct() float64 {
	if t != nil && t.ExtendPct != nil {
		return *t.ExtendPct
	}
	return defaultExtendPct
}

func (t *Thresholds) GetMovingAvgWindow() int {
	if t != nil && t.MovingAvgWindow != nil {
		return *t.MovingAvgWindow
	}
	return defaultMovingAvgWindow
}

func (t *Thresholds) GetMonitorWindowDays() int {
	if t != nil && t.MonitorWindowDays != nil {
		return *t.MonitorWindowDays
	}
	return defaultMonitorWindowDays
}

func (t *Thresholds) GetExtensionDays() int {
	if t != nil && t.ExtensionDays != nil {
		return *t.ExtensionDays
	}
	return defaultExtensionDays
}

func (t *Thresholds) GetParetoShare() float64 {
	if t != nil && t.ParetoShare != nil {
		return *t.ParetoShare
	}
	return defaultParetoShare
}

func (t *Thresholds) GetHighPriorityDueDays() int {
	if t != nil && t.HighPriorityDueDays != nil {
		return *t.HighPriorityDueDays
	}
	return defaultHighPriorityDue
}

func (t *Thresholds) GetMediumPriorityDueDays() int {
	if t != nil && t.MediumPriorityDueDays != nil {
		return *t.MediumPriorityDueDays
	}
	return defaultMediumPriorityDue
}

// GetMaxTasks returns 0 when no cap is configured; 0 means unlimited.
func (t *Thresholds) GetMaxTasks() int {
	if t != nil && t.MaxTasks != nil {
		return *t.MaxTasks
	}
	return 0
}

func (t *Thresholds) GetMinRunIntervalDays() int {
	if t != nil && t.MinRunIntervalDays != nil {
		return *t.MinRunIntervalDays
	}
	return defaultMinRunIntervalDays
}
