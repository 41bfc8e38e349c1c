package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	var cfg *Thresholds

	assert.Equal(t, 1.0, cfg.GetZScore())
	assert.Equal(t, 5.0, cfg.GetTrendPctPerPeriod())
	assert.Equal(t, 0.05, cfg.GetTrendPValue())
	assert.Equal(t, 3, cfg.GetMinTrendPoints())
	assert.Equal(t, 0.10, cfg.GetSplitTestPValue())
	assert.Equal(t, 15.0, cfg.GetCloseStrongPct())
	assert.Equal(t, 10.0, cfg.GetCloseModeratePct())
	assert.Equal(t, 5.0, cfg.GetExtendPct())
	assert.Equal(t, 3, cfg.GetMovingAvgWindow())
	assert.Equal(t, 30, cfg.GetMonitorWindowDays())
	assert.Equal(t, 14, cfg.GetExtensionDays())
	assert.Equal(t, 0.80, cfg.GetParetoShare())
	assert.Equal(t, 7, cfg.GetHighPriorityDueDays())
	assert.Equal(t, 14, cfg.GetMediumPriorityDueDays())
	assert.Equal(t, 0, cfg.GetMaxTasks())
	assert.Equal(t, 30, cfg.GetMinRunIntervalDays())
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, "thresholds.json", `{"z_score": 1.5, "max_tasks": 10}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.GetZScore())
	assert.Equal(t, 10, cfg.GetMaxTasks())

	// Everything else keeps its default.
	assert.Equal(t, 15.0, cfg.GetCloseStrongPct())
	assert.Equal(t, 30, cfg.GetMinRunIntervalDays())
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	path := writeConfig(t, "thresholds.yaml", `z_score: 1.5`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := writeConfig(t, "broken.json", `{"z_score": `)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	for name, content := range map[string]string{
		"negative z":          `{"z_score": -1}`,
		"p out of range":      `{"trend_p_value": 1.5}`,
		"pareto over 1":       `{"pareto_share": 1.2}`,
		"min points too low":  `{"min_trend_points": 1}`,
		"unordered cut-offs":  `{"close_strong_pct": 5, "close_moderate_pct": 10}`,
		"zero extension days": `{"extension_days": 0}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, "bad.json", content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
