// Package store is the sqlite persistence layer for the maintenance
// analytics pipelines: raw downtime events in, findings, watchlist state,
// run logs and scheduled tasks out.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle shared by every pipeline.
type DB struct {
	*sql.DB
}

// Date and timestamp layouts used for all TEXT-typed columns. Dates are
// day-granular on purpose: the monitors reason in calendar days, never in
// sub-day intervals.
const (
	DateFormat = "2006-01-02"
	TimeFormat = time.RFC3339
)

// NewDB opens (creating if needed) the sqlite database at path and ensures
// the baseline schema exists. Versioned changes beyond the baseline are
// applied via MigrateUp.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS machines (
			machine_id          TEXT PRIMARY KEY,
			machine_type        TEXT,
			purchase_date       TEXT,
			failure_count       BIGINT DEFAULT 0,
			total_downtime_min  DOUBLE DEFAULT 0,
			cluster             BIGINT,
			risk_score          DOUBLE,
			clustered_at        TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS mechanics (
			employee_number     TEXT PRIMARY KEY,
			name                TEXT,
			surname             TEXT
		);
		CREATE TABLE IF NOT EXISTS downtime_events (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			mechanic_name       TEXT,
			employee_number     TEXT,
			machine_id          TEXT,
			machine_type        TEXT,
			reason              TEXT,
			repair_time_min     DOUBLE,
			response_time_min   DOUBLE,
			resolved_at         TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS findings (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			analysis_type       TEXT,
			entity_id           TEXT,
			dimension_1         TEXT,
			dimension_2         TEXT,
			metric              TEXT,
			value               DOUBLE,
			mean_value          DOUBLE,
			z_score             DOUBLE,
			pct_diff            DOUBLE,
			threshold           DOUBLE,
			sample_count        BIGINT,
			summary             TEXT,
			created_at          TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS watch_list (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_type         TEXT,
			entity_id           TEXT,
			entity_name         TEXT,
			issue_type          TEXT,
			machine_type        TEXT,
			reason              TEXT,
			monitor_frequency   TEXT,
			monitor_start_date  TEXT,
			monitor_end_date    TEXT,
			status              TEXT DEFAULT 'open',
			extension_count     BIGINT DEFAULT 0,
			finding_id          BIGINT,
			notes               TEXT,
			created_at          TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at          TIMESTAMP,
			FOREIGN KEY(finding_id) REFERENCES findings(id)
		);
		CREATE TABLE IF NOT EXISTS measurements (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			watch_id            BIGINT NOT NULL,
			measurement_date    TEXT NOT NULL,
			value               DOUBLE,
			FOREIGN KEY(watch_id) REFERENCES watch_list(id),
			UNIQUE(watch_id, measurement_date)
		);
		CREATE TABLE IF NOT EXISTS task_summaries (
			id                          INTEGER PRIMARY KEY AUTOINCREMENT,
			watch_id                    BIGINT NOT NULL,
			summary_date                TEXT,
			is_final                    BOOLEAN DEFAULT 0,
			baseline_value              DOUBLE,
			latest_value                DOUBLE,
			raw_change_pct              DOUBLE,
			improvement_pct             DOUBLE,
			moving_average              DOUBLE,
			moving_average_change_pct   DOUBLE,
			trend_slope                 DOUBLE,
			trend_r_squared             DOUBLE,
			trend_p_value               DOUBLE,
			trend_is_significant        BOOLEAN DEFAULT 0,
			split_p_value               DOUBLE,
			split_is_significant        BOOLEAN DEFAULT 0,
			decision                    TEXT,
			confidence                  TEXT,
			explanation                 TEXT,
			insufficient_data           BOOLEAN DEFAULT 0,
			measurement_count           BIGINT DEFAULT 0,
			created_at                  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(watch_id) REFERENCES watch_list(id)
		);
		CREATE TABLE IF NOT EXISTS tool_run_logs (
			id                  TEXT PRIMARY KEY,
			tool_name           TEXT NOT NULL,
			run_date            TEXT,
			period_start        TEXT,
			period_end          TEXT,
			status              TEXT,
			items_processed     BIGINT DEFAULT 0,
			items_created       BIGINT DEFAULT 0,
			summary             TEXT,
			metadata            TEXT,
			created_at          TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at          TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS scheduled_maintenance (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			machine_id          TEXT NOT NULL,
			machine_type        TEXT,
			issue_type          TEXT,
			description         TEXT,
			assignee            TEXT,
			mechanic_name       TEXT,
			priority            TEXT,
			status              TEXT DEFAULT 'open',
			due_by              TEXT,
			created_at          TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			completed_at        TIMESTAMP,
			updated_at          TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS ux_open_task_per_machine
			ON scheduled_maintenance(machine_id) WHERE status = 'open';
		CREATE TABLE IF NOT EXISTS notification_logs (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			recipient           TEXT,
			subject             TEXT,
			message             TEXT,
			status              TEXT DEFAULT 'logged',
			sent_at             TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_events_resolved_at
			ON downtime_events(resolved_at);
		CREATE INDEX IF NOT EXISTS idx_watch_list_status
			ON watch_list(status);
		CREATE INDEX IF NOT EXISTS idx_run_logs_tool
			ON tool_run_logs(tool_name, status);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// timeToDate renders t as a day-granular column value.
func timeToDate(t time.Time) string { return t.Format(DateFormat) }

// parseDate reads a day-granular column value back into a time.Time.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return t, nil
}

// nullTime renders an optional timestamp.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(TimeFormat)
}
