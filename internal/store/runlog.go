package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertToolRun records the start of a batch-tool execution.
func (db *DB) InsertToolRun(ctx context.Context, run ToolRunLog) error {
	var periodStart, periodEnd any
	if run.PeriodStart != nil {
		periodStart = timeToDate(*run.PeriodStart)
	}
	if run.PeriodEnd != nil {
		periodEnd = timeToDate(*run.PeriodEnd)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO tool_run_logs
			(id, tool_name, run_date, period_start, period_end, status,
			 items_processed, items_created, summary, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ToolName, timeToDate(run.RunDate), periodStart,
		periodEnd, run.Status, run.ItemsProcessed, run.ItemsCreated,
		run.Summary, run.Metadata, nullTime(run.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert tool run %s: %w", run.ID, err)
	}
	return nil
}

// UpdateToolRun finalizes a run with its outcome.
func (db *DB) UpdateToolRun(ctx context.Context, id, status string, processed, created int64, summary, metadata string, now time.Time) error {
	_, err := db.ExecContext(ctx, `
		UPDATE tool_run_logs
		SET status = ?, items_processed = ?, items_created = ?,
		    summary = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		status, processed, created, summary, metadata,
		now.Format(TimeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update tool run %s: %w", id, err)
	}
	return nil
}

// LastCompletedRun returns the most recent completed run of a tool, or nil
// when the tool has never completed a run.
func (db *DB) LastCompletedRun(ctx context.Context, toolName string) (*ToolRunLog, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, tool_name, run_date, period_start, period_end, status,
		       items_processed, items_created, summary, metadata,
		       created_at, updated_at
		FROM tool_run_logs
		WHERE tool_name = ? AND status = ?
		ORDER BY run_date DESC, created_at DESC
		LIMIT 1`,
		toolName, RunCompleted,
	)

	run, err := scanToolRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

// ToolRunsFor returns the run history of a tool, newest first, capped at
// limit (0 means no cap).
func (db *DB) ToolRunsFor(ctx context.Context, toolName string, limit int) ([]ToolRunLog, error) {
	query := `
		SELECT id, tool_name, run_date, period_start, period_end, status,
		       items_processed, items_created, summary, metadata,
		       created_at, updated_at
		FROM tool_run_logs
		WHERE tool_name = ?
		ORDER BY run_date DESC, created_at DESC`
	args := []any{toolName}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool runs: %w", err)
	}
	defer rows.Close()

	var runs []ToolRunLog
	for rows.Next() {
		run, err := scanToolRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanToolRun(row rowScanner) (*ToolRunLog, error) {
	var run ToolRunLog
	var runDate, createdAt string
	var periodStart, periodEnd, summary, metadata, updatedAt sql.NullString
	err := row.Scan(&run.ID, &run.ToolName, &runDate, &periodStart,
		&periodEnd, &run.Status, &run.ItemsProcessed, &run.ItemsCreated,
		&summary, &metadata, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan tool run: %w", err)
	}

	if run.RunDate, err = parseDate(runDate); err != nil {
		return nil, err
	}
	if periodStart.Valid {
		t, err := parseDate(periodStart.String)
		if err != nil {
			return nil, err
		}
		run.PeriodStart = &t
	}
	if periodEnd.Valid {
		t, err := parseDate(periodEnd.String)
		if err != nil {
			return nil, err
		}
		run.PeriodEnd = &t
	}
	run.Summary = summary.String
	run.Metadata = metadata.String
	run.CreatedAt = parseStoredTime(createdAt)
	if updatedAt.Valid {
		t := parseStoredTime(updatedAt.String)
		run.UpdatedAt = &t
	}
	return &run, nil
}
