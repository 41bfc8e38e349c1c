package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// InsertMaintenanceTask schedules one preventive-maintenance job. The
// partial unique index on open tasks turns a racing duplicate into an
// ErrDuplicateOpenTask.
func (db *DB) InsertMaintenanceTask(ctx context.Context, task MaintenanceTask) (int64, error) {
	status := task.Status
	if status == "" {
		status = StatusOpen
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO scheduled_maintenance
			(machine_id, machine_type, issue_type, description, assignee,
			 mechanic_name, priority, status, due_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.MachineID, task.MachineType, task.IssueType, task.Description,
		task.Assignee, task.MechanicName, task.Priority, status,
		timeToDate(task.DueBy), nullTime(task.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("machine %s: %w", task.MachineID, ErrDuplicateOpenTask)
		}
		return 0, fmt.Errorf("failed to insert maintenance task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read maintenance task id: %w", err)
	}
	return id, nil
}

// ErrDuplicateOpenTask is returned when a machine already has an open task.
var ErrDuplicateOpenTask = errors.New("open maintenance task already exists")

// OpenTaskExists reports whether a machine already has an open task.
func (db *DB) OpenTaskExists(ctx context.Context, machineID string) (bool, error) {
	var n int64
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM scheduled_maintenance
		WHERE machine_id = ? AND status = ?`,
		machineID, StatusOpen,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check open task for %s: %w", machineID, err)
	}
	return n > 0, nil
}

// OpenTaskCounts returns the number of open tasks per assignee. Assignees
// with no open tasks are absent from the map.
func (db *DB) OpenTaskCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT assignee, COUNT(*) FROM scheduled_maintenance
		WHERE status = ?
		GROUP BY assignee`,
		StatusOpen,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query open task counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var assignee string
		var n int64
		if err := rows.Scan(&assignee, &n); err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		counts[assignee] = n
	}
	return counts, rows.Err()
}

// MaintenanceTasks returns tasks filtered by optional status and assignee,
// soonest due first, capped at limit (0 means no cap).
func (db *DB) MaintenanceTasks(ctx context.Context, status, assignee string, limit int) ([]MaintenanceTask, error) {
	query := `
		SELECT id, machine_id, machine_type, issue_type, description,
		       assignee, mechanic_name, priority, status, due_by,
		       created_at, completed_at, updated_at
		FROM scheduled_maintenance`
	var clauses []string
	var args []any
	if status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, status)
	}
	if assignee != "" {
		clauses = append(clauses, "assignee = ?")
		args = append(args, assignee)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY due_by ASC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query maintenance tasks: %w", err)
	}
	defer rows.Close()

	var tasks []MaintenanceTask
	for rows.Next() {
		var t MaintenanceTask
		var dueBy, createdAt string
		var completedAt, updatedAt sql.NullString
		if err := rows.Scan(&t.ID, &t.MachineID, &t.MachineType,
			&t.IssueType, &t.Description, &t.Assignee, &t.MechanicName,
			&t.Priority, &t.Status, &dueBy, &createdAt, &completedAt,
			&updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan maintenance task: %w", err)
		}
		if t.DueBy, err = parseDate(dueBy); err != nil {
			return nil, err
		}
		t.CreatedAt = parseStoredTime(createdAt)
		if completedAt.Valid {
			ts := parseStoredTime(completedAt.String)
			t.CompletedAt = &ts
		}
		if updatedAt.Valid {
			ts := parseStoredTime(updatedAt.String)
			t.UpdatedAt = &ts
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CompleteMaintenanceTask marks a task done.
func (db *DB) CompleteMaintenanceTask(ctx context.Context, id int64, now time.Time) error {
	_, err := db.ExecContext(ctx, `
		UPDATE scheduled_maintenance
		SET status = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`,
		StatusCompleted, now.Format(TimeFormat), now.Format(TimeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete maintenance task %d: %w", id, err)
	}
	return nil
}
