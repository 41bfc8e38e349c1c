package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordDowntimeEvent inserts one resolved incident.
func (db *DB) RecordDowntimeEvent(ctx context.Context, ev DowntimeEvent) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO downtime_events
			(mechanic_name, employee_number, machine_id, machine_type,
			 reason, repair_time_min, response_time_min, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.MechanicName, ev.EmployeeNumber, ev.MachineID, ev.MachineType,
		ev.Reason, ev.RepairTimeMin, ev.ResponseTimeMin,
		ev.ResolvedAt.Format(TimeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to record downtime event: %w", err)
	}
	return nil
}

// DowntimeEventsBetween returns events resolved within [start, end),
// ordered oldest first.
func (db *DB) DowntimeEventsBetween(ctx context.Context, start, end time.Time) ([]DowntimeEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, mechanic_name, employee_number, machine_id, machine_type,
		       reason, repair_time_min, response_time_min, resolved_at
		FROM downtime_events
		WHERE resolved_at >= ? AND resolved_at < ?
		ORDER BY resolved_at ASC`,
		start.Format(TimeFormat), end.Format(TimeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query downtime events: %w", err)
	}
	defer rows.Close()

	var events []DowntimeEvent
	for rows.Next() {
		var ev DowntimeEvent
		var resolvedAt string
		if err := rows.Scan(&ev.ID, &ev.MechanicName, &ev.EmployeeNumber,
			&ev.MachineID, &ev.MachineType, &ev.Reason,
			&ev.RepairTimeMin, &ev.ResponseTimeMin, &resolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan downtime event: %w", err)
		}
		ev.ResolvedAt, err = time.Parse(TimeFormat, resolvedAt)
		if err != nil {
			return nil, fmt.Errorf("bad resolved_at on event %d: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// LatestEventValue returns the most recent metric value for a mechanic,
// optionally narrowed to a machine type and reason. Used by the watchlist
// measurement pass; ok is false when the mechanic has no matching events on
// or before asOf.
func (db *DB) LatestEventValue(ctx context.Context, mechanicName, metric, machineType, reason string, asOf time.Time) (float64, bool, error) {
	col, err := metricColumn(metric)
	if err != nil {
		return 0, false, err
	}

	query := `SELECT ` + col + ` FROM downtime_events
		WHERE mechanic_name = ? AND resolved_at <= ?`
	args := []any{mechanicName, asOf.Format(TimeFormat)}
	if machineType != "" {
		query += ` AND machine_type = ?`
		args = append(args, machineType)
	}
	if reason != "" {
		query += ` AND reason = ?`
		args = append(args, reason)
	}
	query += ` ORDER BY resolved_at DESC LIMIT 1`

	var v float64
	err = db.QueryRowContext(ctx, query, args...).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to query latest event value: %w", err)
	}
	return v, true, nil
}

// AverageEventValue returns the mean metric value for a mechanic over
// [start, end), with the same optional narrowing as LatestEventValue.
func (db *DB) AverageEventValue(ctx context.Context, mechanicName, metric, machineType, reason string, start, end time.Time) (float64, bool, error) {
	col, err := metricColumn(metric)
	if err != nil {
		return 0, false, err
	}

	query := `SELECT AVG(` + col + `), COUNT(*) FROM downtime_events
		WHERE mechanic_name = ? AND resolved_at >= ? AND resolved_at < ?`
	args := []any{mechanicName, start.Format(TimeFormat), end.Format(TimeFormat)}
	if machineType != "" {
		query += ` AND machine_type = ?`
		args = append(args, machineType)
	}
	if reason != "" {
		query += ` AND reason = ?`
		args = append(args, reason)
	}

	var avg *float64
	var count int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&avg, &count); err != nil {
		return 0, false, fmt.Errorf("failed to query average event value: %w", err)
	}
	if count == 0 || avg == nil {
		return 0, false, nil
	}
	return *avg, true, nil
}

func metricColumn(metric string) (string, error) {
	switch metric {
	case "response_time":
		return "response_time_min", nil
	case "repair_time":
		return "repair_time_min", nil
	default:
		return "", fmt.Errorf("unknown event metric %q", metric)
	}
}
