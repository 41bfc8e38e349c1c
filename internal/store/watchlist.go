package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertWatchItem adds an entity/issue pair to the watch list and returns
// its row id.
func (db *DB) InsertWatchItem(ctx context.Context, w WatchItem) (int64, error) {
	status := w.Status
	if status == "" {
		status = StatusOpen
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO watch_list
			(entity_type, entity_id, entity_name, issue_type, machine_type,
			 reason, monitor_frequency, monitor_start_date, monitor_end_date,
			 status, extension_count, finding_id, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.EntityType, w.EntityID, w.EntityName, w.IssueType, w.MachineType,
		w.Reason, w.MonitorFrequency, timeToDate(w.MonitorStart),
		timeToDate(w.MonitorEnd), status, w.ExtensionCount, w.FindingID,
		w.Notes, nullTime(w.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert watch item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read watch item id: %w", err)
	}
	return id, nil
}

// GetWatchItem fetches one watch item by id.
func (db *DB) GetWatchItem(ctx context.Context, id int64) (*WatchItem, error) {
	row := db.QueryRowContext(ctx, watchSelect+` WHERE id = ?`, id)
	w, err := scanWatchItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("watch item %d not found", id)
		}
		return nil, err
	}
	return w, nil
}

// ActiveWatchItems returns items whose status still admits monitoring,
// oldest first.
func (db *DB) ActiveWatchItems(ctx context.Context) ([]WatchItem, error) {
	return db.watchItemsWhere(ctx, `WHERE status IN (?, ?) ORDER BY id ASC`,
		StatusOpen, StatusExtended)
}

// WatchItemsByStatus returns items with the given status, newest first,
// capped at limit (0 means no cap).
func (db *DB) WatchItemsByStatus(ctx context.Context, status string, limit int) ([]WatchItem, error) {
	query := `WHERE status = ? ORDER BY id DESC`
	args := []any{status}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return db.watchItemsWhere(ctx, query, args...)
}

// OpenWatchItemExists reports whether the entity/issue pair is already under
// active monitoring. Used to suppress duplicate watch items when a finding
// repeats across analysis runs.
func (db *DB) OpenWatchItemExists(ctx context.Context, entityID, issueType string) (bool, error) {
	var n int64
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM watch_list
		WHERE entity_id = ? AND issue_type = ? AND status IN (?, ?)`,
		entityID, issueType, StatusOpen, StatusExtended,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check open watch item: %w", err)
	}
	return n > 0, nil
}

// UpdateWatchStatus transitions an item to a new status.
func (db *DB) UpdateWatchStatus(ctx context.Context, id int64, status string, now time.Time) error {
	_, err := db.ExecContext(ctx, `
		UPDATE watch_list SET status = ?, updated_at = ? WHERE id = ?`,
		status, now.Format(TimeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update watch item %d status: %w", id, err)
	}
	return nil
}

// ExtendWatchItem pushes the monitoring end date out, bumps the extension
// counter and moves the item to extended status.
func (db *DB) ExtendWatchItem(ctx context.Context, id int64, newEnd time.Time, now time.Time) error {
	_, err := db.ExecContext(ctx, `
		UPDATE watch_list
		SET monitor_end_date = ?, status = ?,
		    extension_count = extension_count + 1, updated_at = ?
		WHERE id = ?`,
		timeToDate(newEnd), StatusExtended, now.Format(TimeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("failed to extend watch item %d: %w", id, err)
	}
	return nil
}

const watchSelect = `
	SELECT id, entity_type, entity_id, entity_name, issue_type,
	       machine_type, reason, monitor_frequency, monitor_start_date,
	       monitor_end_date, status, extension_count, finding_id, notes,
	       created_at, updated_at
	FROM watch_list`

func (db *DB) watchItemsWhere(ctx context.Context, clause string, args ...any) ([]WatchItem, error) {
	rows, err := db.QueryContext(ctx, watchSelect+` `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query watch list: %w", err)
	}
	defer rows.Close()

	var items []WatchItem
	for rows.Next() {
		w, err := scanWatchItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *w)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(...any) error
}

func scanWatchItem(row rowScanner) (*WatchItem, error) {
	var w WatchItem
	var start, end, createdAt string
	var updatedAt, notes sql.NullString
	var findingID sql.NullInt64
	err := row.Scan(&w.ID, &w.EntityType, &w.EntityID, &w.EntityName,
		&w.IssueType, &w.MachineType, &w.Reason, &w.MonitorFrequency,
		&start, &end, &w.Status, &w.ExtensionCount, &findingID, &notes,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan watch item: %w", err)
	}

	if w.MonitorStart, err = parseDate(start); err != nil {
		return nil, err
	}
	if w.MonitorEnd, err = parseDate(end); err != nil {
		return nil, err
	}
	if findingID.Valid {
		w.FindingID = &findingID.Int64
	}
	if notes.Valid {
		w.Notes = notes.String
	}
	w.CreatedAt = parseStoredTime(createdAt)
	if updatedAt.Valid {
		t := parseStoredTime(updatedAt.String)
		w.UpdatedAt = &t
	}
	return &w, nil
}
