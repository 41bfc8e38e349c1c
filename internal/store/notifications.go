package store

import (
	"context"
	"fmt"
)

// InsertNotification records one outbound notification.
func (db *DB) InsertNotification(ctx context.Context, n NotificationLog) (int64, error) {
	status := n.Status
	if status == "" {
		status = "logged"
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO notification_logs (recipient, subject, message, status)
		VALUES (?, ?, ?, ?)`,
		n.Recipient, n.Subject, n.Message, status,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read notification id: %w", err)
	}
	return id, nil
}

// Notifications returns recorded notifications, newest first, capped at
// limit (0 means no cap).
func (db *DB) Notifications(ctx context.Context, limit int) ([]NotificationLog, error) {
	query := `
		SELECT id, recipient, subject, message, status, sent_at
		FROM notification_logs
		ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var ns []NotificationLog
	for rows.Next() {
		var n NotificationLog
		var sentAt string
		if err := rows.Scan(&n.ID, &n.Recipient, &n.Subject, &n.Message,
			&n.Status, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.SentAt = parseStoredTime(sentAt)
		ns = append(ns, n)
	}
	return ns, rows.Err()
}
