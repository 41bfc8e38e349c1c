package store

import (
	"context"
	"fmt"
	"time"
)

// InsertFinding persists a finding and returns its row id.
func (db *DB) InsertFinding(ctx context.Context, f Finding) (int64, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO findings
			(analysis_type, entity_id, dimension_1, dimension_2, metric,
			 value, mean_value, z_score, pct_diff, threshold, sample_count,
			 summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.AnalysisType, f.EntityID, f.Dimension1, f.Dimension2, f.Metric,
		f.Value, f.MeanValue, f.ZScore, f.PctDiff, f.Threshold,
		f.SampleCount, f.Summary,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert finding: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read finding id: %w", err)
	}
	return id, nil
}

// FindingsSince returns findings created at or after since, newest first.
func (db *DB) FindingsSince(ctx context.Context, since time.Time) ([]Finding, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, analysis_type, entity_id, dimension_1, dimension_2,
		       metric, value, mean_value, z_score, pct_diff, threshold,
		       sample_count, summary, created_at
		FROM findings
		WHERE created_at >= ?
		ORDER BY created_at DESC`,
		since.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()
	return scanFindings(rows)
}

// FindingsByAnalysisType returns all findings of one analysis type, newest
// first, capped at limit (0 means no cap).
func (db *DB) FindingsByAnalysisType(ctx context.Context, analysisType string, limit int) ([]Finding, error) {
	query := `
		SELECT id, analysis_type, entity_id, dimension_1, dimension_2,
		       metric, value, mean_value, z_score, pct_diff, threshold,
		       sample_count, summary, created_at
		FROM findings
		WHERE analysis_type = ?
		ORDER BY created_at DESC`
	args := []any{analysisType}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings by type: %w", err)
	}
	defer rows.Close()
	return scanFindings(rows)
}

func scanFindings(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]Finding, error) {
	var findings []Finding
	for rows.Next() {
		var f Finding
		var createdAt string
		if err := rows.Scan(&f.ID, &f.AnalysisType, &f.EntityID,
			&f.Dimension1, &f.Dimension2, &f.Metric, &f.Value,
			&f.MeanValue, &f.ZScore, &f.PctDiff, &f.Threshold,
			&f.SampleCount, &f.Summary, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.CreatedAt = parseStoredTime(createdAt)
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// parseStoredTime accepts both the sqlite CURRENT_TIMESTAMP layout and
// RFC3339, returning the zero time when neither matches.
func parseStoredTime(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(TimeFormat, s); err == nil {
		return t
	}
	return time.Time{}
}
