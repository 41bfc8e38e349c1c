package store

import (
	"context"
	"fmt"
)

// InsertTaskSummary persists one evaluation summary and returns its row id.
func (db *DB) InsertTaskSummary(ctx context.Context, s TaskSummary) (int64, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO task_summaries
			(watch_id, summary_date, is_final, baseline_value, latest_value,
			 raw_change_pct, improvement_pct, moving_average,
			 moving_average_change_pct, trend_slope, trend_r_squared,
			 trend_p_value, trend_is_significant, split_p_value,
			 split_is_significant, decision, confidence, explanation,
			 insufficient_data, measurement_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.WatchID, timeToDate(s.SummaryDate), s.IsFinal, s.BaselineValue,
		s.LatestValue, s.RawChangePct, s.ImprovementPct, s.MovingAverage,
		s.MovingAverageChangePct, s.TrendSlope, s.TrendRSquared,
		s.TrendPValue, s.TrendIsSignificant, s.SplitPValue,
		s.SplitIsSignificant, s.Decision, s.Confidence, s.Explanation,
		s.InsufficientData, s.MeasurementCount,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert task summary: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read task summary id: %w", err)
	}
	return id, nil
}

// ClearFinalSummaries flips every prior final summary for a watch item back
// to non-final. Called when a monitoring window is extended so the eventual
// final verdict stays unique.
func (db *DB) ClearFinalSummaries(ctx context.Context, watchID int64) error {
	_, err := db.ExecContext(ctx, `
		UPDATE task_summaries SET is_final = 0 WHERE watch_id = ?`,
		watchID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear final summaries for watch %d: %w", watchID, err)
	}
	return nil
}

// SummariesForWatch returns all summaries for a watch item, newest first.
func (db *DB) SummariesForWatch(ctx context.Context, watchID int64) ([]TaskSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, watch_id, summary_date, is_final, baseline_value,
		       latest_value, raw_change_pct, improvement_pct, moving_average,
		       moving_average_change_pct, trend_slope, trend_r_squared,
		       trend_p_value, trend_is_significant, split_p_value,
		       split_is_significant, decision, confidence, explanation,
		       insufficient_data, measurement_count, created_at
		FROM task_summaries
		WHERE watch_id = ?
		ORDER BY id DESC`,
		watchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query task summaries: %w", err)
	}
	defer rows.Close()

	var summaries []TaskSummary
	for rows.Next() {
		var s TaskSummary
		var summaryDate, createdAt string
		if err := rows.Scan(&s.ID, &s.WatchID, &summaryDate, &s.IsFinal,
			&s.BaselineValue, &s.LatestValue, &s.RawChangePct,
			&s.ImprovementPct, &s.MovingAverage, &s.MovingAverageChangePct,
			&s.TrendSlope, &s.TrendRSquared, &s.TrendPValue,
			&s.TrendIsSignificant, &s.SplitPValue, &s.SplitIsSignificant,
			&s.Decision, &s.Confidence, &s.Explanation, &s.InsufficientData,
			&s.MeasurementCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan task summary: %w", err)
		}
		if s.SummaryDate, err = parseDate(summaryDate); err != nil {
			return nil, err
		}
		s.CreatedAt = parseStoredTime(createdAt)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// FinalSummaryForWatch returns the final summary for a watch item, or nil
// when none has been recorded yet.
func (db *DB) FinalSummaryForWatch(ctx context.Context, watchID int64) (*TaskSummary, error) {
	summaries, err := db.SummariesForWatch(ctx, watchID)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		if summaries[i].IsFinal {
			return &summaries[i], nil
		}
	}
	return nil, nil
}
