package store

import (
	"context"
	"fmt"
	"time"
)

// InsertMeasurement records one observation for a watch item. A second
// insert for the same watch item and date is silently ignored, which makes
// the daily measurement pass safe to re-run.
func (db *DB) InsertMeasurement(ctx context.Context, watchID int64, date time.Time, value float64) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO measurements (watch_id, measurement_date, value)
		VALUES (?, ?, ?)`,
		watchID, timeToDate(date), value,
	)
	if err != nil {
		return fmt.Errorf("failed to insert measurement for watch %d: %w", watchID, err)
	}
	return nil
}

// MeasurementsForWatch returns all measurements for a watch item in date
// order.
func (db *DB) MeasurementsForWatch(ctx context.Context, watchID int64) ([]Measurement, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, watch_id, measurement_date, value
		FROM measurements
		WHERE watch_id = ?
		ORDER BY measurement_date ASC`,
		watchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var ms []Measurement
	for rows.Next() {
		var m Measurement
		var date string
		if err := rows.Scan(&m.ID, &m.WatchID, &date, &m.Value); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		if m.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, rows.Err()
}

// MeasurementValues returns just the values for a watch item in date order,
// the shape the statistics kernel consumes.
func (db *DB) MeasurementValues(ctx context.Context, watchID int64) ([]float64, error) {
	ms, err := db.MeasurementsForWatch(ctx, watchID)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(ms))
	for i, m := range ms {
		values[i] = m.Value
	}
	return values, nil
}

// HasMeasurementOn reports whether a measurement already exists for the
// watch item on the given date.
func (db *DB) HasMeasurementOn(ctx context.Context, watchID int64, date time.Time) (bool, error) {
	var n int64
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM measurements
		WHERE watch_id = ? AND measurement_date = ?`,
		watchID, timeToDate(date),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check measurement: %w", err)
	}
	return n > 0, nil
}
