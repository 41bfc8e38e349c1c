package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertMachine inserts or refreshes a machine's clustering record.
func (db *DB) UpsertMachine(ctx context.Context, m Machine) error {
	var purchaseDate any
	if m.PurchaseDate != nil {
		purchaseDate = timeToDate(*m.PurchaseDate)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO machines
			(machine_id, machine_type, purchase_date, failure_count,
			 total_downtime_min, cluster, risk_score, clustered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(machine_id) DO UPDATE SET
			machine_type = excluded.machine_type,
			purchase_date = excluded.purchase_date,
			failure_count = excluded.failure_count,
			total_downtime_min = excluded.total_downtime_min,
			cluster = excluded.cluster,
			risk_score = excluded.risk_score,
			clustered_at = excluded.clustered_at`,
		m.MachineID, m.MachineType, purchaseDate, m.FailureCount,
		m.TotalDowntimeMin, m.Cluster, m.RiskScore, nullTime(m.ClusteredAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert machine %s: %w", m.MachineID, err)
	}
	return nil
}

// MachinesInCluster returns all machines assigned to one cluster, highest
// failure count first.
func (db *DB) MachinesInCluster(ctx context.Context, cluster int64) ([]Machine, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT machine_id, machine_type, purchase_date, failure_count,
		       total_downtime_min, cluster, risk_score, clustered_at
		FROM machines
		WHERE cluster = ?
		ORDER BY failure_count DESC, machine_id ASC`,
		cluster,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query machines in cluster %d: %w", cluster, err)
	}
	defer rows.Close()

	var machines []Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		machines = append(machines, *m)
	}
	return machines, rows.Err()
}

// GetMachine fetches one machine by id, or nil when unknown.
func (db *DB) GetMachine(ctx context.Context, machineID string) (*Machine, error) {
	row := db.QueryRowContext(ctx, `
		SELECT machine_id, machine_type, purchase_date, failure_count,
		       total_downtime_min, cluster, risk_score, clustered_at
		FROM machines
		WHERE machine_id = ?`,
		machineID,
	)
	m, err := scanMachine(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func scanMachine(row rowScanner) (*Machine, error) {
	var m Machine
	var purchaseDate, clusteredAt sql.NullString
	var cluster, riskScore sql.NullFloat64
	err := row.Scan(&m.MachineID, &m.MachineType, &purchaseDate,
		&m.FailureCount, &m.TotalDowntimeMin, &cluster, &riskScore,
		&clusteredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan machine: %w", err)
	}

	if purchaseDate.Valid {
		t, err := parseDate(purchaseDate.String)
		if err != nil {
			return nil, err
		}
		m.PurchaseDate = &t
	}
	m.Cluster = int64(cluster.Float64)
	m.RiskScore = riskScore.Float64
	if clusteredAt.Valid {
		t := parseStoredTime(clusteredAt.String)
		m.ClusteredAt = &t
	}
	return &m, nil
}
