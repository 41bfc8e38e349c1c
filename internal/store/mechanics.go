package store

import (
	"context"
	"fmt"
)

// UpsertMechanic inserts or refreshes a crew member.
func (db *DB) UpsertMechanic(ctx context.Context, m Mechanic) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO mechanics (employee_number, name, surname)
		VALUES (?, ?, ?)
		ON CONFLICT(employee_number) DO UPDATE SET
			name = excluded.name,
			surname = excluded.surname`,
		m.EmployeeNumber, m.Name, m.Surname,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert mechanic %s: %w", m.EmployeeNumber, err)
	}
	return nil
}

// Mechanics returns the whole crew ordered by employee number.
func (db *DB) Mechanics(ctx context.Context) ([]Mechanic, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT employee_number, name, surname
		FROM mechanics
		ORDER BY employee_number ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query mechanics: %w", err)
	}
	defer rows.Close()

	var mechanics []Mechanic
	for rows.Next() {
		var m Mechanic
		if err := rows.Scan(&m.EmployeeNumber, &m.Name, &m.Surname); err != nil {
			return nil, fmt.Errorf("failed to scan mechanic: %w", err)
		}
		mechanics = append(mechanics, m)
	}
	return mechanics, rows.Err()
}
