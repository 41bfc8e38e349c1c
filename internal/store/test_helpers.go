package store

import (
	"os"
	"testing"
)

// SetupTestDB creates a fresh sqlite database file named after the test.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()
	path := t.Name() + ".db"
	os.Remove(path)

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	return db
}

// CleanupTestDB closes the database and removes its files.
func CleanupTestDB(t *testing.T, db *DB) {
	t.Helper()
	if db != nil {
		db.Close()
	}
	path := t.Name() + ".db"
	os.Remove(path)
	os.Remove(path + "-shm")
	os.Remove(path + "-wal")
}
