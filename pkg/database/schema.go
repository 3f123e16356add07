package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// The statements stay within the subset shared by PostgreSQL and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
    student_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    class_name TEXT NOT NULL,
    bus_number TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS attendance (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL REFERENCES students (student_id) ON DELETE CASCADE,
    student_name TEXT NOT NULL,
    class_name TEXT NOT NULL,
    bus_number TEXT NOT NULL,
    date TEXT NOT NULL,
    check_in_time TIMESTAMP NOT NULL,
    status TEXT NOT NULL DEFAULT 'Present',
    created_at TIMESTAMP NOT NULL,
    CONSTRAINT attendance_student_date_key UNIQUE (student_id, date)
)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance (date)`,
	`CREATE TABLE IF NOT EXISTS admins (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
)`,
}

// EnsureSchema creates the tables and indexes when they are missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
