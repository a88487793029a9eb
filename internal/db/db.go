// Package db is the sqlite store for the clinic directory, doctor schedules and bookings.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the portal.
type DB struct {
	*sql.DB
}

// Open opens the database at path and runs migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS specialties (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			icon TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS doctors (
			id INTEGER PRIMARY KEY,
			specialty_id INTEGER NOT NULL REFERENCES specialties(id),
			name TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			rating REAL NOT NULL DEFAULT 0,
			reviews_count INTEGER NOT NULL DEFAULT 0,
			bio TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS doctor_schedules (
			doctor_id INTEGER PRIMARY KEY REFERENCES doctors(id) ON DELETE CASCADE,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			slot_duration INTEGER NOT NULL,
			lunch_start TEXT,
			lunch_end TEXT,
			days_off TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS holidays (
			date TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			specialty_id INTEGER NOT NULL,
			specialty_name TEXT NOT NULL DEFAULT '',
			doctor_id INTEGER NOT NULL,
			doctor_name TEXT NOT NULL DEFAULT '',
			day_id TEXT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			user_name TEXT NOT NULL,
			user_phone TEXT NOT NULL,
			user_email TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			method TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_doctor_start ON bookings(doctor_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_created ON bookings(created_at)`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
