package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps sql.DB for the booking service.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// New opens the database at path and runs migrations.
func New(path string, logger *zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	if err := instance.seedServices(context.Background()); err != nil {
		return nil, fmt.Errorf("seed services: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_user_id INTEGER UNIQUE NOT NULL,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			phone TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			description TEXT,
			price_cents INTEGER NOT NULL DEFAULT 0,
			duration_minutes INTEGER NOT NULL DEFAULT 60,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS time_slots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			is_available BOOLEAN NOT NULL DEFAULT 1,
			is_booked BOOLEAN NOT NULL DEFAULT 0,
			booking_id INTEGER,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(start_time)
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference TEXT UNIQUE NOT NULL,
			user_id INTEGER NOT NULL,
			service_id INTEGER NOT NULL,
			booking_datetime DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'confirmed',
			calendar_event_id TEXT,
			confirmation_sent BOOLEAN NOT NULL DEFAULT 0,
			reminder_24h_sent BOOLEAN NOT NULL DEFAULT 0,
			reminder_2h_sent BOOLEAN NOT NULL DEFAULT 0,
			notes TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (service_id) REFERENCES services(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_slots_start ON time_slots(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_free ON time_slots(is_available, is_booked, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_datetime ON bookings(booking_datetime)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_reminder_24h ON bookings(reminder_24h_sent, status, booking_datetime)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_reminder_2h ON bookings(reminder_2h_sent, status, booking_datetime)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// seedServices inserts the default catalog on first run.
func (db *DB) seedServices(ctx context.Context) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM services").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	seed := []struct {
		name, description string
		priceCents        int64
		duration          int
	}{
		{"Swedish Massage", "Classic relaxation massage with gentle pressure", 8000, 60},
		{"Deep Tissue Massage", "Intense massage targeting deep muscle layers", 10000, 60},
		{"Hot Stone Massage", "Relaxing massage using heated stones", 12000, 90},
		{"Sports Massage", "Therapeutic massage for athletes and active individuals", 9000, 60},
		{"Aromatherapy Massage", "Gentle massage with essential oils", 11000, 75},
	}

	for _, s := range seed {
		_, err := db.ExecContext(ctx, `
			INSERT INTO services (name, description, price_cents, duration_minutes, is_active)
			VALUES (?, ?, ?, ?, 1)`,
			s.name, s.description, s.priceCents, s.duration)
		if err != nil {
			return fmt.Errorf("seed service %s: %w", s.name, err)
		}
	}
	db.logger.Info().Int("services", len(seed)).Msg("seeded default service catalog")
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
