// Package history records finished sync cycles in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

// Cycle summarises one scheduler iteration.
type Cycle struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Targets        int       `json:"targets"`
	Downloaded     int       `json:"downloaded"`
	DownloadFailed int       `json:"download_failed"`
	Delivered      int       `json:"delivered"`
	DeliveryFailed int       `json:"delivery_failed"`
	Error          string    `json:"error,omitempty"`
}

// Duration is the wall time the cycle took.
func (c Cycle) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}

type Store struct {
	conn *sql.DB
}

func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id               TEXT    PRIMARY KEY,
			started_at       TEXT    NOT NULL,
			finished_at      TEXT    NOT NULL,
			targets          INTEGER NOT NULL DEFAULT 0,
			downloaded       INTEGER NOT NULL DEFAULT 0,
			download_failed  INTEGER NOT NULL DEFAULT 0,
			delivered        INTEGER NOT NULL DEFAULT 0,
			delivery_failed  INTEGER NOT NULL DEFAULT 0,
			error_message    TEXT    NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_started_at ON cycles(started_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.conn.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration: %w\nstatement: %s", err, stmt)
		}
	}
	return nil
}

// Record stores a finished cycle.
func (s *Store) Record(ctx context.Context, c Cycle) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO cycles (id, started_at, finished_at, targets, downloaded, download_failed, delivered, delivery_failed, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.StartedAt.UTC().Format(timeLayout), c.FinishedAt.UTC().Format(timeLayout),
		c.Targets, c.Downloaded, c.DownloadFailed, c.Delivered, c.DeliveryFailed, c.Error)
	if err != nil {
		return fmt.Errorf("record cycle: %w", err)
	}
	return nil
}

// Recent returns up to limit cycles, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Cycle, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, started_at, finished_at, targets, downloaded, download_failed, delivered, delivery_failed, error_message
		 FROM cycles ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []Cycle{}
	for rows.Next() {
		var c Cycle
		var started, finished string
		if err := rows.Scan(&c.ID, &started, &finished, &c.Targets, &c.Downloaded, &c.DownloadFailed,
			&c.Delivered, &c.DeliveryFailed, &c.Error); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		if c.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if c.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
