package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is a small key/value table on top of SQLite or Postgres. The booking
// collection is kept as one JSON document per name.
type DB struct {
	*sqlx.DB
	logger *zerolog.Logger
}

// NewDB opens (and creates, if needed) the SQLite database at path.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		conn.SetMaxOpenConns(1)
	}

	return initDB(conn, logger, "sqlite", path)
}

// NewPostgresDB connects to Postgres with a lib/pq DSN.
func NewPostgresDB(dsn string, maxConns int, logger *zerolog.Logger) (*DB, error) {
	conn, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns > 0 {
		conn.SetMaxOpenConns(maxConns)
	}
	conn.SetConnMaxLifetime(30 * time.Minute)

	return initDB(conn, logger, "postgres", "")
}

func initDB(conn *sqlx.DB, logger *zerolog.Logger, driver, path string) (*DB, error) {
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: conn, logger: logger}
	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("driver", driver).Str("path", path).Msg("database initialized")
	return db, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS named_store (
            name TEXT PRIMARY KEY,
            value TEXT NOT NULL,
            updated_at TIMESTAMP NOT NULL
        )`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// GetValue returns the document stored under name. ok is false when nothing
// has been stored yet.
func (db *DB) GetValue(ctx context.Context, name string) (value []byte, ok bool, err error) {
	var raw string
	query := db.Rebind(`SELECT value FROM named_store WHERE name = ?`)
	err = db.QueryRowxContext(ctx, query, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", name, err)
	}
	return []byte(raw), true, nil
}

// PutValue replaces the document stored under name.
func (db *DB) PutValue(ctx context.Context, name string, value []byte) error {
	query := db.Rebind(`
        INSERT INTO named_store (name, value, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
    `)
	if _, err := db.ExecContext(ctx, query, name, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

