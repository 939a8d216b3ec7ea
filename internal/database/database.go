package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps the embedded sqlite database holding the local record mirror
// and the durable sync queue.
type DB struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	lg := logger.With().Str("component", "database").Logger()

	// Items stranded in the syncing state by a crash mid-drain would
	// otherwise never be picked up again.
	recovered, err := recoverStrandedItems(db)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sync queue: %w", err)
	}
	if recovered > 0 {
		lg.Warn().Int64("recovered", recovered).Msg("reset stranded syncing items to pending")
	}

	lg.Info().Str("path", path).Msg("database initialized")
	return &DB{db: db, logger: &lg}, nil
}

func recoverStrandedItems(db *sql.DB) (int64, error) {
	result, err := db.Exec(`UPDATE sync_queue SET status = 'pending' WHERE status = 'syncing'`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Local mirror of remote documents, one row per entity.
		`CREATE TABLE IF NOT EXISTS records (
            collection TEXT NOT NULL,
            id TEXT NOT NULL,
            owner_id TEXT NOT NULL,
            doc_date DATETIME NOT NULL,
            payload TEXT NOT NULL,
            updated_at DATETIME NOT NULL,
            PRIMARY KEY (collection, id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_records_owner ON records(collection, owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_records_owner_date ON records(collection, owner_id, doc_date)`,

		// Pending remote mutations.
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id TEXT PRIMARY KEY,
            operation TEXT NOT NULL,
            collection TEXT NOT NULL,
            document_id TEXT NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_queue_status ON sync_queue(status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_document ON sync_queue(collection, document_id, status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// ExecContext is exposed for tests and maintenance tooling.
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// QueryRowContext is exposed for tests and maintenance tooling.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

func (db *DB) Close() error {
	return db.db.Close()
}
