package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"planik/internal/models"
)

// ErrRecordNotFound is returned by Get for an unknown (collection, id) pair.
var ErrRecordNotFound = errors.New("record not found")

// Put inserts or replaces a record. Writes are visible to subsequent
// reads immediately.
func (db *DB) Put(ctx context.Context, collection string, rec *models.Record) error {
	if !models.ValidCollection(collection) {
		return fmt.Errorf("put: unknown collection %q", collection)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	query := `INSERT INTO records (collection, id, owner_id, doc_date, payload, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(collection, id) DO UPDATE SET
                  owner_id = excluded.owner_id,
                  doc_date = excluded.doc_date,
                  payload = excluded.payload,
                  updated_at = excluded.updated_at`
	_, err := db.db.ExecContext(ctx, query,
		collection, rec.ID, rec.OwnerID, rec.Date, string(rec.Payload), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, rec.ID, err)
	}
	return nil
}

// BulkPut stores records in a single transaction.
func (db *DB) BulkPut(ctx context.Context, collection string, recs []*models.Record) error {
	if !models.ValidCollection(collection) {
		return fmt.Errorf("bulk put: unknown collection %q", collection)
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("bulk put %s: begin: %w", collection, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (collection, id, owner_id, doc_date, payload, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(collection, id) DO UPDATE SET
            owner_id = excluded.owner_id,
            doc_date = excluded.doc_date,
            payload = excluded.payload,
            updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("bulk put %s: prepare: %w", collection, err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, rec := range recs {
		updated := rec.UpdatedAt
		if updated.IsZero() {
			updated = now
		}
		if _, err := stmt.ExecContext(ctx, collection, rec.ID, rec.OwnerID, rec.Date, string(rec.Payload), updated); err != nil {
			return fmt.Errorf("bulk put %s/%s: %w", collection, rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bulk put %s: commit: %w", collection, err)
	}
	return nil
}

// Get returns a single record or ErrRecordNotFound.
func (db *DB) Get(ctx context.Context, collection, id string) (*models.Record, error) {
	query := `SELECT id, owner_id, doc_date, payload, updated_at
              FROM records WHERE collection = ? AND id = ?`

	var rec models.Record
	var payload string
	err := db.db.QueryRowContext(ctx, query, collection, id).Scan(
		&rec.ID, &rec.OwnerID, &rec.Date, &payload, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	rec.Payload = json.RawMessage(payload)
	return &rec, nil
}

// QueryByOwner returns all of one owner's records in a collection,
// ordered by the collection date field.
func (db *DB) QueryByOwner(ctx context.Context, collection, ownerID string) ([]*models.Record, error) {
	query := `SELECT id, owner_id, doc_date, payload, updated_at
              FROM records WHERE collection = ? AND owner_id = ?
              ORDER BY doc_date, id`
	return db.queryRecords(ctx, collection, query, collection, ownerID)
}

// QueryRange returns an owner's records whose date falls inside
// [start, end], bounds inclusive.
func (db *DB) QueryRange(ctx context.Context, collection, ownerID string, start, end time.Time) ([]*models.Record, error) {
	query := `SELECT id, owner_id, doc_date, payload, updated_at
              FROM records
              WHERE collection = ? AND owner_id = ? AND doc_date >= ? AND doc_date <= ?
              ORDER BY doc_date, id`
	return db.queryRecords(ctx, collection, query, collection, ownerID, start, end)
}

func (db *DB) queryRecords(ctx context.Context, collection, query string, args ...interface{}) ([]*models.Record, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var recs []*models.Record
	for rows.Next() {
		var rec models.Record
		var payload string
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Date, &payload, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s record: %w", collection, err)
		}
		rec.Payload = json.RawMessage(payload)
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return recs, nil
}

// DeleteRecord removes one record. Deleting an absent record is not an error.
func (db *DB) DeleteRecord(ctx context.Context, collection, id string) error {
	if !models.ValidCollection(collection) {
		return fmt.Errorf("delete: unknown collection %q", collection)
	}
	_, err := db.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// BulkDelete removes records in a single transaction.
func (db *DB) BulkDelete(ctx context.Context, collection string, ids []string) error {
	if !models.ValidCollection(collection) {
		return fmt.Errorf("bulk delete: unknown collection %q", collection)
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("bulk delete %s: begin: %w", collection, err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ? AND id = ?`, collection, id); err != nil {
			return fmt.Errorf("bulk delete %s/%s: %w", collection, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bulk delete %s: commit: %w", collection, err)
	}
	return nil
}

// Clear drops every record in a collection.
func (db *DB) Clear(ctx context.Context, collection string) error {
	if !models.ValidCollection(collection) {
		return fmt.Errorf("clear: unknown collection %q", collection)
	}
	if _, err := db.db.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}
	return nil
}

// ClearOwner drops one owner's records across all collections.
func (db *DB) ClearOwner(ctx context.Context, ownerID string) error {
	if _, err := db.db.ExecContext(ctx, `DELETE FROM records WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("clear owner %s: %w", ownerID, err)
	}
	return nil
}

// Stats returns record counts per collection. Empty collections report 0.
func (db *DB) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT collection, COUNT(*) FROM records GROUP BY collection`)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int, len(models.Collections))
	for _, c := range models.Collections {
		stats[c] = 0
	}
	for rows.Next() {
		var collection string
		var count int
		if err := rows.Scan(&collection, &count); err != nil {
			return nil, fmt.Errorf("stats: scan: %w", err)
		}
		stats[collection] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}
