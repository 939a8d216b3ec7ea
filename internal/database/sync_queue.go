package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"planik/internal/models"

	"github.com/google/uuid"
)

// ErrQueueItemNotFound is returned when operating on an unknown queue item id.
var ErrQueueItemNotFound = errors.New("queue item not found")

const queueColumns = `id, operation, collection, document_id, payload, status, retry_count, last_error, created_at`

// EnqueueMutation records a pending remote mutation, merging into any
// existing pending item for the same document so that at most one pending
// mutation per (collection, document_id) ever exists:
//
//   - create followed by update stays a create carrying the merged payload
//   - update followed by update merges payloads
//   - anything followed by delete collapses to a delete
//   - create followed by delete cancels out entirely; the returned item is
//     synthetic (status resolved) and is not persisted
//   - a pending delete followed by create or update becomes an update,
//     since the remote document still exists
//
// Merging refreshes the item timestamp to the latest mutation time.
func (db *DB) EnqueueMutation(ctx context.Context, operation, collection, documentID string, payload json.RawMessage) (*models.QueueItem, error) {
	if !models.ValidOperation(operation) {
		return nil, fmt.Errorf("enqueue: invalid operation %q", operation)
	}
	if !models.ValidCollection(collection) {
		return nil, fmt.Errorf("enqueue: unknown collection %q", collection)
	}
	if documentID == "" {
		return nil, errors.New("enqueue: document id is required")
	}
	if payload == nil && operation != models.OpDelete {
		return nil, fmt.Errorf("enqueue: %s requires a payload", operation)
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s/%s: begin: %w", collection, documentID, err)
	}
	defer tx.Rollback()

	existing, err := pendingForDocument(ctx, tx, collection, documentID)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s/%s: lookup: %w", collection, documentID, err)
	}

	now := time.Now()

	if existing == nil {
		item := &models.QueueItem{
			ID:         uuid.NewString(),
			Operation:  operation,
			Collection: collection,
			DocumentID: documentID,
			Status:     models.StatusPending,
			CreatedAt:  now,
		}
		if payload != nil && operation != models.OpDelete {
			s := string(payload)
			item.Payload = &s
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sync_queue (`+queueColumns+`) VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?)`,
			item.ID, item.Operation, item.Collection, item.DocumentID, item.Payload, item.Status, item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("enqueue %s/%s: insert: %w", collection, documentID, err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("enqueue %s/%s: commit: %w", collection, documentID, err)
		}
		return item, nil
	}

	if operation == models.OpDelete {
		if existing.Operation == models.OpCreate {
			// The entity never reached the remote store; nothing to sync.
			if _, err := tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, existing.ID); err != nil {
				return nil, fmt.Errorf("enqueue %s/%s: cancel create: %w", collection, documentID, err)
			}
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("enqueue %s/%s: commit: %w", collection, documentID, err)
			}
			return &models.QueueItem{
				ID:         existing.ID,
				Operation:  models.OpDelete,
				Collection: collection,
				DocumentID: documentID,
				Status:     models.StatusResolved,
				CreatedAt:  now,
			}, nil
		}

		existing.Operation = models.OpDelete
		existing.Payload = nil
		existing.CreatedAt = now
		_, err = tx.ExecContext(ctx,
			`UPDATE sync_queue SET operation = ?, payload = NULL, created_at = ? WHERE id = ?`,
			models.OpDelete, now, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("enqueue %s/%s: collapse to delete: %w", collection, documentID, err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("enqueue %s/%s: commit: %w", collection, documentID, err)
		}
		return existing, nil
	}

	// create or update against an existing pending item
	op := existing.Operation
	merged := payload
	if op == models.OpDelete {
		op = models.OpUpdate
	} else {
		merged = models.MergePayloads(existing.PayloadJSON(), payload)
	}

	s := string(merged)
	existing.Operation = op
	existing.Payload = &s
	existing.CreatedAt = now
	_, err = tx.ExecContext(ctx,
		`UPDATE sync_queue SET operation = ?, payload = ?, created_at = ? WHERE id = ?`,
		op, s, now, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s/%s: merge: %w", collection, documentID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("enqueue %s/%s: commit: %w", collection, documentID, err)
	}
	return existing, nil
}

func pendingForDocument(ctx context.Context, tx *sql.Tx, collection, documentID string) (*models.QueueItem, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM sync_queue WHERE collection = ? AND document_id = ? AND status = 'pending'`,
		collection, documentID)
	item, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueueItem(row rowScanner) (*models.QueueItem, error) {
	var item models.QueueItem
	err := row.Scan(
		&item.ID, &item.Operation, &item.Collection, &item.DocumentID,
		&item.Payload, &item.Status, &item.RetryCount, &item.LastError, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (db *DB) queryQueueItems(ctx context.Context, query string, args ...interface{}) ([]*models.QueueItem, error) {
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sync queue: %w", err)
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query sync queue: %w", err)
	}
	return items, nil
}

// GetQueueItem returns a single queue item or ErrQueueItemNotFound.
func (db *DB) GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM sync_queue WHERE id = ?`, id)
	item, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get queue item %s: %w", id, ErrQueueItemNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item %s: %w", id, err)
	}
	return item, nil
}

// ListPending returns pending items, oldest first.
func (db *DB) ListPending(ctx context.Context) ([]*models.QueueItem, error) {
	return db.queryQueueItems(ctx,
		`SELECT `+queueColumns+` FROM sync_queue WHERE status = 'pending' ORDER BY created_at ASC, id ASC`)
}

// ListFailed returns failed items still eligible for retry, oldest first.
func (db *DB) ListFailed(ctx context.Context, maxRetries int) ([]*models.QueueItem, error) {
	return db.queryQueueItems(ctx,
		`SELECT `+queueColumns+` FROM sync_queue
         WHERE status = 'failed' AND retry_count < ? ORDER BY created_at ASC, id ASC`,
		maxRetries)
}

// ListSyncable returns everything one drain pass should process: pending
// items plus failed items that have retries left, oldest first.
func (db *DB) ListSyncable(ctx context.Context, maxRetries int) ([]*models.QueueItem, error) {
	return db.queryQueueItems(ctx,
		`SELECT `+queueColumns+` FROM sync_queue
         WHERE status = 'pending' OR (status = 'failed' AND retry_count < ?)
         ORDER BY created_at ASC, id ASC`,
		maxRetries)
}

func (db *DB) setQueueStatus(ctx context.Context, id, status string, lastError *string) error {
	result, err := db.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, last_error = ? WHERE id = ?`, status, lastError, id)
	if err != nil {
		return fmt.Errorf("mark queue item %s %s: %w", id, status, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark queue item %s %s: %w", id, status, err)
	}
	if affected == 0 {
		return fmt.Errorf("mark queue item %s %s: %w", id, status, ErrQueueItemNotFound)
	}
	return nil
}

// MarkSyncing flags an item as in flight.
func (db *DB) MarkSyncing(ctx context.Context, id string) error {
	return db.setQueueStatus(ctx, id, models.StatusSyncing, nil)
}

// MarkFailed records a handler failure against an item.
func (db *DB) MarkFailed(ctx context.Context, id, errMsg string) error {
	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}
	return db.setQueueStatus(ctx, id, models.StatusFailed, lastError)
}

// MarkPending returns an item to the pending state.
func (db *DB) MarkPending(ctx context.Context, id string) error {
	return db.setQueueStatus(ctx, id, models.StatusPending, nil)
}

// IncrementRetry bumps an item's retry count and resets it to pending so
// the next drain picks it up again. Returns the new count.
func (db *DB) IncrementRetry(ctx context.Context, id string) (int, error) {
	result, err := db.db.ExecContext(ctx,
		`UPDATE sync_queue SET retry_count = retry_count + 1, status = 'pending' WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("increment retry %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("increment retry %s: %w", id, err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("increment retry %s: %w", id, ErrQueueItemNotFound)
	}

	var count int
	if err := db.db.QueryRowContext(ctx, `SELECT retry_count FROM sync_queue WHERE id = ?`, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("increment retry %s: %w", id, err)
	}
	return count, nil
}

// RemoveQueueItem deletes an item after a successful sync.
func (db *DB) RemoveQueueItem(ctx context.Context, id string) error {
	result, err := db.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove queue item %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove queue item %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("remove queue item %s: %w", id, ErrQueueItemNotFound)
	}
	return nil
}

// CountQueue returns the total number of queued items in any state.
func (db *DB) CountQueue(ctx context.Context) (int, error) {
	var count int
	if err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return count, nil
}

// CountPending returns the number of pending items.
func (db *DB) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE status = 'pending'`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return count, nil
}

// PurgeExceeding deletes failed items whose retry budget is spent and
// returns how many were removed.
func (db *DB) PurgeExceeding(ctx context.Context, maxRetries int) (int, error) {
	result, err := db.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status = 'failed' AND retry_count >= ?`, maxRetries)
	if err != nil {
		return 0, fmt.Errorf("purge queue: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge queue: %w", err)
	}
	return int(affected), nil
}

// ClearQueue drops every queued item.
func (db *DB) ClearQueue(ctx context.Context) error {
	if _, err := db.db.ExecContext(ctx, `DELETE FROM sync_queue`); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}
