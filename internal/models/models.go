package models

import (
	"encoding/json"
	"time"
)

// Record is one locally stored planner entity. The payload is opaque to
// the sync engine; only the id, owner and date are lifted out for
// indexing and range queries.
type Record struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Date      time.Time       `json:"date"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// QueueItem is one persisted pending mutation against a remote document.
type QueueItem struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"`
	Collection string    `json:"collection"`
	DocumentID string    `json:"document_id"`
	Payload    *string   `json:"payload"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
	LastError  *string   `json:"last_error"`
	CreatedAt  time.Time `json:"created_at"`
}

// PayloadJSON returns the item payload as raw JSON, or nil for delete items.
func (q *QueueItem) PayloadJSON() json.RawMessage {
	if q.Payload == nil {
		return nil
	}
	return json.RawMessage(*q.Payload)
}

// Progress is a snapshot of one drain pass, published after every item.
type Progress struct {
	Total        int        `json:"total"`
	Synced       int        `json:"synced"`
	Failed       int        `json:"failed"`
	InProgress   bool       `json:"in_progress"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
}
