package domain

import (
	"context"
	"encoding/json"
	"time"

	"planik/internal/models"
)

// Repository is the embedded store surface: the per-collection record
// mirror plus the durable mutation queue. *database.DB implements it.
type Repository interface {
	// Local record mirror
	Put(ctx context.Context, collection string, rec *models.Record) error
	BulkPut(ctx context.Context, collection string, recs []*models.Record) error
	Get(ctx context.Context, collection, id string) (*models.Record, error)
	QueryByOwner(ctx context.Context, collection, ownerID string) ([]*models.Record, error)
	QueryRange(ctx context.Context, collection, ownerID string, start, end time.Time) ([]*models.Record, error)
	DeleteRecord(ctx context.Context, collection, id string) error
	BulkDelete(ctx context.Context, collection string, ids []string) error
	Clear(ctx context.Context, collection string) error
	ClearOwner(ctx context.Context, ownerID string) error
	Stats(ctx context.Context) (map[string]int, error)

	// Mutation queue
	EnqueueMutation(ctx context.Context, operation, collection, documentID string, payload json.RawMessage) (*models.QueueItem, error)
	ListPending(ctx context.Context) ([]*models.QueueItem, error)
	ListFailed(ctx context.Context, maxRetries int) ([]*models.QueueItem, error)
	CountQueue(ctx context.Context) (int, error)
	CountPending(ctx context.Context) (int, error)
	PurgeExceeding(ctx context.Context, maxRetries int) (int, error)
	ClearQueue(ctx context.Context) error
}

// EventPublisher is the notification seam for progress and connectivity
// events. *events.EventBus implements it.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
