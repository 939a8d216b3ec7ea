// Package service is the write-through layer the application state
// management talks to: every mutation lands in the local store first and
// enqueues the matching remote operation for the next drain.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"planik/internal/domain"
	"planik/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Planner struct {
	db     domain.Repository
	logger *zerolog.Logger
}

func NewPlanner(db domain.Repository, logger *zerolog.Logger) *Planner {
	lg := logger.With().Str("component", "planner").Logger()
	return &Planner{db: db, logger: &lg}
}

// Create stores a new document locally and queues its creation on the
// remote store. Payloads without an id get a generated one, so creates
// work fully offline.
func (p *Planner) Create(ctx context.Context, collection string, payload json.RawMessage) (*models.Record, error) {
	payload, err := ensureDocumentID(payload)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}

	rec, err := models.RecordFromPayload(collection, payload)
	if err != nil {
		return nil, err
	}

	if err := p.db.Put(ctx, collection, rec); err != nil {
		return nil, err
	}
	if _, err := p.db.EnqueueMutation(ctx, models.OpCreate, collection, rec.ID, rec.Payload); err != nil {
		return nil, err
	}

	p.logger.Debug().Str("collection", collection).Str("id", rec.ID).Msg("created")
	return rec, nil
}

// Update overlays a partial payload onto the stored document and queues
// the update. The queue coalesces successive updates of the same
// document into one pending item.
func (p *Planner) Update(ctx context.Context, collection, id string, partial json.RawMessage) (*models.Record, error) {
	existing, err := p.db.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	merged := models.MergePayloads(existing.Payload, partial)
	rec, err := models.RecordFromPayload(collection, merged)
	if err != nil {
		return nil, err
	}
	rec.UpdatedAt = time.Now()

	if err := p.db.Put(ctx, collection, rec); err != nil {
		return nil, err
	}
	if _, err := p.db.EnqueueMutation(ctx, models.OpUpdate, collection, id, partial); err != nil {
		return nil, err
	}

	p.logger.Debug().Str("collection", collection).Str("id", id).Msg("updated")
	return rec, nil
}

// Delete removes the document locally and queues the remote delete. A
// delete of a document whose create never left the queue resolves
// without any remote work.
func (p *Planner) Delete(ctx context.Context, collection, id string) error {
	if err := p.db.DeleteRecord(ctx, collection, id); err != nil {
		return err
	}

	item, err := p.db.EnqueueMutation(ctx, models.OpDelete, collection, id, nil)
	if err != nil {
		return err
	}
	if item.Status == models.StatusResolved {
		p.logger.Debug().Str("collection", collection).Str("id", id).Msg("delete cancelled pending create")
	}
	return nil
}

// Get reads one document from the local store.
func (p *Planner) Get(ctx context.Context, collection, id string) (*models.Record, error) {
	return p.db.Get(ctx, collection, id)
}

// ListByOwner reads all of an owner's documents in a collection.
func (p *Planner) ListByOwner(ctx context.Context, collection, ownerID string) ([]*models.Record, error) {
	return p.db.QueryByOwner(ctx, collection, ownerID)
}

// ListRange reads an owner's documents dated inside [start, end].
func (p *Planner) ListRange(ctx context.Context, collection, ownerID string, start, end time.Time) ([]*models.Record, error) {
	return p.db.QueryRange(ctx, collection, ownerID, start, end)
}

// PendingMutations reports how many queued mutations still await sync;
// the UI surfaces this as the sync-status indicator.
func (p *Planner) PendingMutations(ctx context.Context) (int, error) {
	return p.db.CountPending(ctx)
}

// Stats returns local record counts per collection.
func (p *Planner) Stats(ctx context.Context) (map[string]int, error) {
	return p.db.Stats(ctx)
}

func ensureDocumentID(payload json.RawMessage) (json.RawMessage, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if id, ok := fields["id"].(string); ok && id != "" {
		return payload, nil
	}

	fields["id"] = uuid.NewString()
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return out, nil
}
