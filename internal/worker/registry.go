package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"planik/internal/models"
)

// ErrNoHandler means no sync handler is registered for an item's
// collection. This is a deployment error, not a transient fault, so the
// orchestrator does not retry it.
var ErrNoHandler = errors.New("no sync handler registered")

// Handler pushes one queued mutation to the remote store. A nil return
// means the operation reached the remote store. Handlers must be
// idempotent with respect to redelivery of the same item: a crash between
// handler success and queue removal causes the item to be delivered again.
type Handler interface {
	Apply(ctx context.Context, item *models.QueueItem) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, item *models.QueueItem) error

func (f HandlerFunc) Apply(ctx context.Context, item *models.QueueItem) error {
	return f(ctx, item)
}

// Registry maps entity collections to their sync handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register installs the handler for a collection, replacing any previous one.
func (r *Registry) Register(collection string, handler Handler) error {
	if !models.ValidCollection(collection) {
		return fmt.Errorf("register: unknown collection %q", collection)
	}
	if handler == nil {
		return fmt.Errorf("register %s: handler is nil", collection)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[collection] = handler
	return nil
}

// Unregister removes a collection's handler.
func (r *Registry) Unregister(collection string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, collection)
}

// Lookup returns the handler for a collection or ErrNoHandler.
func (r *Registry) Lookup(collection string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[collection]
	if !ok {
		return nil, fmt.Errorf("%w for collection %q", ErrNoHandler, collection)
	}
	return handler, nil
}
