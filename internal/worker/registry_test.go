package worker

import (
	"context"
	"testing"

	"planik/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler() Handler {
	return HandlerFunc(func(ctx context.Context, item *models.QueueItem) error {
		return nil
	})
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register(models.CollectionTasks, noopHandler())
	require.NoError(t, err)

	handler, err := registry.Lookup(models.CollectionTasks)
	require.NoError(t, err)
	assert.NotNil(t, handler)
}

func TestRegistry_LookupMissing(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Lookup(models.CollectionNotes)
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	registry := NewRegistry()

	assert.Error(t, registry.Register("bookmarks", noopHandler()))
	assert.Error(t, registry.Register(models.CollectionTasks, nil))
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	calls := make([]string, 0, 2)
	require.NoError(t, registry.Register(models.CollectionTasks, HandlerFunc(func(ctx context.Context, item *models.QueueItem) error {
		calls = append(calls, "first")
		return nil
	})))
	require.NoError(t, registry.Register(models.CollectionTasks, HandlerFunc(func(ctx context.Context, item *models.QueueItem) error {
		calls = append(calls, "second")
		return nil
	})))

	handler, err := registry.Lookup(models.CollectionTasks)
	require.NoError(t, err)
	require.NoError(t, handler.Apply(ctx, &models.QueueItem{}))
	assert.Equal(t, []string{"second"}, calls)
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(models.CollectionTasks, noopHandler()))
	registry.Unregister(models.CollectionTasks)

	_, err := registry.Lookup(models.CollectionTasks)
	assert.ErrorIs(t, err, ErrNoHandler)
}
