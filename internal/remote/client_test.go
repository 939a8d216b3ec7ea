package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"planik/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	method string
	path   string
	body   string
	header http.Header
}

func newTestClient(t *testing.T, status int, respond func(r *http.Request)) (*Client, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.body = string(body)
		captured.header = r.Header.Clone()
		if respond != nil {
			respond(r)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	logger := zerolog.Nop()
	client := NewClient(Options{
		BaseURL:           server.URL,
		APIKey:            "secret",
		RequestsPerSecond: 1000,
	}, &logger)
	return client, captured
}

func pendingItem(op, docID string, payload *string) *models.QueueItem {
	return &models.QueueItem{
		ID:         "item-1",
		Operation:  op,
		Collection: models.CollectionTasks,
		DocumentID: docID,
		Payload:    payload,
		Status:     models.StatusPending,
	}
}

func TestHandler_CreateIsPut(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, nil)
	payload := `{"id":"task-1","title":"x"}`

	handler := client.Handler(models.CollectionTasks)
	err := handler.Apply(context.Background(), pendingItem(models.OpCreate, "task-1", &payload))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, captured.method)
	assert.Equal(t, "/collections/tasks/documents/task-1", captured.path)
	assert.JSONEq(t, payload, captured.body)
	assert.Equal(t, "application/json", captured.header.Get("Content-Type"))
	assert.Equal(t, "item-1", captured.header.Get("Idempotency-Key"))
	assert.Equal(t, "secret", captured.header.Get("X-Api-Key"))
}

func TestHandler_DeleteHasNoBody(t *testing.T) {
	client, captured := newTestClient(t, http.StatusOK, nil)

	handler := client.Handler(models.CollectionTasks)
	err := handler.Apply(context.Background(), pendingItem(models.OpDelete, "task-1", nil))
	require.NoError(t, err)

	assert.Equal(t, http.MethodDelete, captured.method)
	assert.Empty(t, captured.body)
}

func TestHandler_DeleteNotFoundIsSuccess(t *testing.T) {
	client, _ := newTestClient(t, http.StatusNotFound, nil)

	handler := client.Handler(models.CollectionTasks)
	err := handler.Apply(context.Background(), pendingItem(models.OpDelete, "gone", nil))
	assert.NoError(t, err, "deleting an already-deleted document matches the intent")
}

func TestHandler_PutNotFoundIsError(t *testing.T) {
	client, _ := newTestClient(t, http.StatusNotFound, nil)
	payload := `{"id":"task-1"}`

	handler := client.Handler(models.CollectionTasks)
	err := handler.Apply(context.Background(), pendingItem(models.OpUpdate, "task-1", &payload))
	assert.Error(t, err)
}

func TestHandler_ServerErrorIncludesStatus(t *testing.T) {
	client, _ := newTestClient(t, http.StatusServiceUnavailable, nil)
	payload := `{"id":"task-1"}`

	handler := client.Handler(models.CollectionTasks)
	err := handler.Apply(context.Background(), pendingItem(models.OpCreate, "task-1", &payload))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHandler_UnknownOperation(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK, nil)

	handler := client.Handler(models.CollectionTasks)
	err := handler.Apply(context.Background(), pendingItem("rename", "task-1", nil))
	assert.Error(t, err)
}

func TestHandler_ContextCancelled(t *testing.T) {
	client, _ := newTestClient(t, http.StatusOK, nil)
	payload := `{}`

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handler := client.Handler(models.CollectionTasks)
	err := handler.Apply(ctx, pendingItem(models.OpCreate, "task-1", &payload))
	assert.Error(t, err)
}
