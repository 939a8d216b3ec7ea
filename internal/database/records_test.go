package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"planik/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(id, owner string, date time.Time) *models.Record {
	return &models.Record{
		ID:        id,
		OwnerID:   owner,
		Date:      date,
		Payload:   json.RawMessage(`{"id":"` + id + `","title":"test"}`),
		UpdatedAt: time.Now(),
	}
}

func TestRecords_PutGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	rec := testRecord("task-1", "owner-1", date)

	err := db.Put(ctx, models.CollectionTasks, rec)
	require.NoError(t, err)

	got, err := db.Get(ctx, models.CollectionTasks, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "task-1", got.ID)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.JSONEq(t, string(rec.Payload), string(got.Payload))
}

func TestRecords_PutOverwrites(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	rec := testRecord("task-1", "owner-1", date)
	require.NoError(t, db.Put(ctx, models.CollectionTasks, rec))

	rec.Payload = json.RawMessage(`{"id":"task-1","title":"updated"}`)
	require.NoError(t, db.Put(ctx, models.CollectionTasks, rec))

	got, err := db.Get(ctx, models.CollectionTasks, "task-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"task-1","title":"updated"}`, string(got.Payload))

	// Upsert must not produce a second row.
	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[models.CollectionTasks])
}

func TestRecords_GetNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Get(context.Background(), models.CollectionTasks, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRecords_CollectionsAreIsolated(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Put(ctx, models.CollectionTasks, testRecord("doc-1", "owner-1", date)))
	require.NoError(t, db.Put(ctx, models.CollectionNotes, testRecord("doc-1", "owner-1", date)))

	require.NoError(t, db.DeleteRecord(ctx, models.CollectionTasks, "doc-1"))

	_, err := db.Get(ctx, models.CollectionTasks, "doc-1")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	// Same id in another collection survives.
	_, err = db.Get(ctx, models.CollectionNotes, "doc-1")
	assert.NoError(t, err)
}

func TestRecords_QueryRangeInclusive(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := testRecord("event-"+string(rune('a'+i)), "owner-1", base.AddDate(0, 0, i))
		require.NoError(t, db.Put(ctx, models.CollectionEvents, rec))
	}

	// [day 1, day 3] inclusive on both ends
	recs, err := db.QueryRange(ctx, models.CollectionEvents, "owner-1",
		base.AddDate(0, 0, 1), base.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "event-b", recs[0].ID)
	assert.Equal(t, "event-d", recs[2].ID)
}

func TestRecords_QueryByOwner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Put(ctx, models.CollectionTasks, testRecord("t-1", "alice", date)))
	require.NoError(t, db.Put(ctx, models.CollectionTasks, testRecord("t-2", "alice", date.AddDate(0, 0, -1))))
	require.NoError(t, db.Put(ctx, models.CollectionTasks, testRecord("t-3", "bob", date)))

	recs, err := db.QueryByOwner(ctx, models.CollectionTasks, "alice")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// Ordered by date, the earlier task comes first.
	assert.Equal(t, "t-2", recs[0].ID)
	assert.Equal(t, "t-1", recs[1].ID)
}

func TestRecords_BulkPutAndDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	recs := []*models.Record{
		testRecord("n-1", "owner-1", date),
		testRecord("n-2", "owner-1", date),
		testRecord("n-3", "owner-1", date),
	}
	require.NoError(t, db.BulkPut(ctx, models.CollectionNotes, recs))

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats[models.CollectionNotes])

	require.NoError(t, db.BulkDelete(ctx, models.CollectionNotes, []string{"n-1", "n-3"}))

	stats, err = db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[models.CollectionNotes])
}

func TestRecords_ClearOwner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Put(ctx, models.CollectionTasks, testRecord("t-1", "alice", date)))
	require.NoError(t, db.Put(ctx, models.CollectionNotes, testRecord("n-1", "alice", date)))
	require.NoError(t, db.Put(ctx, models.CollectionTasks, testRecord("t-2", "bob", date)))

	require.NoError(t, db.ClearOwner(ctx, "alice"))

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[models.CollectionTasks])
	assert.Equal(t, 0, stats[models.CollectionNotes])
}

func TestRecords_UnknownCollectionRejected(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// A typoed collection must fail loudly, not delete nothing.
	assert.Error(t, db.DeleteRecord(ctx, "taskz", "doc-1"))
	assert.Error(t, db.BulkDelete(ctx, "taskz", []string{"doc-1"}))
	assert.Error(t, db.Clear(ctx, "taskz"))
}

func TestRecords_DeleteMissingIsNoError(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.DeleteRecord(context.Background(), models.CollectionTasks, "missing"))
}

func TestStats_ZeroFilled(t *testing.T) {
	db := setupTestDB(t)

	stats, err := db.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, len(models.Collections))
	for _, c := range models.Collections {
		assert.Equal(t, 0, stats[c])
	}
}
