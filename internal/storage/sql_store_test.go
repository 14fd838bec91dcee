package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listkeeper/internal/logging"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	require.NoError(t, CreateSchema(context.Background(), db))
	return db
}

func TestCreateSchemaIdempotent(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, CreateSchema(context.Background(), db))
}

func TestEventSQLStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewEventSQLStore(db, logging.NewNoOpLogger())

	require.NoError(t, store.Ping(ctx))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	listID := int64(7)

	events := []*ItemEvent{
		{
			OwnerID: 1, Type: TypeProduct, Kind: EventAdded,
			Text: "Milk", NormalizedText: "milk",
			OccurredAt: base, SourceItemID: 10,
			Meta: EventMeta{SortOrder: 2},
		},
		{
			OwnerID: 1, Type: TypeProduct, Kind: EventAdded,
			Text: "Bread", NormalizedText: "bread",
			OccurredAt: base.Add(time.Hour), SourceItemID: 11,
		},
		{
			OwnerID: 1, Type: TypeProduct, Kind: EventCompleted,
			Text: "Milk", NormalizedText: "milk",
			OccurredAt: base.Add(2 * time.Hour), SourceItemID: 10,
			Meta: EventMeta{IsCompleted: true},
		},
		{
			OwnerID: 1, ListID: &listID, Type: TypeProduct, Kind: EventAdded,
			Text: "Eggs", NormalizedText: "eggs",
			OccurredAt: base.Add(3 * time.Hour), SourceItemID: 12,
		},
		{
			OwnerID: 2, Type: TypeProduct, Kind: EventAdded,
			Text: "Butter", NormalizedText: "butter",
			OccurredAt: base, SourceItemID: 13,
		},
	}
	for _, event := range events {
		require.NoError(t, store.Insert(ctx, event))
		assert.NotEmpty(t, event.ID, "insert assigns an id")
	}

	added, err := store.List(ctx, EventQuery{OwnerID: 1, Type: TypeProduct, Kind: EventAdded})
	require.NoError(t, err)
	require.Len(t, added, 2, "list-scoped and foreign events excluded")
	assert.Equal(t, "Milk", added[0].Text)
	assert.Equal(t, "Bread", added[1].Text)
	assert.Equal(t, 2, added[0].Meta.SortOrder)
	assert.True(t, added[0].OccurredAt.Equal(base))

	scoped, err := store.List(ctx, EventQuery{OwnerID: 1, Type: TypeProduct, Kind: EventAdded, ListID: &listID})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "Eggs", scoped[0].Text)
	require.NotNil(t, scoped[0].ListID)
	assert.Equal(t, listID, *scoped[0].ListID)

	count, err := store.Count(ctx, EventQuery{OwnerID: 1, Type: TypeProduct, Kind: EventCompleted})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	unique, err := store.CountDistinctKeys(ctx, 1, TypeProduct, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, unique, "milk and bread, eggs is list-scoped")

	last, err := store.LastOccurredAt(ctx, 1, TypeProduct, nil)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(base.Add(2*time.Hour)))

	none, err := store.LastOccurredAt(ctx, 99, TypeProduct, nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestEventSQLStorePingFailsWithoutTable(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Close())
	}()

	store := NewEventSQLStore(db, logging.NewNoOpLogger())
	assert.Error(t, store.Ping(context.Background()))
}

func TestItemSQLStore(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewItemSQLStore(db, logging.NewNoOpLogger())

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	completedAt := base.Add(2 * time.Hour)

	insert := `
		INSERT INTO list_items (
			id, owner_id, list_id, type, text, is_completed,
			sort_order, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := db.ExecContext(ctx, insert, 1, 1, nil, "product", "Milk", false, 0, base, nil)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, 2, 1, nil, "product", "Bread", true, 1, base.Add(time.Hour), completedAt)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, 3, 1, nil, "todo", "Call bank", false, 0, base, nil)
	require.NoError(t, err)

	additions, err := store.ListAdditions(ctx, 1, TypeProduct, nil)
	require.NoError(t, err)
	require.Len(t, additions, 2)
	assert.Equal(t, "Milk", additions[0].Text)
	assert.Nil(t, additions[0].CompletedAt)

	completions, err := store.ListCompletions(ctx, 1, TypeProduct, nil)
	require.NoError(t, err)
	require.Len(t, completions, 1)
	assert.Equal(t, "Bread", completions[0].Text)
	require.NotNil(t, completions[0].CompletedAt)
	assert.True(t, completions[0].CompletedAt.Equal(completedAt))

	total, err := store.Count(ctx, 1, TypeProduct, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	completed, err := store.Count(ctx, 1, TypeProduct, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
}

func TestStateSQLStoreUpsert(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewStateSQLStore(db, logging.NewNoOpLogger())

	missing, err := store.Get(ctx, 1, TypeProduct, "milk")
	require.NoError(t, err)
	assert.Nil(t, missing, "absent row reads as nil, not an error")

	hidden := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	state := &SuggestionState{
		OwnerID:        1,
		Type:           TypeProduct,
		SuggestionKey:  "milk",
		DismissedCount: 1,
		HiddenUntil:    &hidden,
	}
	require.NoError(t, store.Save(ctx, state))

	// Second save for the same key updates in place
	reset := hidden.Add(24 * time.Hour)
	state.DismissedCount = 0
	state.HiddenUntil = nil
	state.ResetAt = &reset
	require.NoError(t, store.Save(ctx, state))

	loaded, err := store.Get(ctx, 1, TypeProduct, "milk")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 0, loaded.DismissedCount)
	assert.Nil(t, loaded.HiddenUntil)
	require.NotNil(t, loaded.ResetAt)
	assert.True(t, loaded.ResetAt.Equal(reset))

	require.NoError(t, store.Save(ctx, &SuggestionState{
		OwnerID: 1, Type: TypeProduct, SuggestionKey: "bread", DismissedCount: 2,
	}))
	require.NoError(t, store.Save(ctx, &SuggestionState{
		OwnerID: 1, Type: TypeTodo, SuggestionKey: "workout",
	}))

	byOwner, err := store.ListByOwner(ctx, 1, TypeProduct)
	require.NoError(t, err)
	require.Len(t, byOwner, 2)
	assert.Contains(t, byOwner, "milk")
	assert.Contains(t, byOwner, "bread")

	byKeys, err := store.ListByKeys(ctx, 1, TypeProduct, []string{"bread", "absent"})
	require.NoError(t, err)
	require.Len(t, byKeys, 1)
	assert.Equal(t, 2, byKeys["bread"].DismissedCount)

	empty, err := store.ListByKeys(ctx, 1, TypeProduct, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
