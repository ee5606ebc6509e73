package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientsUnderTest(t *testing.T) map[string]Client {
	t.Helper()

	boltStore, err := NewBoltStore(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { boltStore.Close() })

	return map[string]Client{
		"memory": NewMemoryStore(),
		"bolt":   boltStore,
	}
}

func TestClientCRUD(t *testing.T) {
	for name, client := range clientsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec, err := client.Add(ctx, Record{Content: "likes go", UserID: "u1"})
			require.NoError(t, err)
			require.NotEmpty(t, rec.ID)
			assert.False(t, rec.CreatedAt.IsZero())

			got, err := client.Get(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, "likes go", got.Content)

			updated, err := client.Update(ctx, rec.ID, "prefers go", map[string]interface{}{"topic": "lang"})
			require.NoError(t, err)
			assert.Equal(t, "prefers go", updated.Content)
			assert.Equal(t, "lang", updated.Metadata["topic"])

			require.NoError(t, client.Delete(ctx, rec.ID))
			_, err = client.Get(ctx, rec.ID)
			require.Error(t, err)
			require.Error(t, client.Delete(ctx, rec.ID))
		})
	}
}

func TestClientGetAllFiltersByOwner(t *testing.T) {
	for name, client := range clientsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := client.Add(ctx, Record{Content: "a", UserID: "u1"})
			require.NoError(t, err)
			_, err = client.Add(ctx, Record{Content: "b", UserID: "u2"})
			require.NoError(t, err)

			all, err := client.GetAll(ctx, Filter{})
			require.NoError(t, err)
			assert.Len(t, all, 2)

			mine, err := client.GetAll(ctx, Filter{UserID: "u1"})
			require.NoError(t, err)
			require.Len(t, mine, 1)
			assert.Equal(t, "a", mine[0].Content)
		})
	}
}

func TestClientSearchRanksByTermOverlap(t *testing.T) {
	for name, client := range clientsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := client.Add(ctx, Record{Content: "go concurrency patterns", UserID: "u1"})
			require.NoError(t, err)
			_, err = client.Add(ctx, Record{Content: "go modules", UserID: "u1"})
			require.NoError(t, err)
			_, err = client.Add(ctx, Record{Content: "python asyncio", UserID: "u1"})
			require.NoError(t, err)

			hits, err := client.Search(ctx, "go concurrency", Filter{UserID: "u1"}, 10)
			require.NoError(t, err)
			require.Len(t, hits, 2)
			assert.Equal(t, "go concurrency patterns", hits[0].Record.Content)
			assert.Greater(t, hits[0].Score, hits[1].Score)

			limited, err := client.Search(ctx, "go", Filter{}, 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)
		})
	}
}

func TestHistoryStoreAppendAndRecent(t *testing.T) {
	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "r1", "add", map[string]interface{}{"content": "x"}))
	require.NoError(t, store.Append(ctx, "r1", "update", nil))
	require.NoError(t, store.Append(ctx, "r2", "add", nil))

	all, err := store.Recent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "add", all[0].Operation)
	assert.Equal(t, "r2", all[0].RecordID)

	forRecord, err := store.Recent(ctx, "r1", 10)
	require.NoError(t, err)
	require.Len(t, forRecord, 2)
	assert.Equal(t, "update", forRecord[0].Operation)
	assert.Equal(t, "x", forRecord[1].Payload["content"])

	limited, err := store.Recent(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
