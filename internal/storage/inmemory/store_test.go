package inmemory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/UkralStul/nexus-sync/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore создает хранилище с одним постом для тестов
func newTestStore(t *testing.T) storage.Storage {
	store := New()
	err := store.Set(context.Background(), storage.Path{"posts", "post_1"}, map[string]any{
		"id":          "post_1",
		"description": "hola",
		"likes":       json.Number("3"),
	})
	require.NoError(t, err)
	return store
}

func TestStore_GetMissingIsNil(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v, err := store.Get(ctx, storage.Path{"posts", "nope"})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = store.Get(ctx, storage.Path{"users"})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStore_SetIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	record := map[string]any{"id": "u1", "username": "ana"}

	require.NoError(t, store.Set(ctx, storage.Path{"users", "u1"}, record))
	once, err := store.Get(ctx, storage.Path{})
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, storage.Path{"users", "u1"}, record))
	twice, err := store.Get(ctx, storage.Path{})
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestStore_UpdateMergesFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, storage.Path{"posts", "post_1"}, map[string]any{
		"likes":           json.Number("4"),
		"comments/c_1":    "ana: hi",
		"comments/c_2":    "bob: yo",
		"description/../": nil,
	})
	require.Error(t, err, "segments with dots are rejected")

	err = store.Update(ctx, storage.Path{"posts", "post_1"}, map[string]any{
		"likes":        json.Number("4"),
		"comments/c_1": "ana: hi",
	})
	require.NoError(t, err)

	post, err := store.Get(ctx, storage.Path{"posts", "post_1"})
	require.NoError(t, err)
	m := post.(map[string]any)
	assert.Equal(t, json.Number("4"), m["likes"])
	assert.Equal(t, "hola", m["description"])
	assert.Equal(t, map[string]any{"c_1": "ana: hi"}, m["comments"])
}

func TestStore_UpdateIsAtomicOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, storage.Path{"posts", "post_1"}, map[string]any{
		"likes": json.Number("10"),
		"a.b":   "bad",
	})
	require.Error(t, err)

	v, err := store.Get(ctx, storage.Path{"posts", "post_1", "likes"})
	require.NoError(t, err)
	assert.Equal(t, json.Number("3"), v)
}

func TestStore_PushKeysAreOrdered(t *testing.T) {
	store := New()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := store.Push(ctx, storage.Path{"chats", "a_b", "messages"}, map[string]any{"text": "m"})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}

	msgs, err := store.Get(ctx, storage.Path{"chats", "a_b", "messages"})
	require.NoError(t, err)
	assert.Len(t, msgs, 5)
}

func TestStore_DeletePrunesEmptyParents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, storage.Path{"posts", "post_1"}))

	root, err := store.Get(ctx, storage.Path{})
	require.NoError(t, err)
	assert.Nil(t, root)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v, err := store.Get(ctx, storage.Path{"posts", "post_1"})
	require.NoError(t, err)
	v.(map[string]any)["description"] = "mutated"

	again, err := store.Get(ctx, storage.Path{"posts", "post_1", "description"})
	require.NoError(t, err)
	assert.Equal(t, "hola", again)
}
