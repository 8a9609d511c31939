package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/UkralStul/nexus-sync/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRows(t *testing.T) {
	root, err := decodeRows(nil)
	require.NoError(t, err)
	assert.Nil(t, root)

	root, err = decodeRows([]node{
		{Key: "users", Data: []byte(`{"u1":{"username":"ana"}}`)},
		{Key: "posts", Data: []byte(`{"p1":{"likes":3}}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, json.Number("3"), storage.Lookup(root, storage.Path{"posts", "p1", "likes"}))
	assert.Equal(t, "ana", storage.Lookup(root, storage.Path{"users", "u1", "username"}))

	root, err = decodeRows([]node{{Key: "chats", Data: []byte("null")}})
	require.NoError(t, err)
	assert.Nil(t, root, "placeholder rows are not data")

	_, err = decodeRows([]node{{Key: "broken", Data: []byte(`{`)}})
	assert.ErrorContains(t, err, "broken")
}

// newTestStore подключается к NEXUS_TEST_DATABASE_URL, иначе тест пропускается.
func newTestStore(t *testing.T) *Store {
	dsn := os.Getenv("NEXUS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("NEXUS_TEST_DATABASE_URL is not set")
	}
	s, err := New(dsn)
	require.NoError(t, err)
	require.NoError(t, s.db.Exec("DELETE FROM nodes").Error)
	return s
}

func TestStore_ReadModifyWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.Get(ctx, storage.Path{"posts"})
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.Set(ctx, storage.Path{"posts", "p1"}, map[string]any{"likes": json.Number("1")}))
	require.NoError(t, s.Update(ctx, storage.Path{"posts", "p1"}, map[string]any{"likes": json.Number("2"), "comments/c_1": "ana: hola"}))

	v, err = s.Get(ctx, storage.Path{"posts", "p1", "comments", "c_1"})
	require.NoError(t, err)
	assert.Equal(t, "ana: hola", v)

	id, err := s.Push(ctx, storage.Path{"chats", "a_b", "messages"}, map[string]any{"text": "hola"})
	require.NoError(t, err)
	v, err = s.Get(ctx, storage.Path{"chats", "a_b", "messages", id, "text"})
	require.NoError(t, err)
	assert.Equal(t, "hola", v)

	require.NoError(t, s.Delete(ctx, storage.Path{"posts", "p1"}))
	v, err = s.Get(ctx, storage.Path{"posts"})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStore_ConcurrentFirstWritesToNewCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Push(ctx, storage.Path{"chats", fmt.Sprintf("c%d", i), "messages"}, map[string]any{"text": "hola"})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	v, err := s.Get(ctx, storage.Path{"chats"})
	require.NoError(t, err)
	chats, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Len(t, chats, writers, "no write is lost")
}
