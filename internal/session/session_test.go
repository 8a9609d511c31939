package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LoggedOutWithoutKey(t *testing.T) {
	m, err := NewManager(context.Background(), NewMemoryStore())
	require.NoError(t, err)
	assert.Nil(t, m.Current())
	assert.Empty(t, m.UserID())
	assert.Empty(t, m.AuthToken())
}

func TestManager_PersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "settings.json"))

	m, err := NewManager(ctx, store)
	require.NoError(t, err)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, m.Set(ctx, Session{UserID: "u1", Token: "tok", ExpiresAt: exp}))

	restored, err := NewManager(ctx, store)
	require.NoError(t, err)
	cur := restored.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "u1", cur.UserID)
	assert.Equal(t, "tok", restored.AuthToken())
	assert.True(t, exp.Equal(cur.ExpiresAt))

	require.NoError(t, restored.Clear(ctx))
	again, err := NewManager(ctx, store)
	require.NoError(t, err)
	assert.Nil(t, again.Current())
}

func TestManager_SetRejectsEmptyUser(t *testing.T) {
	m, err := NewManager(context.Background(), NewMemoryStore())
	require.NoError(t, err)
	assert.Error(t, m.Set(context.Background(), Session{}))
}

func TestSession_ExpiredTokenIsHidden(t *testing.T) {
	s := &Session{UserID: "u1", Token: "tok", ExpiresAt: time.Now().Add(-time.Minute)}
	assert.Empty(t, s.AuthToken())

	s.ExpiresAt = time.Time{}
	assert.Equal(t, "tok", s.AuthToken())

	var nilSession *Session
	assert.Empty(t, nilSession.AuthToken())
}

func TestFileStore_CorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	_, _, err := NewFileStore(path).Get(context.Background(), KeyUserID)
	assert.Error(t, err)
}
