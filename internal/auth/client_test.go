package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/UkralStul/nexus-sync/internal/remote"
	"github.com/UkralStul/nexus-sync/internal/server"
	"github.com/UkralStul/nexus-sync/internal/session"
	"github.com/UkralStul/nexus-sync/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestAuth поднимает dev-сервер с проверкой токенов, чтобы профиль писался уже под новой сессией.
func newTestAuth(t *testing.T) (*Client, *remote.Client, *session.Manager) {
	srv := server.New(inmemory.New(), server.Config{JWTSecret: "test", RequireAuth: true}, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	sessions, err := session.NewManager(context.Background(), session.NewMemoryStore())
	require.NoError(t, err)
	store, err := remote.New(ts.URL, remote.WithTokenSource(sessions.AuthToken))
	require.NoError(t, err)

	return New(ts.URL+"/v1/accounts", "key", store, sessions, nil), store, sessions
}

func TestSignUpThenSignIn_SameUserID(t *testing.T) {
	tuples := []struct{ email, password, username string }{
		{"ana@example.com", "secret1", "ana"},
		{"  Bob@Example.COM ", "hunter22", "bob"},
		{"c@d.io", "123456", "c"},
	}
	for _, tc := range tuples {
		c, _, sessions := newTestAuth(t)
		ctx := context.Background()

		uid, err := c.SignUp(ctx, tc.email, tc.password, tc.username)
		require.NoError(t, err)
		require.NotEmpty(t, uid)
		assert.Equal(t, uid, sessions.UserID())

		require.NoError(t, c.Logout(ctx))
		assert.Empty(t, c.CurrentUserID())

		again, err := c.SignIn(ctx, tc.email, tc.password)
		require.NoError(t, err)
		assert.Equal(t, uid, again)
		assert.Equal(t, uid, c.CurrentUserID())
	}
}

func TestSignUp_CreatesProfile(t *testing.T) {
	c, store, sessions := newTestAuth(t)
	ctx := context.Background()

	uid, err := c.SignUp(ctx, "Ana@Example.com", "secret1", "ana")
	require.NoError(t, err)

	user, err := remote.Get[domain.User](ctx, store, remote.Path("users", uid))
	require.NoError(t, err)
	assert.Equal(t, uid, user.ID)
	assert.Equal(t, "ana", user.Username)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Nil(t, user.ProfileImageURL)
	assert.NotZero(t, user.CreatedAt)

	cur := sessions.Current()
	require.NotNil(t, cur)
	assert.NotEmpty(t, cur.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cur.ExpiresAt, time.Minute)
}

func TestAuthErrors(t *testing.T) {
	c, _, sessions := newTestAuth(t)
	ctx := context.Background()

	_, err := c.SignUp(ctx, "ana@example.com", "secret1", "ana")
	require.NoError(t, err)

	_, err = c.SignUp(ctx, "ana@example.com", "secret1", "ana")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAuth))
	assert.Contains(t, err.Error(), "EMAIL_EXISTS")

	require.NoError(t, c.Logout(ctx))
	_, err = c.SignIn(ctx, "ana@example.com", "wrong-pass")
	require.Error(t, err)
	assert.Equal(t, domain.KindAuth, domain.KindOf(err))
	assert.Contains(t, err.Error(), "INVALID_PASSWORD")
	assert.Nil(t, sessions.Current())

	_, err = c.SignIn(ctx, "nobody@example.com", "secret1")
	assert.Contains(t, err.Error(), "EMAIL_NOT_FOUND")

	_, err = c.SignUp(ctx, "x@example.com", "secret1", "  ")
	assert.Equal(t, domain.KindAuth, domain.KindOf(err))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "john.doe@example.com", NormalizeEmail("  John.DOE@Example.COM  "))
}

func TestSignUp_ProfileWriteFailureLogsOut(t *testing.T) {
	router := server.New(inmemory.New(), server.Config{JWTSecret: "test"}, nil).Router()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/users/") {
			http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		router.ServeHTTP(w, r)
	}))
	defer ts.Close()

	sessions, err := session.NewManager(context.Background(), session.NewMemoryStore())
	require.NoError(t, err)
	store, err := remote.New(ts.URL, remote.WithTokenSource(sessions.AuthToken))
	require.NoError(t, err)
	c := New(ts.URL+"/v1/accounts", "key", store, sessions, nil)

	_, err = c.SignUp(context.Background(), "ana@example.com", "secret1", "ana")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Empty(t, c.CurrentUserID(), "no half-created account stays logged in")
	assert.Nil(t, sessions.Current())

	// Учетная запись уже создана у провайдера: повторный вход возможен
	uid, err := c.SignIn(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, uid)
}
