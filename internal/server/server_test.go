package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/UkralStul/nexus-sync/internal/storage/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg Config) http.Handler {
	s := New(inmemory.New(), cfg, nil)
	t.Cleanup(s.Close)
	return s.Router()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) any {
	var v any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStore_PutGetPatch(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := do(t, h, http.MethodGet, "/users/u1.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode(t, rec), "missing node is null")

	rec = do(t, h, http.MethodPut, "/users/u1.json", `{"username":"ana","bio":"hola"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPatch, "/users/u1.json", `{"bio":"adios","settings/theme":"dark"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/users/u1.json", "")
	assert.Equal(t, map[string]any{
		"username": "ana",
		"bio":      "adios",
		"settings": map[string]any{"theme": "dark"},
	}, decode(t, rec))

	rec = do(t, h, http.MethodGet, "/users/u1/username.json", "")
	assert.Equal(t, "ana", decode(t, rec))
}

func TestStore_PostReturnsName(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := do(t, h, http.MethodPost, "/chats/a_b/messages.json", `{"text":"hola"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec).(map[string]any)
	name, ok := body["name"].(string)
	require.True(t, ok)
	require.NotEmpty(t, name)

	rec = do(t, h, http.MethodGet, "/chats/a_b/messages/"+name+"/text.json", "")
	assert.Equal(t, "hola", decode(t, rec))
}

func TestStore_Delete(t *testing.T) {
	h := newTestServer(t, Config{})
	do(t, h, http.MethodPut, "/posts/p1.json", `{"likes":1}`)

	rec := do(t, h, http.MethodDelete, "/posts/p1.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/posts.json", "")
	assert.Nil(t, decode(t, rec), "empty collections are pruned")
}

func TestStore_BadRequests(t *testing.T) {
	h := newTestServer(t, Config{})

	rec := do(t, h, http.MethodGet, "/users/u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/users/u1.json", `{"broken"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPatch, "/users/u1.json", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/users/a$b.json", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec).(map[string]any), "error")
}

func TestIdentity_SignUpAndSignIn(t *testing.T) {
	h := newTestServer(t, Config{JWTSecret: "s3cret"})

	rec := do(t, h, http.MethodPost, "/v1/accounts:signUp?key=k",
		`{"email":" Ana@Example.com ","password":"secreto","returnSecureToken":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var up credentialsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	assert.Equal(t, "ana@example.com", up.Email)
	assert.NotEmpty(t, up.LocalID)
	assert.NotEmpty(t, up.IDToken)
	assert.Equal(t, "3600", up.ExpiresIn)

	rec = do(t, h, http.MethodPost, "/v1/accounts:signInWithPassword?key=k",
		`{"email":"ana@example.com","password":"secreto","returnSecureToken":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var in credentialsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &in))
	assert.Equal(t, up.LocalID, in.LocalID)
	assert.True(t, in.Registered)
}

func TestIdentity_Errors(t *testing.T) {
	h := newTestServer(t, Config{})
	do(t, h, http.MethodPost, "/v1/accounts:signUp", `{"email":"ana@example.com","password":"secreto"}`)

	cases := []struct {
		name, target, body, message string
	}{
		{"duplicate", "/v1/accounts:signUp", `{"email":"ANA@example.com","password":"secreto"}`, "EMAIL_EXISTS"},
		{"weak", "/v1/accounts:signUp", `{"email":"bea@example.com","password":"123"}`, "WEAK_PASSWORD"},
		{"bad email", "/v1/accounts:signUp", `{"email":"bea","password":"secreto"}`, "INVALID_EMAIL"},
		{"wrong password", "/v1/accounts:signInWithPassword", `{"email":"ana@example.com","password":"nope123"}`, "INVALID_PASSWORD"},
		{"unknown", "/v1/accounts:signInWithPassword", `{"email":"zoe@example.com","password":"secreto"}`, "EMAIL_NOT_FOUND"},
		{"junk", "/v1/accounts:signUp", `{`, "INVALID_JSON"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tc.target, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec).(map[string]any)
			msg := body["error"].(map[string]any)["message"].(string)
			assert.True(t, strings.HasPrefix(msg, tc.message), msg)
		})
	}
}

func TestStore_RequireAuth(t *testing.T) {
	s := New(inmemory.New(), Config{JWTSecret: "s3cret", RequireAuth: true}, nil)
	h := s.Router()

	rec := do(t, h, http.MethodGet, "/posts.json", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := s.accounts.IssueToken("u1", "ana@example.com")
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/posts.json?auth="+token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	expired := NewAccounts("s3cret", -time.Minute)
	old, err := expired.IssueToken("u1", "ana@example.com")
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/posts.json?auth="+old, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	uid, err := s.accounts.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, Config{RatePerMinute: 1, Burst: 2})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/posts.json", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/posts.json", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/posts.json", "").Code)
}
