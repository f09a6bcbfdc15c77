package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/c360/bookshelf/store"
	"github.com/c360/bookshelf/token"
)

func newTestAuthenticator(t *testing.T) (*Authenticator, *store.Memory, *token.Service) {
	t.Helper()

	mem := store.NewMemory()
	tokens, err := token.NewService("test-secret", 0)
	require.NoError(t, err)

	return NewAuthenticator(tokens, mem.Users(), nil), mem, tokens
}

// captureHandler records whether it ran and what user the context carried
type captureHandler struct {
	called bool
	user   store.User
	authed bool
}

func (h *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.user, h.authed = CurrentUser(r.Context())
	w.WriteHeader(http.StatusOK)
}

func TestMiddlewareAnonymous(t *testing.T) {
	auth, _, _ := newTestAuthenticator(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "non-bearer scheme", header: "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &captureHandler{}
			req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			auth.Middleware(next).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, next.called)
			assert.False(t, next.authed, "context must be anonymous")
		})
	}
}

func TestMiddlewareValidToken(t *testing.T) {
	auth, mem, tokens := newTestAuthenticator(t)

	created, err := store.NewUser("mluukkai", "refactoring")
	require.NoError(t, err)
	user, err := mem.Users().Insert(context.Background(), created)
	require.NoError(t, err)

	signed, err := tokens.Sign(user)
	require.NoError(t, err)

	next := &captureHandler{}
	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()

	auth.Middleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, next.called)
	require.True(t, next.authed)
	assert.Equal(t, user.ID, next.user.ID)
	assert.Equal(t, "mluukkai", next.user.Username)
}

func TestMiddlewareCaseInsensitiveScheme(t *testing.T) {
	auth, mem, tokens := newTestAuthenticator(t)

	created, err := store.NewUser("mluukkai", "refactoring")
	require.NoError(t, err)
	user, err := mem.Users().Insert(context.Background(), created)
	require.NoError(t, err)

	signed, err := tokens.Sign(user)
	require.NoError(t, err)

	next := &captureHandler{}
	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("Authorization", "bearer "+signed)
	rec := httptest.NewRecorder()

	auth.Middleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, next.authed)
}

func TestMiddlewareMalformedToken(t *testing.T) {
	auth, _, _ := newTestAuthenticator(t)

	next := &captureHandler{}
	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()

	auth.Middleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, next.called, "handler must not run on a bad token")

	var body struct {
		Errors []struct {
			Message    string
			Extensions struct{ Code string }
		}
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, codeUnauthenticated, body.Errors[0].Extensions.Code)
}

func TestMiddlewareTokenForDeletedUser(t *testing.T) {
	auth, mem, tokens := newTestAuthenticator(t)

	// Sign a token for a user that was never persisted
	ghost, err := store.NewUser("ghost", "")
	require.NoError(t, err)
	ghost.ID = primitive.NewObjectID()

	signed, err := tokens.Sign(ghost)
	require.NoError(t, err)

	next := &captureHandler{}
	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()

	auth.Middleware(next).ServeHTTP(rec, req)

	// A valid token for a missing user degrades to anonymous
	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, next.called)
	assert.False(t, next.authed)

	n, err := mem.Users().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCurrentUserRoundTrip(t *testing.T) {
	user := store.User{Username: "mluukkai"}

	ctx := WithCurrentUser(context.Background(), user)
	got, ok := CurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, "mluukkai", got.Username)

	_, ok = CurrentUser(context.Background())
	assert.False(t, ok)
}
