package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/bookshelf/config"
	"github.com/c360/bookshelf/metric"
	"github.com/c360/bookshelf/store"
)

func newTestServer(t *testing.T, cfg config.ServerConfig) (*Server, *testEnv) {
	t.Helper()

	env := newTestEnv(t)

	require.NoError(t, cfg.Validate())

	auth := NewAuthenticator(env.tokens, env.mem.Users(), nil)
	srv, err := NewServer(cfg, env.schema, auth, metric.NewRegistry(), nil)
	require.NoError(t, err)
	require.NoError(t, srv.Setup())

	return srv, env
}

func TestNewServerValidation(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthenticator(env.tokens, env.mem.Users(), nil)

	_, err := NewServer(config.ServerConfig{}, nil, auth, nil, nil)
	require.Error(t, err)

	_, err = NewServer(config.ServerConfig{}, env.schema, nil, nil, nil)
	require.Error(t, err)
}

func TestServerHealth(t *testing.T) {
	srv, _ := newTestServer(t, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestServerGraphQLQuery(t *testing.T) {
	srv, env := newTestServer(t, config.ServerConfig{})
	env.seedBook(t, "Clean Code", "Robert Martin", 2008, "refactoring")

	body := strings.NewReader(`{"query": "{ bookCount allBooks { title } }"}`)
	req := httptest.NewRequest(http.MethodPost, "/graphql", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			BookCount int32
			AllBooks  []struct{ Title string }
		}
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp.Data.BookCount)
	require.Len(t, resp.Data.AllBooks, 1)
	assert.Equal(t, "Clean Code", resp.Data.AllBooks[0].Title)
}

func TestServerMutationOverHTTPWithBearerToken(t *testing.T) {
	srv, env := newTestServer(t, config.ServerConfig{})

	created, err := store.NewUser("mluukkai", "refactoring")
	require.NoError(t, err)
	user, err := env.mem.Users().Insert(context.Background(), created)
	require.NoError(t, err)
	signed, err := env.tokens.Sign(user)
	require.NoError(t, err)

	body := strings.NewReader(`{"query": "mutation { addBook(title: \"Clean Code\", author: \"Robert Martin\", genres: [\"refactoring\"]) { title } }"}`)
	req := httptest.NewRequest(http.MethodPost, "/graphql", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Clean Code"`)
	assert.NotContains(t, rec.Body.String(), "errors")

	n, err := env.mem.Books().Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestServerRequestID(t *testing.T) {
	srv, _ := newTestServer(t, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	// An incoming id is propagated unchanged
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	rec = httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, "client-supplied", rec.Header().Get("X-Request-ID"))
}

func TestServerCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, config.ServerConfig{EnableCORS: true})

	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestServerPlayground(t *testing.T) {
	srv, _ := newTestServer(t, config.ServerConfig{EnablePlayground: true})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "GraphQL Playground")
}

func TestServerMetricsEndpoint(t *testing.T) {
	srv, env := newTestServer(t, config.ServerConfig{})
	env.seedBook(t, "Clean Code", "Robert Martin", 2008, "refactoring")

	// Exercise an instrumented route first
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.httpServer.Handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bookshelf_http_requests_total")
}

func TestServerLifecycle(t *testing.T) {
	cfg := config.ServerConfig{BindAddress: "127.0.0.1:0"}
	srv, _ := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- srv.Start(ctx, ready)
	}()

	<-ready
	assert.True(t, srv.IsRunning())

	require.NoError(t, srv.Stop(time.Second))
	require.NoError(t, <-done)
	assert.False(t, srv.IsRunning())

	// Stop is idempotent
	require.NoError(t, srv.Stop(time.Second))
}
