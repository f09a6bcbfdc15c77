package graphql

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/c360/bookshelf/errors"
	"github.com/c360/bookshelf/store"
	"github.com/c360/bookshelf/token"
)

type contextKey int

const currentUserKey contextKey = iota

// bearerPrefix is matched case-insensitively against the Authorization header
const bearerPrefix = "bearer "

// Authenticator builds the per-request context: it extracts the bearer
// token, verifies it, loads the corresponding user and attaches it to the
// request context consumed by the resolvers.
//
// A missing Authorization header yields an anonymous context. A header
// that fails verification fails the whole request; this is deliberately
// fail-closed for malformed or expired tokens.
type Authenticator struct {
	tokens *token.Service
	users  store.UserStore
	logger *slog.Logger
}

// NewAuthenticator creates an Authenticator
func NewAuthenticator(tokens *token.Service, users store.UserStore, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// Middleware wraps next with bearer-token authentication
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" || !strings.HasPrefix(strings.ToLower(auth), bearerPrefix) {
			// No usable header: anonymous context
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.tokens.Verify(auth[len(bearerPrefix):])
		if err != nil {
			a.logger.Debug("token verification failed", "error", err)
			writeGraphQLError(w, http.StatusUnauthorized, codeUnauthenticated,
				"malformed or expired token")
			return
		}

		user, err := a.lookupUser(r.Context(), claims.UserID)
		switch {
		case err == nil:
			r = r.WithContext(WithCurrentUser(r.Context(), user))
		case errors.Is(err, errors.ErrNotFound):
			// Valid token for a user that no longer exists: resolvers treat
			// this the same as not authenticated
			a.logger.Debug("token user no longer exists", "user_id", claims.UserID)
		default:
			a.logger.Error("user lookup failed", "user_id", claims.UserID, "error", err)
			writeGraphQLError(w, http.StatusInternalServerError, codeInternal,
				"internal server error")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) lookupUser(ctx context.Context, rawID string) (store.User, error) {
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		// Verified claims with an unparsable id cannot match any user
		return store.User{}, errors.ErrNotFound
	}
	return a.users.FindByID(ctx, id)
}

// WithCurrentUser returns a context carrying the authenticated user
func WithCurrentUser(ctx context.Context, user store.User) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}

// CurrentUser returns the authenticated user attached to the context, if any
func CurrentUser(ctx context.Context) (store.User, bool) {
	user, ok := ctx.Value(currentUserKey).(store.User)
	return user, ok
}

// writeGraphQLError writes a GraphQL-shaped error response for failures
// that happen before the query executes.
func writeGraphQLError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": []map[string]interface{}{
			{
				"message":    message,
				"extensions": map[string]interface{}{"code": code},
			},
		},
	})
}
