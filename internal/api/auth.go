package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/testaustime/testaustime-auth/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// UserLookup resolves a session token to its account
type UserLookup interface {
	FindByToken(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware authenticates a request by its session token, taken from
// the Authorization header or, failing that, the session cookie
func AuthMiddleware(users UserLookup, cookieName string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r, cookieName)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Missing session token")
				return
			}

			user, err := users.FindByToken(r.Context(), token)
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					logger.Error("AuthMiddleware: Failed to load user", zap.Error(err))
					writeError(w, http.StatusInternalServerError, "storage_error", "Failed to load user")
					return
				}
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid session token")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request, cookieName string) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// HandleGetCurrentUser returns the current authenticated user
func HandleGetCurrentUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value(userContextKey).(*models.User)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated")
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
