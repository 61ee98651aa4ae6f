// Package middleware provides the HTTP middleware for the API surface.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/storage"
	"github.com/nodevault/custody-service/internal/httputil"
	"github.com/nodevault/custody-service/pkg/logger"
)

type contextKey string

const userIDKey contextKey = "userID"

// AuthMiddleware validates Bearer tokens and resolves the calling user.
type AuthMiddleware struct {
	users  storage.UserStore
	secret []byte
	log    *logger.Logger
}

// NewAuthMiddleware creates the middleware. secret must match the signing
// key used by the auth service.
func NewAuthMiddleware(users storage.UserStore, secret string, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{users: users, secret: []byte(secret), log: log}
}

// Handler rejects requests without a valid token and stores the user id on
// the request context.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, r, apperr.Unauthorized("missing Authorization header"))
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.respondError(w, r, apperr.Unauthorized("invalid Authorization header format"))
			return
		}

		userID, err := m.validateToken(parts[1])
		if err != nil {
			m.log.WithError(err).Warn("token validation failed")
			m.respondError(w, r, err)
			return
		}

		// The token may outlive the account.
		if _, err := m.users.GetUser(r.Context(), userID); err != nil {
			m.respondError(w, r, apperr.Unauthorized("unknown user"))
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) validateToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Unauthorized("unexpected signing method").
				WithDetails("method", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, apperr.Unauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, apperr.Unauthorized("invalid token claims")
	}
	raw, ok := claims["userId"].(float64)
	if !ok || raw <= 0 {
		return 0, apperr.Unauthorized("invalid token claims")
	}
	return int64(raw), nil
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := apperr.From(err)
	httputil.WriteError(w, serviceErr)
	m.log.WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("authentication failed")
}

// UserID extracts the authenticated user id from the context. Zero means
// unauthenticated.
func UserID(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey).(int64)
	return id
}

// WithUserID returns a context carrying the given user id, for tests.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}
