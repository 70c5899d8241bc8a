package http

import (
	"context"
	"net/http"
	"strings"

	"carrental-backend/internal/logger"
	"carrental-backend/internal/security"
)

type contextKey string

const accountIDKey contextKey = "account-id"

// AccountIDFromContext returns the authenticated account set by AuthMiddleware.
func AccountIDFromContext(ctx context.Context) (int32, bool) {
	id, ok := ctx.Value(accountIDKey).(int32)
	return id, ok
}

func withAccountID(ctx context.Context, accountID int32) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

// Handler rejects requests without a valid bearer access token.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authorization token is not provided"})
			return
		}

		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			logger.Debug("Rejected access token", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}

		next.ServeHTTP(w, r.WithContext(withAccountID(r.Context(), claims.AccountID)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		token, ok = strings.CutPrefix(header, "bearer ")
	}
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}
