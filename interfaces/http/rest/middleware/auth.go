package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/danilohgds/f-system/pkg/auth"
	"github.com/danilohgds/f-system/pkg/common"
)

// Authenticate resolves the tenant id of every request and stores it in
// the context. Tokens arrive as a bearer header or, for WebSocket
// upgrades where browsers cannot set headers, as a "token" query
// parameter. When allowDevHeader is set (development only), a plain
// X-User-ID header is accepted instead.
func Authenticate(validator *auth.Validator, allowDevHeader bool, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)

			if token != "" {
				userID, err := validator.ValidateToken(token)
				if err != nil {
					logger.Debug("Token rejected", zap.Error(err))
					respondUnauthorized(w, "invalid token")
					return
				}
				next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
				return
			}

			if allowDevHeader {
				if userID := r.Header.Get("X-User-ID"); userID != "" {
					next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
					return
				}
			}

			respondUnauthorized(w, "missing credentials")
		})
	}
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"type":    "UNAUTHORIZED",
		"message": message,
	})
}
