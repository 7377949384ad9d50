package middleware

import (
	"net/http"
	"strings"

	"telecall/internal/core/services"

	"go.uber.org/zap"
)

// WebSocketAuth gates the websocket upgrade on a valid session token.
// Tokens arrive as a Bearer header or, for browser clients, a `token`
// query parameter. Claims are forwarded as headers for the relay.
func WebSocketAuth(authService services.AuthService, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("token")
			if token == "" {
				if parts := strings.Split(r.Header.Get("Authorization"), " "); len(parts) == 2 && parts[0] == "Bearer" {
					token = parts[1]
				}
			}
			if token == "" {
				http.Error(w, "authorization required", http.StatusUnauthorized)
				return
			}

			claims, err := authService.ValidateToken(token)
			if err != nil {
				logger.Warnw("websocket upgrade rejected", "error", err, "remote", r.RemoteAddr)
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			r.Header.Set("X-User-Id", string(claims.UserID))
			r.Header.Set("X-User-Name", claims.UserName)
			r.Header.Set("X-Session-Id", string(claims.SessionID))
			next.ServeHTTP(w, r)
		})
	}
}
