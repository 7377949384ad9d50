package middleware

import (
	"net/http"
	"strings"

	"telecall/internal/core/domain"
	"telecall/internal/core/services"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_name", claims.UserName)
		c.Set("session_id", claims.SessionID)
		c.Next()
	}
}

// SessionScopeMiddleware rejects requests whose token was issued for a
// session other than the one named in the route. Runs after
// AuthMiddleware.
func SessionScopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionVal, exists := c.Get("session_id")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		tokenSession, ok := sessionVal.(domain.SessionID)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session context"})
			c.Abort()
			return
		}

		requested := domain.SessionID(c.Param("id"))
		if requested == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session id required"})
			c.Abort()
			return
		}

		if requested != tokenSession {
			c.JSON(http.StatusForbidden, gin.H{"error": "token not valid for this session"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		// WebSocket clients cannot always set headers; allow query fallback.
		if token := c.Query("token"); token != "" {
			return token, true
		}
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}
