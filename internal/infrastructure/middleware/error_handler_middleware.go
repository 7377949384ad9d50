package middleware

import (
	"net/http"

	apperrors "telecall/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// httpStatusFor maps an error classification to the HTTP status the
// API surfaces.
func httpStatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindTimeout:
		return http.StatusGatewayTimeout
	case apperrors.KindSignaling, apperrors.KindPeerConnection:
		return http.StatusBadGateway
	case apperrors.KindMedia:
		return http.StatusUnprocessableEntity
	case apperrors.KindRetriesExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware turns errors attached to the gin context into
// structured JSON responses.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		kind := apperrors.KindOf(err)

		logger.Errorw("request failed",
			"kind", kind,
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"request_id", RequestID(c),
		)

		c.JSON(httpStatusFor(kind), gin.H{
			"error":   string(kind),
			"message": err.Error(),
		})
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   string(apperrors.KindInternal),
					"message": "Internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}
