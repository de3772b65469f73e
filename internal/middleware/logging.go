package middleware

import (
	"time"

	"ignews-service/internal/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs method, path, status, duration and response size for
// every request. Query strings are left out: OAuth callbacks carry codes.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := map[string]any{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"size":     c.Writer.Size(),
			"ip":       c.ClientIP(),
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.Error("request", fields)
		case c.Writer.Status() >= 400:
			logger.Warn("request", fields)
		default:
			logger.Info("request", fields)
		}
	}
}
