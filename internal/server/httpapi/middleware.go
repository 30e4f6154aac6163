package httpapi

import (
	"time"

	"github.com/dmitrijs2005/sehatbot/internal/logging"
	"github.com/gin-gonic/gin"
)

func requestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.String())
		}

		ctx := c.Request.Context()
		switch {
		case c.Writer.Status() >= 500:
			l.Error(ctx, "request", args...)
		case c.Writer.Status() >= 400:
			l.Warn(ctx, "request", args...)
		default:
			l.Debug(ctx, "request", args...)
		}
	}
}
