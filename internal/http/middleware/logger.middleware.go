package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/utils"
)

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("Request failed", fields...)
		case status >= 400:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Info("Request handled", fields...)
		}
	}
}

// Recovery turns a panic into a 500 with the standard error body.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Recovered from panic",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
		)
		err := apperrors.Wrap(apperrors.KindInternal, "Internal server error", fmt.Errorf("%v", recovered))
		c.AbortWithStatusJSON(utils.ErrorResponse(err))
	})
}
