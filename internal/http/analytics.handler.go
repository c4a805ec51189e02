package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/appcontext"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
)

func GetDashboardStatistics(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		dashboard, err := ctx.Analytics.Dashboard(c.Request.Context())
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "analytics": dashboard})
	}
}

// RunMaintenance removes abandoned chunk writes and expired sessions.
func RunMaintenance(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		swept, err := ctx.Chunks.SweepPending(c.Request.Context(), appcontext.PendingWriteGrace)
		if err != nil {
			ctx.Logger.Error("Failed to sweep pending writes", zap.Error(err))
			respondError(ctx, c, apperrors.Wrap(apperrors.KindInternal, "Failed to sweep pending writes", err))
			return
		}

		sessions, err := ctx.Users.PurgeExpiredSessions(c.Request.Context())
		if err != nil {
			ctx.Logger.Error("Failed to purge expired sessions", zap.Error(err))
			respondError(ctx, c, err)
			return
		}

		ctx.Logger.Info("Maintenance completed", zap.Int("pending_writes", swept), zap.Int64("sessions", sessions))
		c.JSON(http.StatusOK, gin.H{"success": true, "pending_writes_removed": swept, "sessions_removed": sessions})
	}
}
