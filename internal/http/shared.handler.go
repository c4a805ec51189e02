package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/appcontext"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
)

func ListSharedDatasets(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		datasets, err := ctx.Shared.List(c.Request.Context())
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "datasets": datasets})
	}
}

func UploadSharedDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := currentUser(ctx, c)
		if !ok {
			return
		}

		file, err := readUpload(ctx, c)
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		dataset, err := ctx.Shared.Upload(c.Request.Context(), admin, file)
		if err != nil {
			ctx.Logger.Warn("Failed to upload shared dataset",
				zap.String("user_id", admin.ID.String()),
				zap.String("filename", file.Filename),
				zap.Error(err),
			)
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Shared dataset uploaded successfully", "dataset": dataset})
	}
}

func PreviewSharedDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		datasetID, ok := pathID(ctx, c, "datasetID", datasetNotFound)
		if !ok {
			return
		}

		preview, err := ctx.Shared.Preview(c.Request.Context(), datasetID)
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "preview": preview})
	}
}

func GetSharedDatasetStats(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		datasetID, ok := pathID(ctx, c, "datasetID", datasetNotFound)
		if !ok {
			return
		}

		stats, err := ctx.Shared.Stats(c.Request.Context(), datasetID)
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
	}
}

func RenameSharedDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := currentUser(ctx, c)
		if !ok {
			return
		}
		datasetID, ok := pathID(ctx, c, "datasetID", datasetNotFound)
		if !ok {
			return
		}

		var request renameRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			respondError(ctx, c, apperrors.Validation("New name is required"))
			return
		}

		dataset, err := ctx.Shared.Rename(c.Request.Context(), admin, datasetID, request.Name)
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "dataset": dataset})
	}
}

func DeleteSharedDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := currentUser(ctx, c)
		if !ok {
			return
		}
		datasetID, ok := pathID(ctx, c, "datasetID", datasetNotFound)
		if !ok {
			return
		}

		if err := ctx.Shared.Delete(c.Request.Context(), admin, datasetID); err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
