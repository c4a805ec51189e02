package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/appcontext"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
)

const datasetNotFound = "Dataset not found"

type renameRequest struct {
	Name string `json:"name"`
}

func ListDatasets(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
		if !ok {
			return
		}

		datasets, err := ctx.Datasets.List(c.Request.Context(), user.ID)
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "datasets": datasets})
	}
}

func UploadDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
		if !ok {
			return
		}

		file, err := readUpload(ctx, c)
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		dataset, err := ctx.Datasets.Upload(c.Request.Context(), user.ID, file)
		if err != nil {
			ctx.Logger.Warn("Failed to upload dataset",
				zap.String("user_id", user.ID.String()),
				zap.String("filename", file.Filename),
				zap.Error(err),
			)
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "File uploaded successfully", "dataset": dataset})
	}
}

func PreviewDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
		if !ok {
			return
		}
		datasetID, ok := pathID(ctx, c, "datasetID", datasetNotFound)
		if !ok {
			return
		}

		preview, err := ctx.Datasets.Preview(c.Request.Context(), user.ID, datasetID)
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "preview": preview})
	}
}

func GetDatasetStats(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
		if !ok {
			return
		}
		datasetID, ok := pathID(ctx, c, "datasetID", datasetNotFound)
		if !ok {
			return
		}

		stats, err := ctx.Datasets.Stats(c.Request.Context(), user.ID, datasetID)
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
	}
}

func RenameDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
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

		dataset, err := ctx.Datasets.Rename(c.Request.Context(), user.ID, datasetID, request.Name)
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "dataset": dataset})
	}
}

func DeleteDataset(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
		if !ok {
			return
		}
		datasetID, ok := pathID(ctx, c, "datasetID", datasetNotFound)
		if !ok {
			return
		}

		if err := ctx.Datasets.Delete(c.Request.Context(), user.ID, datasetID); err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
