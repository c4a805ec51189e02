package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/appcontext"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/services"
)

func ExecuteQuery(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
		if !ok {
			return
		}

		var request services.QueryRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			respondError(ctx, c, apperrors.Validation("Query text is required"))
			return
		}

		result, err := ctx.Queries.Execute(c.Request.Context(), user, request)
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
	}
}

func GetQueryHistory(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
		if !ok {
			return
		}

		history, err := ctx.Queries.History(c.Request.Context(), user)
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "history": history})
	}
}

func ClearQueryHistory(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
		if !ok {
			return
		}

		deleted, err := ctx.Queries.ClearHistory(c.Request.Context(), user)
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
	}
}

func GetQueryResult(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
		if !ok {
			return
		}

		result, err := ctx.Queries.Result(c.Request.Context(), user, c.Param("resultID"))
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
	}
}

func ExportQueryResult(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
		if !ok {
			return
		}

		export, err := ctx.Queries.Export(c.Request.Context(), user, c.Param("resultID"), c.DefaultQuery("format", "csv"))
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.Header("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
		c.Data(http.StatusOK, export.ContentType, export.Body)
	}
}

func GetChart(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
		if !ok {
			return
		}

		png, err := ctx.Queries.Chart(c.Request.Context(), user, c.Param("chartID"))
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		c.Header("Cache-Control", "private, max-age=3600")
		c.Data(http.StatusOK, "image/png", png)
	}
}
