package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/appcontext"
)

func SearchDatasets(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
		if !ok {
			return
		}

		hits, err := ctx.Search.Search(user, c.Query("q"))
		if err != nil {
			respondError(ctx, c, err)
			return
		}
		if hits == nil {
			hits = []interface{}{}
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "results": hits})
	}
}
