package utils

import (
	"github.com/gin-gonic/gin"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
)

// ErrorResponse maps err to its status code and the {success, error} body.
func ErrorResponse(err error) (int, gin.H) {
	return apperrors.KindOf(err).Status(), gin.H{
		"success": false,
		"error":   apperrors.PublicMessage(err),
	}
}
