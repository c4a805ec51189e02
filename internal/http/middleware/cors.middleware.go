package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware echoes allowed origins so the session cookie can be sent
// cross-site. Outside production an empty allow list admits every origin.
func CORSMiddleware(allowedOrigins []string, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && originAllowed(allowedOrigins, origin, production) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func originAllowed(allowed []string, origin string, production bool) bool {
	if len(allowed) == 0 {
		return !production
	}
	return slices.Contains(allowed, origin)
}
