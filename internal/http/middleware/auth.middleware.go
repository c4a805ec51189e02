package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/appcontext"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/utils"
)

var errNoSession = apperrors.Unauthorized("Authentication required")

// SessionAuth resolves the session cookie to a freshly loaded user and stores
// it on the request.
func SessionAuth(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, sessionID, err := ResolveRequestUser(ctx, c)
		if err != nil {
			if err != errNoSession {
				ClearSessionCookie(ctx, c)
			}
			c.AbortWithStatusJSON(utils.ErrorResponse(err))
			return
		}
		utils.SetCurrentUser(c, user, sessionID)
		c.Next()
	}
}

// AdminOnly must run after SessionAuth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := utils.GetCurrentUser(c)
		if err != nil {
			c.AbortWithStatusJSON(utils.ErrorResponse(errNoSession))
			return
		}
		if !utils.UserCanManageShared(user) {
			c.AbortWithStatusJSON(utils.ErrorResponse(apperrors.Forbidden("Admin access required")))
			return
		}
		c.Next()
	}
}

// ResolveRequestUser reads the session token from the cookie, or from a
// bearer Authorization header, and loads its user.
func ResolveRequestUser(ctx *appcontext.Context, c *gin.Context) (*entity.User, uuid.UUID, error) {
	token := sessionToken(c)
	if token == "" {
		return nil, uuid.Nil, errNoSession
	}
	sessionID, err := utils.ValidateSessionToken(ctx.SecretKey, token)
	if err != nil {
		return nil, uuid.Nil, apperrors.Wrap(apperrors.KindUnauthorized, "Invalid session, please login again", err)
	}
	user, err := ctx.Users.ResolveSession(c.Request.Context(), sessionID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return user, sessionID, nil
}

func sessionToken(c *gin.Context) string {
	if token, err := c.Cookie(utils.SessionCookie); err == nil && token != "" {
		return token
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func SetSessionCookie(ctx *appcontext.Context, c *gin.Context, token string, maxAge int) {
	c.SetSameSite(sameSite(ctx))
	c.SetCookie(utils.SessionCookie, token, maxAge, "/", "", ctx.SecureCookies(), true)
}

func ClearSessionCookie(ctx *appcontext.Context, c *gin.Context) {
	SetSessionCookie(ctx, c, "", -1)
}

// sameSite is None in production, where the frontend is served from another
// origin, and Lax otherwise.
func sameSite(ctx *appcontext.Context) http.SameSite {
	if ctx.SecureCookies() {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
