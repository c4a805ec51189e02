package http

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/appcontext"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/http/middleware"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/services"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/utils"
)

const (
	oauthStateCookie = "oauth_state"
	googleUserInfo   = "https://www.googleapis.com/oauth2/v3/userinfo"
)

type userView struct {
	UserID         uuid.UUID           `json:"user_id"`
	Email          string              `json:"email"`
	Name           string              `json:"name"`
	Role           string              `json:"role"`
	IsAdmin        bool                `json:"is_admin"`
	ProfilePicture string              `json:"profile_picture,omitempty"`
	CreatedAt      *time.Time          `json:"created_at,omitempty"`
	LastLogin      *time.Time          `json:"last_login,omitempty"`
	Stats          *services.UserStats `json:"stats,omitempty"`
}

func newUserView(u *entity.User) userView {
	v := userView{
		UserID:         u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		IsAdmin:        u.IsAdmin(),
		ProfilePicture: u.ProfilePicture,
		LastLogin:      u.LastLogin,
	}
	if !u.CreatedAt.IsZero() {
		created := u.CreatedAt
		v.CreatedAt = &created
	}
	return v
}

// startSession creates the server-side session and sets the signed cookie.
func startSession(ctx *appcontext.Context, c *gin.Context, user *entity.User) error {
	session, err := ctx.Users.CreateSession(c.Request.Context(), user)
	if err != nil {
		return err
	}
	token, err := utils.GenerateSessionToken(ctx.SecretKey, session.ID, session.ExpiresAt)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "Failed to create session", err)
	}
	middleware.SetSessionCookie(ctx, c, token, int(time.Until(session.ExpiresAt).Seconds()))
	return nil
}

func Register(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request services.RegisterInput
		if err := c.ShouldBindJSON(&request); err != nil {
			respondError(ctx, c, apperrors.Validation("No data provided"))
			return
		}

		user, err := ctx.Users.Register(c.Request.Context(), request)
		if err != nil {
			respondError(ctx, c, err)
			return
		}
		if err := startSession(ctx, c, user); err != nil {
			ctx.Logger.Error("Failed to create session", zap.Error(err))
			respondError(ctx, c, apperrors.Wrap(apperrors.KindInternal, "User created but failed to create session", err))
			return
		}

		ctx.Logger.Info("New user registered", zap.String("user_id", user.ID.String()))
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Account created successfully", "user": newUserView(user)})
	}
}

func RegisterAdmin(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request services.RegisterInput
		if err := c.ShouldBindJSON(&request); err != nil {
			respondError(ctx, c, apperrors.Validation("No data provided"))
			return
		}

		user, err := ctx.Users.RegisterAdmin(c.Request.Context(), request)
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindForbidden {
				ctx.Logger.Warn("Rejected admin registration", zap.String("client_ip", c.ClientIP()))
			}
			respondError(ctx, c, err)
			return
		}
		if err := startSession(ctx, c, user); err != nil {
			ctx.Logger.Error("Failed to create session", zap.Error(err))
			respondError(ctx, c, apperrors.Wrap(apperrors.KindInternal, "Admin created but failed to create session", err))
			return
		}

		ctx.Logger.Info("New admin user registered", zap.String("user_id", user.ID.String()))
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Admin account created successfully", "user": newUserView(user)})
	}
}

func Login(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			respondError(ctx, c, apperrors.Validation("Email and password are required"))
			return
		}

		user, err := ctx.Users.Authenticate(c.Request.Context(), request.Email, request.Password)
		if err != nil {
			respondError(ctx, c, err)
			return
		}
		if err := startSession(ctx, c, user); err != nil {
			ctx.Logger.Error("Failed to create session", zap.Error(err))
			respondError(ctx, c, err)
			return
		}

		ctx.Logger.Info("User logged in", zap.String("user_id", user.ID.String()))
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Login successful", "user": newUserView(user)})
	}
}

func Logout(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, sessionID, err := middleware.ResolveRequestUser(ctx, c); err == nil {
			if err := ctx.Users.DestroySession(c.Request.Context(), sessionID); err != nil {
				ctx.Logger.Error("Failed to delete session", zap.Error(err))
			} else {
				ctx.Logger.Info("User logged out", zap.String("user_id", user.ID.String()))
			}
		}
		middleware.ClearSessionCookie(ctx, c)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logout successful"})
	}
}

func GetUserInfo(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(ctx, c)
		if !ok {
			return
		}

		stats, err := ctx.Users.Stats(c.Request.Context(), user.ID)
		if err != nil {
			respondError(ctx, c, err)
			return
		}

		view := newUserView(user)
		view.Stats = stats
		c.JSON(http.StatusOK, gin.H{"success": true, "user": view})
	}
}

// CheckAuth never fails on a missing or stale session; it reports it.
func CheckAuth(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _, err := middleware.ResolveRequestUser(ctx, c)
		if err != nil {
			if apperrors.KindOf(err) != apperrors.KindUnauthorized {
				respondError(ctx, c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "authenticated": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "authenticated": true, "user": newUserView(user)})
	}
}

func GoogleLogin(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ctx.OAuth2Config == nil {
			respondError(ctx, c, apperrors.New(apperrors.KindNotImplemented, "Google sign-in is not configured"))
			return
		}

		state, err := randomState()
		if err != nil {
			respondError(ctx, c, apperrors.Wrap(apperrors.KindInternal, "Failed to start sign-in", err))
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(oauthStateCookie, state, 600, "/", "", ctx.SecureCookies(), true)

		url := ctx.OAuth2Config.AuthCodeURL(state, oauth2.AccessTypeOnline)
		c.Redirect(http.StatusTemporaryRedirect, url)
	}
}

func GoogleCallback(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ctx.OAuth2Config == nil {
			respondError(ctx, c, apperrors.New(apperrors.KindNotImplemented, "Google sign-in is not configured"))
			return
		}

		state, err := c.Cookie(oauthStateCookie)
		if err != nil || state == "" || state != c.Query("state") {
			respondError(ctx, c, apperrors.Validation("Invalid sign-in state"))
			return
		}
		c.SetCookie(oauthStateCookie, "", -1, "/", "", ctx.SecureCookies(), true)

		token, err := ctx.OAuth2Config.Exchange(c.Request.Context(), c.Query("code"))
		if err != nil {
			ctx.Logger.Error("Failed to exchange token", zap.Error(err))
			respondError(ctx, c, apperrors.Unauthorized("Failed to exchange token"))
			return
		}

		info, err := fetchGoogleUser(c.Request.Context(), ctx.OAuth2Config.Client(c.Request.Context(), token), googleUserInfo)
		if err != nil {
			ctx.Logger.Error("Failed to get user info", zap.Error(err))
			respondError(ctx, c, apperrors.Wrap(apperrors.KindInternal, "Failed to get user info", err))
			return
		}
		if info.Email == "" || !info.EmailVerified {
			respondError(ctx, c, apperrors.Forbidden("Google account email is not verified"))
			return
		}

		user, err := ctx.Users.FindOrCreateOAuthUser(c.Request.Context(), info.Email, info.Name, info.Picture)
		if err != nil {
			respondError(ctx, c, err)
			return
		}
		if err := startSession(ctx, c, user); err != nil {
			respondError(ctx, c, err)
			return
		}

		c.Redirect(http.StatusTemporaryRedirect, ctx.FrontendURL+"/")
	}
}

type googleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func fetchGoogleUser(ctx context.Context, client *http.Client, endpoint string) (*googleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var user googleUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
