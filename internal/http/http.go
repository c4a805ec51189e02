package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/appcontext"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/http/middleware"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/utils"
)

type APIService struct {
	engine  *gin.Engine
	context *appcontext.Context

	generalLimit *middleware.RateLimiter
	uploadLimit  *middleware.RateLimiter
}

func NewHTTPService(ctx *appcontext.Context) *APIService {
	engine := gin.New()
	// Client IPs key the rate limits, so forwarding headers are honoured only
	// from configured proxies. An empty list trusts none.
	if err := engine.SetTrustedProxies(ctx.TrustedProxies); err != nil {
		ctx.Logger.Error("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}
	engine.Use(middleware.Recovery(ctx.Logger))
	engine.Use(middleware.RequestLogger(ctx.Logger))
	engine.Use(middleware.CORSMiddleware(ctx.AllowedOrigins, ctx.SecureCookies()))
	engine.MaxMultipartMemory = 32 << 20

	service := &APIService{
		engine:       engine,
		context:      ctx,
		generalLimit: middleware.NewRateLimiter(ctx.RateLimitPerMinute, time.Minute),
		uploadLimit:  middleware.NewRateLimiter(ctx.UploadLimitPerHour, time.Hour),
	}
	service.setupRoutes()
	return service
}

func (h *APIService) Engine() *gin.Engine {
	return h.engine
}

func (h *APIService) setupRoutes() {
	api := h.engine.Group("/api")
	api.GET("/health", Health(h.context))

	limited := api.Group("")
	limited.Use(middleware.RateLimit(h.generalLimit))

	h.setupAuthRoutes(limited)
	h.setupDatasetRoutes(limited)
	h.setupQueryRoutes(limited)
	h.setupSharedRoutes(limited)
	h.setupAdminRoutes(limited)

	search := limited.Group("/search")
	search.Use(middleware.SessionAuth(h.context))
	search.GET("", SearchDatasets(h.context))
}

func (h *APIService) setupAuthRoutes(group *gin.RouterGroup) {
	auth := group.Group("/auth")

	auth.POST("/register", Register(h.context))
	auth.POST("/register-admin", RegisterAdmin(h.context))
	auth.POST("/login", Login(h.context))
	auth.POST("/logout", Logout(h.context))
	auth.GET("/me", middleware.SessionAuth(h.context), GetUserInfo(h.context))
	auth.GET("/check", CheckAuth(h.context))
	auth.GET("/google/login", GoogleLogin(h.context))
	auth.GET("/google/callback", GoogleCallback(h.context))
}

func (h *APIService) setupDatasetRoutes(group *gin.RouterGroup) {
	authed := group.Group("")
	authed.Use(middleware.SessionAuth(h.context))

	authed.GET("/datasets", ListDatasets(h.context))
	authed.POST("/upload", middleware.RateLimit(h.uploadLimit), UploadDataset(h.context))
	authed.GET("/datasets/:datasetID/preview", PreviewDataset(h.context))
	authed.GET("/datasets/:datasetID/stats", GetDatasetStats(h.context))
	authed.PUT("/datasets/:datasetID/rename", RenameDataset(h.context))
	authed.DELETE("/datasets/:datasetID", DeleteDataset(h.context))
}

func (h *APIService) setupQueryRoutes(group *gin.RouterGroup) {
	authed := group.Group("")
	authed.Use(middleware.SessionAuth(h.context))

	authed.POST("/query", ExecuteQuery(h.context))
	authed.GET("/query-history", GetQueryHistory(h.context))
	authed.DELETE("/query-history", ClearQueryHistory(h.context))
	authed.GET("/query-result/:resultID", GetQueryResult(h.context))
	authed.GET("/export/:resultID", ExportQueryResult(h.context))
	authed.GET("/charts/:chartID", GetChart(h.context))
}

func (h *APIService) setupSharedRoutes(group *gin.RouterGroup) {
	shared := group.Group("/shared-datasets")
	shared.Use(middleware.SessionAuth(h.context))

	shared.GET("", ListSharedDatasets(h.context))
	shared.GET("/:datasetID/preview", PreviewSharedDataset(h.context))
	shared.GET("/:datasetID/stats", GetSharedDatasetStats(h.context))
}

func (h *APIService) setupAdminRoutes(group *gin.RouterGroup) {
	admin := group.Group("/admin")
	admin.Use(middleware.SessionAuth(h.context), middleware.AdminOnly())

	admin.GET("/shared-datasets", ListSharedDatasets(h.context))
	admin.POST("/shared-datasets/upload", middleware.RateLimit(h.uploadLimit), UploadSharedDataset(h.context))
	admin.GET("/shared-datasets/:datasetID/preview", PreviewSharedDataset(h.context))
	admin.GET("/shared-datasets/:datasetID/stats", GetSharedDatasetStats(h.context))
	admin.PUT("/shared-datasets/:datasetID/rename", RenameSharedDataset(h.context))
	admin.DELETE("/shared-datasets/:datasetID", DeleteSharedDataset(h.context))

	admin.GET("/analytics", GetDashboardStatistics(h.context))
	admin.POST("/maintenance/sweep", RunMaintenance(h.context))
}

func Health(ctx *appcontext.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if ctx.DB != nil {
			sqlDB, err := ctx.DB.DB()
			if err == nil {
				err = sqlDB.PingContext(c.Request.Context())
			}
			if err != nil {
				ctx.Logger.Error("Database health check failed", zap.Error(err))
				status = "unhealthy"
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"success": code == http.StatusOK, "status": status, "timestamp": time.Now().UTC()})
	}
}

// respondError writes the standard error body. Internal failures are logged.
func respondError(ctx *appcontext.Context, c *gin.Context, err error) {
	if apperrors.KindOf(err) == apperrors.KindInternal {
		ctx.Logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(utils.ErrorResponse(err))
}

func currentUser(ctx *appcontext.Context, c *gin.Context) (*entity.User, bool) {
	user, err := utils.GetCurrentUser(c)
	if err != nil {
		ctx.Logger.Error("Failed to get user from request", zap.Error(err))
		respondError(ctx, c, apperrors.Unauthorized("Authentication required"))
		return nil, false
	}
	return user, true
}

// pathID parses a UUID path parameter. Malformed ids are reported as not
// found, like ids that do not exist.
func pathID(ctx *appcontext.Context, c *gin.Context, param, notFound string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		respondError(ctx, c, apperrors.NotFound(notFound))
		return uuid.Nil, false
	}
	return id, true
}
