package appcontext

import (
	"time"

	"cloud.google.com/go/storage"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/chunkstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/services"
)

type Context struct {
	DB     *gorm.DB
	Logger *zap.Logger

	Port               string
	Environment        string
	SecretKey          []byte
	AllowedOrigins     []string
	TrustedProxies     []string
	FrontendURL        string
	MaxContentLength   int64
	RateLimitPerMinute int
	UploadLimitPerHour int

	GCSClient     *storage.Client
	GCPProjectID  string
	GCSBucketName string

	OAuth2Config      *oauth2.Config
	MeilisearchClient *meilisearch.Client

	Chunks    *chunkstore.Store
	Users     *services.UserService
	Datasets  *services.DatasetService
	Shared    *services.SharedDatasetService
	Queries   *services.QueryService
	Search    *services.SearchService
	Analytics *services.AnalyticsService
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Context) SecureCookies() bool {
	return c.Environment == "production"
}

// PendingWriteGrace is how old an uncommitted chunk write must be before the
// maintenance sweep removes it.
const PendingWriteGrace = time.Hour
