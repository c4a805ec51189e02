package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/agent"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/appcontext"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/chunkstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/docstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/services"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/validator"
)

func InitContext() (*appcontext.Context, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Warn("No .env file found, using environment variables")
	}

	settings, err := LoadSettings()
	if err != nil {
		return nil, err
	}

	logger, err := InitLogger(settings)
	if err != nil {
		return nil, err
	}

	db, err := InitDB(settings)
	if err != nil {
		return nil, err
	}

	ctx := &appcontext.Context{
		DB:     db,
		Logger: logger,

		Port:               settings.Port,
		Environment:        settings.Environment,
		SecretKey:          settings.SecretKey,
		AllowedOrigins:     settings.AllowedOrigins,
		TrustedProxies:     settings.TrustedProxies,
		FrontendURL:        settings.FrontendURL,
		MaxContentLength:   settings.MaxContentLength,
		RateLimitPerMinute: settings.RateLimitPerMinute,
		UploadLimitPerHour: settings.UploadLimitPerHour,

		GCPProjectID:  settings.GCPProjectID,
		GCSBucketName: settings.GCSBucketName,
	}

	var artifacts services.ArtifactStore = services.NewMemoryArtifactStore()
	if settings.GCSBucketName != "" {
		gcsClient, err := InitGCSClient()
		if err != nil {
			return nil, err
		}
		ctx.GCSClient = gcsClient
		artifacts = services.NewGCSArtifactStore(gcsClient, settings.GCSBucketName)
	} else {
		logger.Warn("GCS_BUCKET_NAME not set, charts are kept in memory and history only")
	}

	var searchBackend services.SearchBackend
	if settings.MeilisearchHost != "" {
		meilisearchClient, err := InitMeilisearch(settings)
		if err != nil {
			return nil, err
		}
		ctx.MeilisearchClient = meilisearchClient
		searchBackend = meilisearchClient.Index(services.SearchIndexUID)
	} else {
		logger.Warn("MEILISEARCH_HOST not set, dataset search is disabled")
	}

	if settings.GoogleClientID != "" {
		ctx.OAuth2Config = &oauth2.Config{
			ClientID:     settings.GoogleClientID,
			ClientSecret: settings.GoogleClientSecret,
			RedirectURL:  settings.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		}
	}

	var mailer services.Mailer
	if settings.SendGridAPIKey != "" {
		mailer = services.NewSendGridMailer(settings.SendGridAPIKey, settings.MailFrom, settings.FrontendURL)
	}

	chatAgent, err := InitAgent(settings, logger)
	if err != nil {
		return nil, err
	}

	ctx.Chunks = chunkstore.New(docstore.NewChunkRepository(db), logger,
		chunkstore.WithTargetBytes(settings.ChunkTargetBytes),
		chunkstore.WithMaxDocumentBytes(settings.MaxDocumentBytes),
	)
	fileValidator := validator.New(validator.Limits{
		MaxBytes:   settings.MaxContentLength,
		MaxRows:    settings.MaxRows,
		MaxColumns: settings.MaxColumns,
	}, logger)
	ctx.Search = services.NewSearchService(searchBackend, logger)

	datasetRepo := docstore.NewDatasetRepository(db)
	historyRepo := docstore.NewQueryHistoryRepository(db)

	ctx.Users = services.NewUserService(services.UserServiceConfig{
		Users:                docstore.NewUserRepository(db),
		Sessions:             docstore.NewSessionRepository(db),
		Datasets:             datasetRepo,
		History:              historyRepo,
		Mailer:               mailer,
		Logger:               logger,
		AdminRegistrationKey: settings.AdminRegistrationKey,
		SessionTTL:           settings.SessionTTL,
	})
	ctx.Datasets = services.NewDatasetService(services.DatasetServiceConfig{
		Datasets:  datasetRepo,
		Chunks:    ctx.Chunks,
		Validator: fileValidator,
		Search:    ctx.Search,
		Logger:    logger,
	})
	ctx.Shared = services.NewSharedDatasetService(services.SharedDatasetServiceConfig{
		Shared:    docstore.NewSharedDatasetRepository(db),
		Chunks:    ctx.Chunks,
		Validator: fileValidator,
		Search:    ctx.Search,
		Logger:    logger,
	})
	ctx.Queries = services.NewQueryService(services.QueryServiceConfig{
		History:        historyRepo,
		Datasets:       ctx.Datasets,
		Shared:         ctx.Shared,
		Agent:          chatAgent,
		Artifacts:      artifacts,
		Logger:         logger,
		Scope:          services.QueryScope(settings.QueryScope),
		MaxQueryLength: settings.MaxQueryLength,
		Timeout:        settings.QueryTimeout,
		ChartDir:       settings.ChartDir,
	})
	ctx.Analytics = services.NewAnalyticsService(docstore.NewAnalyticsRepository(db))

	logger.Info("Application context initialized",
		zap.String("environment", settings.Environment),
		zap.String("agent_mode", settings.AgentMode),
		zap.String("query_scope", settings.QueryScope),
		zap.Bool("search", ctx.Search.Enabled()),
		zap.Bool("google_login", ctx.OAuth2Config != nil),
	)

	return ctx, nil
}

func InitDB(settings *Settings) (*gorm.DB, error) {
	dsn, err := settings.DSN()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	err = db.AutoMigrate(&entity.User{}, &entity.Session{}, &entity.Dataset{}, &entity.SharedDataset{}, &entity.DatasetData{}, &entity.QueryHistory{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func InitLogger(settings *Settings) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if settings.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func InitGCSClient() (*storage.Client, error) {
	ctx := context.Background()
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCS client: %w", err)
	}
	return client, nil
}

func InitAgent(settings *Settings, logger *zap.Logger) (agent.Agent, error) {
	switch settings.AgentMode {
	case AgentModeRemote:
		if settings.AgentURL == "" {
			return nil, fmt.Errorf("AGENT_URL environment variable is not set")
		}
		return agent.NewRemoteAgent(settings.AgentURL, settings.QueryTimeout, logger), nil
	default:
		if settings.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return agent.NewOpenAIAgent(settings.OpenAIAPIKey, settings.OpenAIModel, logger), nil
	}
}

func InitMeilisearch(settings *Settings) (*meilisearch.Client, error) {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   settings.MeilisearchHost,
		APIKey: settings.MeilisearchAPIKey,
	})

	_, err := client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        services.SearchIndexUID,
		PrimaryKey: "id",
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	task, err := client.Index(services.SearchIndexUID).UpdateFilterableAttributes(&[]string{
		"owner_scope",
		"type",
		"dataset_id",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update filterable attributes: %w", err)
	}
	if _, err = client.WaitForTask(task.TaskUID); err != nil {
		return nil, fmt.Errorf("failed to wait for filterable attributes update: %w", err)
	}

	task, err = client.Index(services.SearchIndexUID).UpdateSearchableAttributes(&[]string{
		"name",
		"original_filename",
		"column_type",
		"dataset_name",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update searchable attributes: %w", err)
	}
	if _, err = client.WaitForTask(task.TaskUID); err != nil {
		return nil, fmt.Errorf("failed to wait for searchable attributes update: %w", err)
	}

	return client, nil
}
