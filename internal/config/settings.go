package config

import (
	"crypto/rand"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings is the process configuration read from the environment.
type Settings struct {
	Port        string
	Environment string

	DatabaseURL  string
	DatabaseName string

	SecretKey            []byte
	AdminRegistrationKey string
	AllowedOrigins       []string
	TrustedProxies       []string
	FrontendURL          string
	SessionTTL           time.Duration

	OpenAIAPIKey string
	OpenAIModel  string
	AgentMode    string
	AgentURL     string
	QueryScope   string
	ChartDir     string

	MaxContentLength int64
	MaxRows          int
	MaxColumns       int
	MaxQueryLength   int
	QueryTimeout     time.Duration
	ChunkTargetBytes int64
	MaxDocumentBytes int

	RateLimitPerMinute int
	UploadLimitPerHour int

	GCSBucketName string
	GCPProjectID  string

	MeilisearchHost   string
	MeilisearchAPIKey string

	SendGridAPIKey string
	MailFrom       string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

const (
	AgentModeOpenAI = "openai"
	AgentModeRemote = "remote"
)

func (s *Settings) IsProduction() bool {
	return s.Environment == "production"
}

func (s *Settings) IsDevelopment() bool {
	return s.Environment == "development"
}

// LoadSettings reads the environment. Unset variables take their defaults;
// malformed numbers are an error.
func LoadSettings() (*Settings, error) {
	s := &Settings{
		Port:                 getEnv("PORT", "8080"),
		Environment:          getEnv("ENVIRONMENT", "development"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		DatabaseName:         os.Getenv("DATABASE_NAME"),
		AdminRegistrationKey: os.Getenv("ADMIN_REGISTRATION_KEY"),
		AllowedOrigins:       splitList(os.Getenv("ALLOWED_ORIGINS")),
		TrustedProxies:       splitList(os.Getenv("TRUSTED_PROXIES")),
		FrontendURL:          strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AgentMode:            strings.ToLower(getEnv("AGENT_MODE", AgentModeOpenAI)),
		AgentURL:             os.Getenv("AGENT_URL"),
		QueryScope:           strings.ToLower(getEnv("QUERY_SCOPE", "user")),
		ChartDir:             getEnv("CHART_DIR", os.TempDir()),
		GCSBucketName:        os.Getenv("GCS_BUCKET_NAME"),
		GCPProjectID:         os.Getenv("GCP_PROJECT_ID"),
		MeilisearchHost:      os.Getenv("MEILISEARCH_HOST"),
		MeilisearchAPIKey:    os.Getenv("MEILISEARCH_API_KEY"),
		SendGridAPIKey:       os.Getenv("SENDGRID_API_KEY"),
		MailFrom:             getEnv("MAIL_FROM", "noreply@armmi.local"),
		GoogleClientID:       os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:    os.Getenv("GOOGLE_REDIRECT_URL"),
	}

	var err error
	if s.MaxContentLength, err = getInt64("MAX_CONTENT_LENGTH", 100*1024*1024); err != nil {
		return nil, err
	}
	if s.MaxRows, err = getInt("MAX_ROWS", 1_000_000); err != nil {
		return nil, err
	}
	if s.MaxColumns, err = getInt("MAX_COLUMNS", 1000); err != nil {
		return nil, err
	}
	if s.MaxQueryLength, err = getInt("MAX_QUERY_LENGTH", 10000); err != nil {
		return nil, err
	}
	timeoutSeconds, err := getInt("QUERY_TIMEOUT", 300)
	if err != nil {
		return nil, err
	}
	s.QueryTimeout = time.Duration(timeoutSeconds) * time.Second
	if s.ChunkTargetBytes, err = getInt64("CHUNK_TARGET_BYTES", 10*1024*1024); err != nil {
		return nil, err
	}
	if s.MaxDocumentBytes, err = getInt("MAX_DOCUMENT_BYTES", 16*1024*1024); err != nil {
		return nil, err
	}
	if s.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return nil, err
	}
	if s.UploadLimitPerHour, err = getInt("UPLOAD_LIMIT_PER_HOUR", 10); err != nil {
		return nil, err
	}
	if s.SessionTTL, err = time.ParseDuration(getEnv("SESSION_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}

	for _, proxy := range s.TrustedProxies {
		if !validProxy(proxy) {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: expected an IP or CIDR", proxy)
		}
	}

	switch s.AgentMode {
	case AgentModeOpenAI, AgentModeRemote:
	default:
		return nil, fmt.Errorf("invalid AGENT_MODE %q: expected openai or remote", s.AgentMode)
	}
	switch s.QueryScope {
	case "user", "shared":
	default:
		return nil, fmt.Errorf("invalid QUERY_SCOPE %q: expected user or shared", s.QueryScope)
	}

	if secret := os.Getenv("SECRET_KEY"); secret != "" {
		s.SecretKey = []byte(secret)
	} else if s.IsProduction() {
		return nil, fmt.Errorf("SECRET_KEY environment variable is not set")
	} else {
		s.SecretKey = make([]byte, 32)
		if _, err := rand.Read(s.SecretKey); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
	}

	return s, nil
}

// DSN returns the database URL with DATABASE_NAME applied, if set.
func (s *Settings) DSN() (string, error) {
	if s.DatabaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if s.DatabaseName == "" {
		return s.DatabaseURL, nil
	}
	if strings.Contains(s.DatabaseURL, "://") {
		u, err := url.Parse(s.DatabaseURL)
		if err != nil {
			return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		u.Path = "/" + s.DatabaseName
		return u.String(), nil
	}

	// key=value form
	fields := strings.Fields(s.DatabaseURL)
	kept := fields[:0]
	for _, f := range fields {
		if !strings.HasPrefix(f, "dbname=") {
			kept = append(kept, f)
		}
	}
	return strings.Join(append(kept, "dbname="+s.DatabaseName), " "), nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: expected a positive integer", key, v)
	}
	return n, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: expected a positive integer", key, v)
	}
	return n, nil
}

func validProxy(v string) bool {
	if strings.Contains(v, "/") {
		_, _, err := net.ParseCIDR(v)
		return err == nil
	}
	return net.ParseIP(v) != nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
