// Package services holds the application operations behind the HTTP routes.
// Each service depends on the narrow store interfaces below, which the
// docstore repositories implement.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/docstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *entity.User) error
	FindUserByEmail(ctx context.Context, email string) (*entity.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *entity.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type DatasetStore interface {
	CreateDataset(ctx context.Context, d *entity.Dataset) error
	ListDatasets(ctx context.Context, ownerID uuid.UUID) ([]entity.Dataset, error)
	CountDatasets(ctx context.Context, ownerID uuid.UUID) (int64, error)
	GetDataset(ctx context.Context, ownerID, id uuid.UUID) (*entity.Dataset, error)
	RenameDataset(ctx context.Context, ownerID, id uuid.UUID, name string) error
	DeleteDataset(ctx context.Context, ownerID, id uuid.UUID) error
}

type SharedDatasetStore interface {
	CreateShared(ctx context.Context, d *entity.SharedDataset) error
	ListActiveShared(ctx context.Context) ([]entity.SharedDataset, error)
	GetActiveShared(ctx context.Context, id uuid.UUID) (*entity.SharedDataset, error)
	RenameShared(ctx context.Context, id uuid.UUID, name string) error
	DeactivateShared(ctx context.Context, id uuid.UUID) error
}

type HistoryStore interface {
	CreateHistory(ctx context.Context, h *entity.QueryHistory) error
	ListHistory(ctx context.Context, userID uuid.UUID, limit int) ([]entity.QueryHistory, error)
	CountHistory(ctx context.Context, userID uuid.UUID) (int64, error)
	GetHistory(ctx context.Context, userID, id uuid.UUID) (*entity.QueryHistory, error)
	ClearHistory(ctx context.Context, userID uuid.UUID) (int64, error)
	FindHistoryWithChart(ctx context.Context, userID uuid.UUID, chartID string) (*entity.QueryHistory, error)
}

type AnalyticsStore interface {
	Dashboard(ctx context.Context, currentMonthStart time.Time) (*docstore.Dashboard, error)
}

var (
	_ UserStore          = (*docstore.UserRepository)(nil)
	_ SessionStore       = (*docstore.SessionRepository)(nil)
	_ DatasetStore       = (*docstore.DatasetRepository)(nil)
	_ SharedDatasetStore = (*docstore.SharedDatasetRepository)(nil)
	_ HistoryStore       = (*docstore.QueryHistoryRepository)(nil)
	_ AnalyticsStore     = (*docstore.AnalyticsRepository)(nil)
)
