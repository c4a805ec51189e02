package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/agent"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/chunkstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/docstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/utils"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/validator"
)

type SharedDatasetServiceConfig struct {
	Shared    SharedDatasetStore
	Chunks    *chunkstore.Store
	Validator *validator.Validator
	Search    *SearchService
	Logger    *zap.Logger
}

// SharedDatasetService manages the admin-curated pool every user can query.
type SharedDatasetService struct {
	datasetCore
	shared SharedDatasetStore
}

func NewSharedDatasetService(cfg SharedDatasetServiceConfig) *SharedDatasetService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SharedDatasetService{
		datasetCore: datasetCore{chunks: cfg.Chunks, validator: cfg.Validator, search: cfg.Search, logger: logger},
		shared:      cfg.Shared,
	}
}

func requireAdmin(user *entity.User) error {
	if !utils.UserCanManageShared(user) {
		return apperrors.Forbidden("Admin access required")
	}
	return nil
}

// Upload adds a shared dataset. The admin check runs before anything is
// written.
func (s *SharedDatasetService) Upload(ctx context.Context, admin *entity.User, file UploadedFile) (*entity.SharedDataset, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	id := uuid.New()
	profile, err := s.ingest(ctx, id, chunkstore.SharedScope, file)
	if err != nil {
		return nil, err
	}

	d := &entity.SharedDataset{ID: id, UploadedBy: admin.ID, DatasetProfile: *profile, IsActive: true}
	if err := s.shared.CreateShared(ctx, d); err != nil {
		s.discard(ctx, id, chunkstore.SharedScope)
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to save dataset metadata", err)
	}
	s.search.IndexDataset(id, chunkstore.SharedScope, &d.DatasetProfile)
	s.logger.Info("Admin uploaded shared dataset", zap.String("dataset_id", id.String()), zap.String("admin", admin.Email))
	return d, nil
}

func (s *SharedDatasetService) List(ctx context.Context) ([]entity.SharedDataset, error) {
	out, err := s.shared.ListActiveShared(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to list shared datasets", err)
	}
	return out, nil
}

func (s *SharedDatasetService) get(ctx context.Context, id uuid.UUID) (*entity.SharedDataset, error) {
	d, err := s.shared.GetActiveShared(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NotFound("Dataset not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to read dataset", err)
	}
	return d, nil
}

func (s *SharedDatasetService) Preview(ctx context.Context, id uuid.UUID) (*DatasetPreview, error) {
	d, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return preview(&d.DatasetProfile), nil
}

func (s *SharedDatasetService) Stats(ctx context.Context, id uuid.UUID) (*DatasetStats, error) {
	d, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.stats(ctx, id, chunkstore.SharedScope, &d.DatasetProfile)
}

func (s *SharedDatasetService) Rename(ctx context.Context, admin *entity.User, id uuid.UUID, name string) (*entity.SharedDataset, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	name, err := validateDatasetName(name)
	if err != nil {
		return nil, err
	}
	if err := s.shared.RenameShared(ctx, id, name); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NotFound("Dataset not found")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to rename dataset", err)
	}
	d, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.search.IndexDataset(id, chunkstore.SharedScope, &d.DatasetProfile)
	return d, nil
}

// Delete deactivates the metadata and removes the chunk data for good.
func (s *SharedDatasetService) Delete(ctx context.Context, admin *entity.User, id uuid.UUID) error {
	if err := requireAdmin(admin); err != nil {
		return err
	}
	d, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.shared.DeactivateShared(ctx, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperrors.NotFound("Dataset not found")
		}
		return apperrors.Wrap(apperrors.KindInternal, "Failed to delete dataset", err)
	}
	s.discard(ctx, id, chunkstore.SharedScope)
	s.search.RemoveDataset(id, d.ColumnCount)
	s.logger.Info("Admin deleted shared dataset", zap.String("dataset_id", id.String()), zap.String("admin", admin.Email))
	return nil
}

// LoadAll loads every active shared dataset. Datasets that fail to load are
// skipped.
func (s *SharedDatasetService) LoadAll(ctx context.Context) ([]agent.NamedFrame, error) {
	datasets, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	frames := make([]agent.NamedFrame, 0, len(datasets))
	for i := range datasets {
		d := &datasets[i]
		f, err := s.load(ctx, d.ID, chunkstore.SharedScope, &d.DatasetProfile)
		if err != nil {
			s.logger.Error("Failed to load shared dataset", zap.String("dataset_id", d.ID.String()), zap.Error(err))
			continue
		}
		frames = append(frames, agent.NamedFrame{Name: d.Name, Frame: f})
	}
	return frames, nil
}
