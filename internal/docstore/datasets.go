package docstore

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
)

type DatasetRepository struct {
	db *gorm.DB
}

func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

func (r *DatasetRepository) CreateDataset(ctx context.Context, d *entity.Dataset) error {
	return r.db.WithContext(ctx).Create(d).Error
}

// ListDatasets returns the owner's datasets, newest first.
func (r *DatasetRepository) ListDatasets(ctx context.Context, ownerID uuid.UUID) ([]entity.Dataset, error) {
	var out []entity.Dataset
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *DatasetRepository) CountDatasets(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.Dataset{}).Where("owner_id = ?", ownerID).Count(&n).Error
	return n, err
}

func (r *DatasetRepository) GetDataset(ctx context.Context, ownerID, id uuid.UUID) (*entity.Dataset, error) {
	var d entity.Dataset
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&d).Error
	if err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *DatasetRepository) RenameDataset(ctx context.Context, ownerID, id uuid.UUID, name string) error {
	res := r.db.WithContext(ctx).Model(&entity.Dataset{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DatasetRepository) DeleteDataset(ctx context.Context, ownerID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&entity.Dataset{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type SharedDatasetRepository struct {
	db *gorm.DB
}

func NewSharedDatasetRepository(db *gorm.DB) *SharedDatasetRepository {
	return &SharedDatasetRepository{db: db}
}

func (r *SharedDatasetRepository) CreateShared(ctx context.Context, d *entity.SharedDataset) error {
	return r.db.WithContext(ctx).Create(d).Error
}

// ListActiveShared returns active shared datasets, newest first.
func (r *SharedDatasetRepository) ListActiveShared(ctx context.Context) ([]entity.SharedDataset, error) {
	var out []entity.SharedDataset
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *SharedDatasetRepository) GetActiveShared(ctx context.Context, id uuid.UUID) (*entity.SharedDataset, error) {
	var d entity.SharedDataset
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&d).Error
	if err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *SharedDatasetRepository) RenameShared(ctx context.Context, id uuid.UUID, name string) error {
	res := r.db.WithContext(ctx).Model(&entity.SharedDataset{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateShared soft-deletes the metadata row.
func (r *SharedDatasetRepository) DeactivateShared(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&entity.SharedDataset{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"is_active": false, "has_full_data": false})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
