package docstore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
)

type QueryHistoryRepository struct {
	db *gorm.DB
}

func NewQueryHistoryRepository(db *gorm.DB) *QueryHistoryRepository {
	return &QueryHistoryRepository{db: db}
}

func (r *QueryHistoryRepository) CreateHistory(ctx context.Context, h *entity.QueryHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

// ListHistory returns the newest entries first, without full results.
func (r *QueryHistoryRepository) ListHistory(ctx context.Context, userID uuid.UUID, limit int) ([]entity.QueryHistory, error) {
	var out []entity.QueryHistory
	err := r.db.WithContext(ctx).
		Omit("full_result").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *QueryHistoryRepository) CountHistory(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.QueryHistory{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *QueryHistoryRepository) GetHistory(ctx context.Context, userID, id uuid.UUID) (*entity.QueryHistory, error) {
	var h entity.QueryHistory
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&h).Error
	if err != nil {
		return nil, translate(err)
	}
	return &h, nil
}

func (r *QueryHistoryRepository) ClearHistory(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&entity.QueryHistory{})
	return res.RowsAffected, res.Error
}

// FindHistoryWithChart finds the user's entry whose result carries the chart.
func (r *QueryHistoryRepository) FindHistoryWithChart(ctx context.Context, userID uuid.UUID, chartID string) (*entity.QueryHistory, error) {
	fragment, err := json.Marshal(map[string]any{
		"visualizations": []map[string]string{{"id": chartID}},
	})
	if err != nil {
		return nil, err
	}
	var h entity.QueryHistory
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND full_result @> ?::jsonb", userID, string(fragment)).
		Order("created_at DESC").
		First(&h).Error
	if err != nil {
		return nil, translate(err)
	}
	return &h, nil
}
