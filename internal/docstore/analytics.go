package docstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
)

// Dashboard holds totals plus the same totals as of the start of the current
// month, so callers can show month-over-month growth.
type Dashboard struct {
	TotalUsers          int64 `json:"total_users"`
	PastMonthUsers      int64 `json:"past_month_users"`
	TotalDatasets       int64 `json:"total_datasets"`
	PastMonthDatasets   int64 `json:"past_month_datasets"`
	TotalSharedDatasets int64 `json:"total_shared_datasets"`
	TotalQueries        int64 `json:"total_queries"`
	PastMonthQueries    int64 `json:"past_month_queries"`
	FailedQueries       int64 `json:"failed_queries"`
	TotalRows           int64 `json:"total_rows"`

	TopDatasets []DatasetRowCount `json:"top_datasets"`
}

type DatasetRowCount struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

type AnalyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func (r *AnalyticsRepository) Dashboard(ctx context.Context, currentMonthStart time.Time) (*Dashboard, error) {
	db := r.db.WithContext(ctx)
	var d Dashboard

	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&d.TotalUsers, db.Model(&entity.User{})},
		{&d.PastMonthUsers, db.Model(&entity.User{}).Where("created_at < ?", currentMonthStart)},
		{&d.TotalDatasets, db.Model(&entity.Dataset{})},
		{&d.PastMonthDatasets, db.Model(&entity.Dataset{}).Where("created_at < ?", currentMonthStart)},
		{&d.TotalSharedDatasets, db.Model(&entity.SharedDataset{}).Where("is_active = ?", true)},
		{&d.TotalQueries, db.Model(&entity.QueryHistory{})},
		{&d.PastMonthQueries, db.Model(&entity.QueryHistory{}).Where("created_at < ?", currentMonthStart)},
		{&d.FailedQueries, db.Model(&entity.QueryHistory{}).Where("success = ?", false)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	if err := db.Model(&entity.Dataset{}).Select("COALESCE(SUM(rows), 0)").Scan(&d.TotalRows).Error; err != nil {
		return nil, err
	}

	err := db.Model(&entity.Dataset{}).
		Select("name, rows").
		Order("rows DESC").
		Limit(5).
		Scan(&d.TopDatasets).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}
