package services

import (
	"context"
	"time"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/docstore"
)

// AnalyticsService backs the admin dashboard.
type AnalyticsService struct {
	store AnalyticsStore
	now   func() time.Time
}

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: store, now: time.Now}
}

// Dashboard reports totals now and as of the start of the current month.
func (s *AnalyticsService) Dashboard(ctx context.Context) (*docstore.Dashboard, error) {
	now := s.now()
	currentMonthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	d, err := s.store.Dashboard(ctx, currentMonthStart)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to load analytics", err)
	}
	if d.TopDatasets == nil {
		d.TopDatasets = []docstore.DatasetRowCount{}
	}
	return d, nil
}
