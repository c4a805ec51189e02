package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/docstore"
)

type fakeAnalytics struct {
	since time.Time
	out   *docstore.Dashboard
	err   error
}

func (f *fakeAnalytics) Dashboard(_ context.Context, since time.Time) (*docstore.Dashboard, error) {
	f.since = since
	return f.out, f.err
}

func TestDashboard(t *testing.T) {
	store := &fakeAnalytics{out: &docstore.Dashboard{TotalUsers: 3}}
	s := NewAnalyticsService(store)
	s.now = func() time.Time { return time.Date(2024, time.March, 17, 15, 4, 5, 0, time.UTC) }

	d, err := s.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), store.since)
	assert.EqualValues(t, 3, d.TotalUsers)
	assert.NotNil(t, d.TopDatasets)

	store.err = errBoom
	_, err = s.Dashboard(context.Background())
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}
