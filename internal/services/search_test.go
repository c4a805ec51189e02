package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/memstore"
)

func TestSearch_Filters(t *testing.T) {
	backend := memstore.NewSearchIndex()
	s := NewSearchService(backend, nil)
	u := &entity.User{ID: uuid.MustParse("6f1c1f38-5a4e-4b7e-9d43-1d2f0c3e8a11")}
	scopes := `owner_scope IN ["6f1c1f38-5a4e-4b7e-9d43-1d2f0c3e8a11", "shared"]`

	tests := []struct {
		query      string
		wantQuery  string
		wantFilter string
	}{
		{"sales", "sales", scopes + " AND type IN [dataset, column]"},
		{"ds: sales", "sales", scopes + " AND type = dataset"},
		{"col:region", "region", scopes + " AND type = column"},
	}
	for _, tt := range tests {
		_, err := s.Search(u, tt.query)
		require.NoError(t, err)
		assert.Equal(t, tt.wantQuery, backend.LastRequest.Query)
		assert.Equal(t, tt.wantFilter, backend.LastRequest.Filter)
		assert.EqualValues(t, defaultSearchLimit, backend.LastRequest.Limit)
	}
}

func TestSearch_Errors(t *testing.T) {
	u := &entity.User{ID: uuid.New()}

	_, err := NewSearchService(memstore.NewSearchIndex(), nil).Search(u, "  ")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = NewSearchService(nil, nil).Search(u, "sales")
	assert.Equal(t, apperrors.KindNotImplemented, apperrors.KindOf(err))

	backend := memstore.NewSearchIndex()
	backend.Err = errBoom
	_, err = NewSearchService(backend, nil).Search(u, "sales")
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
}

func TestSearch_IndexFailureDoesNotFailUpload(t *testing.T) {
	e := newEnv(t, ScopeUser)
	e.search.Err = errBoom
	u := e.user(t, entity.RoleUser)

	_, err := e.datasetSvc.Upload(context.Background(), u.ID, csvFile("a.csv", "x\n1\n"))
	assert.NoError(t, err)
}
