package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/utils"
)

// SearchIndexUID is the Meilisearch index holding dataset and column documents.
const SearchIndexUID = "datasets"

const defaultSearchLimit = 20

// SearchBackend is the subset of a Meilisearch index the service uses.
type SearchBackend interface {
	AddDocuments(documentsPtr interface{}, primaryKey ...string) (*meilisearch.TaskInfo, error)
	DeleteDocuments(identifiers []string) (*meilisearch.TaskInfo, error)
	Search(query string, request *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error)
}

// SearchService indexes dataset metadata and searches it within the scopes a
// user may read. A nil backend disables indexing and makes Search fail.
type SearchService struct {
	backend SearchBackend
	logger  *zap.Logger
}

func NewSearchService(backend SearchBackend, logger *zap.Logger) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{backend: backend, logger: logger}
}

func (s *SearchService) Enabled() bool {
	return s != nil && s.backend != nil
}

// IndexDataset upserts the dataset document and one document per column.
// Failures are logged; search is never allowed to fail an upload.
func (s *SearchService) IndexDataset(id uuid.UUID, scope string, p *entity.DatasetProfile) {
	if !s.Enabled() {
		return
	}
	docs := append([]map[string]interface{}{utils.DatasetToDocument(id, scope, p)}, utils.ColumnToDocuments(id, scope, p)...)
	if _, err := s.backend.AddDocuments(docs, "id"); err != nil {
		s.logger.Warn("Failed to index dataset", zap.String("dataset_id", id.String()), zap.Error(err))
	}
}

func (s *SearchService) RemoveDataset(id uuid.UUID, columns int) {
	if !s.Enabled() {
		return
	}
	if _, err := s.backend.DeleteDocuments(utils.DatasetDocumentIDs(id, columns)); err != nil {
		s.logger.Warn("Failed to remove dataset from index", zap.String("dataset_id", id.String()), zap.Error(err))
	}
}

// Search runs query over the user's own and the shared datasets. A "ds:" or
// "col:" prefix restricts results to dataset or column documents.
func (s *SearchService) Search(user *entity.User, query string) ([]interface{}, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.Validation("Missing search query")
	}
	if !s.Enabled() {
		return nil, apperrors.New(apperrors.KindNotImplemented, "Search is not configured")
	}

	var typeFilter string
	var actualQuery string

	switch {
	case strings.HasPrefix(query, "ds:"):
		typeFilter = "type = dataset"
		actualQuery = strings.TrimPrefix(query, "ds:")
	case strings.HasPrefix(query, "col:"):
		typeFilter = "type = column"
		actualQuery = strings.TrimPrefix(query, "col:")
	default:
		typeFilter = "type IN [dataset, column]"
		actualQuery = query
	}
	actualQuery = strings.TrimSpace(actualQuery)

	filter := fmt.Sprintf("%s AND %s", scopeFilter(utils.ReadableScopes(user.ID)), typeFilter)

	result, err := s.backend.Search(actualQuery, &meilisearch.SearchRequest{
		Query:  actualQuery,
		Filter: filter,
		Limit:  defaultSearchLimit,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to perform search", err)
	}
	return result.Hits, nil
}

func scopeFilter(scopes []string) string {
	quoted := make([]string, len(scopes))
	for i, sc := range scopes {
		quoted[i] = fmt.Sprintf("%q", sc)
	}
	return "owner_scope IN [" + strings.Join(quoted, ", ") + "]"
}
