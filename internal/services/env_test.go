package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/agent"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/chunkstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/memstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/validator"
)

var errBoom = errors.New("boom")

// env wires every service over in-memory stores.
type env struct {
	users    *memstore.Users
	sessions *memstore.Sessions
	datasets *memstore.Datasets
	shared   *memstore.SharedDatasets
	history  *memstore.History
	repo     *chunkstore.MemoryRepository
	search   *memstore.SearchIndex
	agent    *memstore.Agent

	userSvc    *UserService
	datasetSvc *DatasetService
	sharedSvc  *SharedDatasetService
	querySvc   *QueryService
	artifacts  *MemoryArtifactStore
	chartDir   string
}

func newEnv(t *testing.T, scope QueryScope) *env {
	t.Helper()
	e := &env{
		users:     memstore.NewUsers(),
		sessions:  memstore.NewSessions(),
		datasets:  &memstore.Datasets{},
		shared:    &memstore.SharedDatasets{},
		history:   &memstore.History{},
		repo:      chunkstore.NewMemoryRepository(),
		search:    memstore.NewSearchIndex(),
		agent:     &memstore.Agent{Reply: agent.TextReply{Text: "42"}},
		artifacts: NewMemoryArtifactStore(),
		chartDir:  t.TempDir(),
	}
	chunks := chunkstore.New(e.repo, nil, chunkstore.WithTargetBytes(4096))
	v := validator.New(validator.DefaultLimits(), nil)
	search := NewSearchService(e.search, nil)

	e.userSvc = NewUserService(UserServiceConfig{
		Users:                e.users,
		Sessions:             e.sessions,
		Datasets:             e.datasets,
		History:              e.history,
		AdminRegistrationKey: "let-me-in",
		SessionTTL:           time.Hour,
	})
	e.datasetSvc = NewDatasetService(DatasetServiceConfig{Datasets: e.datasets, Chunks: chunks, Validator: v, Search: search})
	e.sharedSvc = NewSharedDatasetService(SharedDatasetServiceConfig{Shared: e.shared, Chunks: chunks, Validator: v, Search: search})
	e.querySvc = NewQueryService(QueryServiceConfig{
		History:   e.history,
		Datasets:  e.datasetSvc,
		Shared:    e.sharedSvc,
		Agent:     e.agent,
		Artifacts: e.artifacts,
		Scope:     scope,
		Timeout:   time.Second,
		ChartDir:  e.chartDir,
	})
	return e
}

func (e *env) user(t *testing.T, role string) *entity.User {
	t.Helper()
	u := &entity.User{Email: uuid.NewString() + "@example.com", Name: "Test", Role: role}
	require.NoError(t, e.users.CreateUser(context.Background(), u))
	return u
}

func csvFile(name, body string) UploadedFile {
	return UploadedFile{Filename: name, Size: int64(len(body)), Data: []byte(body)}
}
