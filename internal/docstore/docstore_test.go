package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/chunkstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	return db, mock
}

var manifestColumns = []string{
	"id", "dataset_id", "owner_scope", "kind", "status", "chunk_index", "row_count",
	"total_chunks", "total_rows", "chunk_size", "columns", "data", "created_at",
}

func TestChunkRepository_GetManifest(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "dataset_data" WHERE \(?id = \$1 AND owner_scope = \$2 AND kind = \$3\)?`).
		WithArgs("ds1", "user-1", entity.DatasetDataMeta, 1).
		WillReturnRows(sqlmock.NewRows(manifestColumns).
			AddRow("ds1", "ds1", "user-1", "meta", "committed", 0, 0, 3, 25000, 10000, []byte(`["a","b"]`), []byte("null"), created))

	m, err := repo.GetManifest(context.Background(), "ds1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, chunkstore.Manifest{
		DatasetID:   "ds1",
		OwnerScope:  "user-1",
		TotalChunks: 3,
		TotalRows:   25000,
		ChunkSize:   10000,
		Columns:     []string{"a", "b"},
		Status:      chunkstore.StatusCommitted,
		CreatedAt:   created,
	}, *m)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkRepository_GetManifest_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "dataset_data"`).
		WillReturnRows(sqlmock.NewRows(manifestColumns))

	_, err := repo.GetManifest(context.Background(), "missing", "user-1")
	assert.ErrorIs(t, err, chunkstore.ErrNotFound)
}

func TestChunkRepository_GetChunk(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "dataset_data" WHERE \(?id = \$1 AND owner_scope = \$2\)?`).
		WithArgs("ds1_chunk_2", "shared", 1).
		WillReturnRows(sqlmock.NewRows(manifestColumns).
			AddRow("ds1_chunk_2", "ds1", "shared", "chunk", "", 2, 1, 0, 0, 0, []byte("null"), []byte(`[{"a":1}]`), time.Now()))

	c, err := repo.GetChunk(context.Background(), "ds1", "shared", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Index)
	assert.Equal(t, 1, c.RowCount)
	assert.JSONEq(t, `[{"a":1}]`, string(c.Data))
}

func TestChunkRepository_PutChunk(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)

	mock.ExpectExec(`INSERT INTO "dataset_data"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.PutChunk(context.Background(), &chunkstore.Chunk{
		DatasetID: "ds1", OwnerScope: "u", Index: 0, RowCount: 1, Data: []byte(`[{"a":1}]`),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkRepository_PutManifestUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)

	mock.ExpectExec(`INSERT INTO "dataset_data" .* ON CONFLICT \("id"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.PutManifest(context.Background(), &chunkstore.Manifest{
		DatasetID: "ds1", OwnerScope: "u", Status: chunkstore.StatusPending, Columns: []string{"a"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkRepository_MarkCommitted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)

	mock.ExpectExec(`UPDATE "dataset_data" SET "status"=\$1`).
		WithArgs("committed", "ds1", "u", "meta").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkCommitted(context.Background(), "ds1", "u"))

	mock.ExpectExec(`UPDATE "dataset_data" SET "status"=\$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.MarkCommitted(context.Background(), "gone", "u"), ErrNotFound)
}

func TestChunkRepository_DeleteChunks(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)

	mock.ExpectExec(`DELETE FROM "dataset_data" WHERE \(?dataset_id = \$1 AND owner_scope = \$2 AND kind = \$3\)?`).
		WithArgs("ds1", "u", "chunk").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteChunks(context.Background(), "ds1", "u")
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestChunkRepository_ListPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)
	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "dataset_data" WHERE \(?kind = \$1 AND status = \$2 AND created_at < \$3\)? ORDER BY created_at`).
		WithArgs("meta", "pending", cutoff).
		WillReturnRows(sqlmock.NewRows(manifestColumns).
			AddRow("old", "old", "u", "meta", "pending", 0, 0, 2, 150, 100, []byte(`["x"]`), []byte("null"), cutoff.Add(-time.Hour)))

	out, err := repo.ListPending(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "old", out[0].DatasetID)
	assert.Equal(t, chunkstore.StatusPending, out[0].Status)
}

func TestUserRepository_FindUserByEmailLowercases(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WithArgs("alice@example.com", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "role"}).
			AddRow(id.String(), "alice@example.com", "Alice", "user"))

	u, err := repo.FindUserByEmail(context.Background(), "  Alice@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.False(t, u.IsAdmin())
}

func TestUserRepository_CreateUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`INSERT INTO "users"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &entity.User{Email: "Bob@Example.com", Name: "Bob", PasswordHash: "hash"}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, "bob@example.com", u.Email)
	assert.Equal(t, entity.RoleUser, u.Role)
}

func TestDatasetRepository_RenameNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDatasetRepository(db)

	mock.ExpectExec(`UPDATE "datasets" SET "name"=\$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RenameDataset(context.Background(), uuid.New(), uuid.New(), "new")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDatasetRepository_CountDatasets(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDatasetRepository(db)
	owner := uuid.New()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "datasets" WHERE owner_id = \$1`).
		WithArgs(owner).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountDatasets(context.Background(), owner)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestSharedDatasetRepository_Deactivate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSharedDatasetRepository(db)
	id := uuid.New()

	mock.ExpectExec(`UPDATE "shared_datasets" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeactivateShared(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryHistoryRepository_ListHistory(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewQueryHistoryRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM "query_history" WHERE user_id = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs(userID, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "query", "success"}).
			AddRow(uuid.NewString(), userID.String(), "top sellers?", true).
			AddRow(uuid.NewString(), userID.String(), "average price?", false))

	out, err := repo.ListHistory(context.Background(), userID, 50)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "top sellers?", out[0].Query)
}

func TestQueryHistoryRepository_FindHistoryWithChart(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewQueryHistoryRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "query_history" WHERE \(?user_id = \$1 AND full_result @> \$2::jsonb\)?`).
		WithArgs(userID, `{"visualizations":[{"id":"chart-1"}]}`, 1).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.FindHistoryWithChart(context.Background(), userID, "chart-1")
	assert.EqualError(t, err, "connection reset")
}

func TestAnalyticsRepository_Dashboard(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalyticsRepository(db)
	monthStart := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for _, n := range []int64{10, 8, 20, 15, 3, 100, 70, 4} {
		mock.ExpectQuery(`SELECT count\(\*\) FROM`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(n))
	}
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(rows\), 0\) FROM "datasets"`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(12345)))
	mock.ExpectQuery(`SELECT name, rows FROM "datasets" ORDER BY rows DESC LIMIT \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "rows"}).AddRow("sales", int64(10000)))

	d, err := repo.Dashboard(context.Background(), monthStart)
	require.NoError(t, err)
	assert.EqualValues(t, 10, d.TotalUsers)
	assert.EqualValues(t, 8, d.PastMonthUsers)
	assert.EqualValues(t, 3, d.TotalSharedDatasets)
	assert.EqualValues(t, 4, d.FailedQueries)
	assert.EqualValues(t, 12345, d.TotalRows)
	assert.Equal(t, []DatasetRowCount{{Name: "sales", Rows: 10000}}, d.TopDatasets)
	assert.NoError(t, mock.ExpectationsWereMet())
}
