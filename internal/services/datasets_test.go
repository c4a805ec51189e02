package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/chunkstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/utils"
)

func salesCSV(rows int) string {
	var b strings.Builder
	b.WriteString("region,units,price\n")
	for i := 0; i < rows; i++ {
		region := []string{"north", "south", "east"}[i%3]
		if i%7 == 0 {
			region = ""
		}
		fmt.Fprintf(&b, "%s,%d,%.2f\n", region, i, float64(i)/4)
	}
	return b.String()
}

func TestDatasetUpload(t *testing.T) {
	e := newEnv(t, ScopeUser)
	owner := e.user(t, entity.RoleUser)

	d, err := e.datasetSvc.Upload(context.Background(), owner.ID, csvFile("Q3 sales.csv", salesCSV(500)))
	require.NoError(t, err)

	assert.Equal(t, "Q3_sales", d.Name)
	assert.Equal(t, "Q3_sales.csv", d.OriginalFilename)
	assert.Equal(t, 500, d.Rows)
	assert.Equal(t, 3, d.ColumnCount)
	assert.Equal(t, []string{"region", "units", "price"}, []string(d.Columns))
	assert.Equal(t, entity.StringMap{"region": "object", "units": "int64", "price": "float64"}, d.ColumnTypes.Data())
	assert.Equal(t, 72, d.MissingValues.Data()["region"])
	assert.True(t, d.HasFullData)
	assert.True(t, d.IsChunked)
	assert.Greater(t, d.TotalChunks, 1)

	var preview []map[string]any
	require.NoError(t, json.Unmarshal(d.Preview, &preview))
	assert.Len(t, preview, 5)
	assert.Equal(t, "", preview[0]["region"])

	// Declared counts match the reassembled data.
	f, err := e.datasetSvc.Load(context.Background(), owner.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Rows, f.Len())
	assert.Equal(t, d.ColumnCount, f.Width())
	assert.Equal(t, int64(499), f.Rows[499][1])

	assert.Contains(t, e.search.Docs, d.ID.String())
	assert.Equal(t, utils.UserScope(owner.ID), e.search.Docs[d.ID.String()]["owner_scope"])
	assert.Contains(t, e.search.Docs, utils.ColumnDocumentID(d.ID, 2))
}

func TestDatasetUpload_Rejected(t *testing.T) {
	e := newEnv(t, ScopeUser)
	owner := e.user(t, entity.RoleUser)

	tests := []struct {
		file UploadedFile
		kind apperrors.Kind
	}{
		{csvFile("empty.csv", ""), apperrors.KindValidation},
		{csvFile("notes.txt", "a,b\n1,2\n"), apperrors.KindValidation},
		{csvFile("dup.csv", "x,x\n1,2\n"), apperrors.KindUnprocessable},
	}
	for _, tt := range tests {
		_, err := e.datasetSvc.Upload(context.Background(), owner.ID, tt.file)
		assert.Equal(t, tt.kind, apperrors.KindOf(err), tt.file.Filename)
	}
	assert.Empty(t, e.datasets.Rows)
}

func TestDatasetUpload_MetadataFailureRemovesChunks(t *testing.T) {
	e := newEnv(t, ScopeUser)
	owner := e.user(t, entity.RoleUser)
	e.datasets.CreateErr = errBoom

	_, err := e.datasetSvc.Upload(context.Background(), owner.ID, csvFile("a.csv", salesCSV(300)))
	require.Error(t, err)

	manifests, chunks := e.repo.Counts()
	assert.Zero(t, manifests)
	assert.Zero(t, chunks)
	assert.Empty(t, e.search.Docs)
}

func TestDatasetListPreviewStats(t *testing.T) {
	e := newEnv(t, ScopeUser)
	owner := e.user(t, entity.RoleUser)
	other := e.user(t, entity.RoleUser)

	first, err := e.datasetSvc.Upload(context.Background(), owner.ID, csvFile("first.csv", "city,temp\noslo,3\nrome,18\nrome,20\n"))
	require.NoError(t, err)
	second, err := e.datasetSvc.Upload(context.Background(), owner.ID, csvFile("second.csv", salesCSV(10)))
	require.NoError(t, err)

	list, err := e.datasetSvc.List(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	p, err := e.datasetSvc.Preview(context.Background(), owner.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"city", "temp"}, p.Columns)
	assert.Equal(t, 3, p.TotalRows)
	assert.JSONEq(t, `[{"city":"oslo","temp":3},{"city":"rome","temp":18},{"city":"rome","temp":20}]`, string(p.Data))

	stats, err := e.datasetSvc.Stats(context.Background(), owner.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.BasicInfo.Rows)
	require.Contains(t, stats.NumericStats, "temp")
	assert.InDelta(t, 41.0/3, *stats.NumericStats["temp"].Mean, 1e-9)
	assert.Equal(t, 2, stats.CategoricalStats["city"].UniqueCount)

	_, err = e.datasetSvc.Preview(context.Background(), other.ID, first.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestDatasetLoad_FallsBackToPreview(t *testing.T) {
	e := newEnv(t, ScopeUser)
	owner := e.user(t, entity.RoleUser)
	d, err := e.datasetSvc.Upload(context.Background(), owner.ID, csvFile("a.csv", salesCSV(20)))
	require.NoError(t, err)

	_, err = e.datasetSvc.chunks.Delete(context.Background(), d.ID.String(), utils.UserScope(owner.ID))
	require.NoError(t, err)

	f, err := e.datasetSvc.Load(context.Background(), owner.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, f.Len())
	assert.Equal(t, []string{"region", "units", "price"}, f.Columns)
	assert.Equal(t, 0.25, f.Rows[1][2])
}

func TestDatasetLoadMany(t *testing.T) {
	e := newEnv(t, ScopeUser)
	owner := e.user(t, entity.RoleUser)
	a, err := e.datasetSvc.Upload(context.Background(), owner.ID, csvFile("a.csv", "x\n1\n"))
	require.NoError(t, err)
	_, err = e.datasetSvc.Upload(context.Background(), owner.ID, csvFile("b.csv", "y\n2\n"))
	require.NoError(t, err)

	all, err := e.datasetSvc.LoadMany(context.Background(), owner.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := e.datasetSvc.LoadMany(context.Background(), owner.ID, []uuid.UUID{a.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "a", some[0].Name)
}

func TestDatasetRenameAndDelete(t *testing.T) {
	e := newEnv(t, ScopeUser)
	owner := e.user(t, entity.RoleUser)
	d, err := e.datasetSvc.Upload(context.Background(), owner.ID, csvFile("a.csv", salesCSV(250)))
	require.NoError(t, err)

	_, err = e.datasetSvc.Rename(context.Background(), owner.ID, d.ID, "   ")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	renamed, err := e.datasetSvc.Rename(context.Background(), owner.ID, d.ID, " Regional sales ")
	require.NoError(t, err)
	assert.Equal(t, "Regional sales", renamed.Name)
	assert.Equal(t, "Regional sales", e.search.Docs[d.ID.String()]["name"])

	require.NoError(t, e.datasetSvc.Delete(context.Background(), owner.ID, d.ID))
	assert.Empty(t, e.repo.ChunkIndices(d.ID.String(), utils.UserScope(owner.ID)))
	assert.Empty(t, e.search.Docs)

	_, err = e.datasetSvc.Load(context.Background(), owner.ID, d.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	err = e.datasetSvc.Delete(context.Background(), owner.ID, d.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestSharedUpload_RequiresAdmin(t *testing.T) {
	e := newEnv(t, ScopeShared)
	regular := e.user(t, entity.RoleUser)

	_, err := e.sharedSvc.Upload(context.Background(), regular, csvFile("a.csv", salesCSV(10)))
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	assert.Empty(t, e.shared.Rows)
	manifests, chunks := e.repo.Counts()
	assert.Zero(t, manifests)
	assert.Zero(t, chunks)
}

func TestSharedLifecycle(t *testing.T) {
	e := newEnv(t, ScopeShared)
	admin := e.user(t, entity.RoleAdmin)

	d, err := e.sharedSvc.Upload(context.Background(), admin, csvFile("trials.csv", salesCSV(400)))
	require.NoError(t, err)
	assert.True(t, d.IsActive)
	assert.Equal(t, admin.ID, d.UploadedBy)
	assert.Equal(t, chunkstore.SharedScope, e.search.Docs[d.ID.String()]["owner_scope"])

	list, err := e.sharedSvc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	frames, err := e.sharedSvc.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, 400, frames[0].Frame.Len())

	_, err = e.sharedSvc.Rename(context.Background(), admin, d.ID, "Trials")
	require.NoError(t, err)

	regular := e.user(t, entity.RoleUser)
	err = e.sharedSvc.Delete(context.Background(), regular, d.ID)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	require.NoError(t, e.sharedSvc.Delete(context.Background(), admin, d.ID))
	require.Len(t, e.shared.Rows, 1)
	assert.False(t, e.shared.Rows[0].IsActive)
	assert.Empty(t, e.repo.ChunkIndices(d.ID.String(), chunkstore.SharedScope))

	_, err = e.sharedSvc.Preview(context.Background(), d.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "report.final", displayName("report.final.xlsx"))
	assert.Equal(t, "data", displayName("data"))
	assert.Equal(t, ".csv", displayName(".csv"))
}
