package docstore

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/chunkstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
)

// ChunkRepository keeps manifests and chunks in the dataset_data table.
type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

var _ chunkstore.Repository = (*ChunkRepository)(nil)

func (r *ChunkRepository) PutManifest(ctx context.Context, m *chunkstore.Manifest) error {
	row := entity.DatasetData{
		ID:          m.DatasetID,
		DatasetID:   m.DatasetID,
		OwnerScope:  m.OwnerScope,
		Kind:        entity.DatasetDataMeta,
		Status:      string(m.Status),
		TotalChunks: m.TotalChunks,
		TotalRows:   m.TotalRows,
		ChunkSize:   m.ChunkSize,
		Columns:     datatypes.JSONSlice[string](m.Columns),
		CreatedAt:   m.CreatedAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (r *ChunkRepository) MarkCommitted(ctx context.Context, datasetID, scope string) error {
	res := r.db.WithContext(ctx).Model(&entity.DatasetData{}).
		Where("id = ? AND owner_scope = ? AND kind = ?", datasetID, scope, entity.DatasetDataMeta).
		Update("status", string(chunkstore.StatusCommitted))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ChunkRepository) GetManifest(ctx context.Context, datasetID, scope string) (*chunkstore.Manifest, error) {
	var row entity.DatasetData
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_scope = ? AND kind = ?", datasetID, scope, entity.DatasetDataMeta).
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	m := toManifest(row)
	return &m, nil
}

func (r *ChunkRepository) PutChunk(ctx context.Context, c *chunkstore.Chunk) error {
	row := entity.DatasetData{
		ID:         chunkstore.ChunkKey(c.DatasetID, c.Index),
		DatasetID:  c.DatasetID,
		OwnerScope: c.OwnerScope,
		Kind:       entity.DatasetDataChunk,
		ChunkIndex: c.Index,
		RowCount:   c.RowCount,
		Data:       datatypes.JSON(c.Data),
		CreatedAt:  time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *ChunkRepository) GetChunk(ctx context.Context, datasetID, scope string, index int) (*chunkstore.Chunk, error) {
	var row entity.DatasetData
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_scope = ?", chunkstore.ChunkKey(datasetID, index), scope).
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return &chunkstore.Chunk{
		DatasetID:  row.DatasetID,
		OwnerScope: row.OwnerScope,
		Index:      row.ChunkIndex,
		RowCount:   row.RowCount,
		Data:       []byte(row.Data),
	}, nil
}

func (r *ChunkRepository) DeleteManifest(ctx context.Context, datasetID, scope string) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND owner_scope = ? AND kind = ?", datasetID, scope, entity.DatasetDataMeta).
		Delete(&entity.DatasetData{}).Error
}

func (r *ChunkRepository) DeleteChunks(ctx context.Context, datasetID, scope string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("dataset_id = ? AND owner_scope = ? AND kind = ?", datasetID, scope, entity.DatasetDataChunk).
		Delete(&entity.DatasetData{})
	return res.RowsAffected, res.Error
}

func (r *ChunkRepository) ListPending(ctx context.Context, olderThan time.Time) ([]chunkstore.Manifest, error) {
	var rows []entity.DatasetData
	err := r.db.WithContext(ctx).
		Where("kind = ? AND status = ? AND created_at < ?", entity.DatasetDataMeta, string(chunkstore.StatusPending), olderThan).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]chunkstore.Manifest, len(rows))
	for i, row := range rows {
		out[i] = toManifest(row)
	}
	return out, nil
}

func toManifest(row entity.DatasetData) chunkstore.Manifest {
	return chunkstore.Manifest{
		DatasetID:   row.DatasetID,
		OwnerScope:  row.OwnerScope,
		TotalChunks: row.TotalChunks,
		TotalRows:   row.TotalRows,
		ChunkSize:   row.ChunkSize,
		Columns:     []string(row.Columns),
		Status:      chunkstore.Status(row.Status),
		CreatedAt:   row.CreatedAt,
	}
}
