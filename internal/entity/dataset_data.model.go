package entity

import (
	"time"

	"gorm.io/datatypes"
)

const (
	DatasetDataMeta  = "meta"
	DatasetDataChunk = "chunk"
)

// DatasetData stores both chunk manifests (ID = dataset id) and chunk
// documents (ID = "{dataset id}_chunk_{index}").
type DatasetData struct {
	ID          string                      `json:"id" gorm:"type:varchar(128);primaryKey"`
	DatasetID   string                      `json:"dataset_id" gorm:"type:varchar(64);not null;index:idx_dataset_data_owner"`
	OwnerScope  string                      `json:"owner_scope" gorm:"type:varchar(64);not null;index:idx_dataset_data_owner"`
	Kind        string                      `json:"kind" gorm:"type:varchar(10);not null"`
	Status      string                      `json:"status" gorm:"type:varchar(20);index"`
	ChunkIndex  int                         `json:"chunk_index"`
	RowCount    int                         `json:"row_count"`
	TotalChunks int                         `json:"total_chunks"`
	TotalRows   int                         `json:"total_rows"`
	ChunkSize   int                         `json:"chunk_size"`
	Columns     datatypes.JSONSlice[string] `json:"columns" gorm:"type:jsonb"`
	Data        datatypes.JSON              `json:"data" gorm:"type:jsonb"`
	CreatedAt   time.Time                   `json:"created_at"`
}

func (DatasetData) TableName() string {
	return "dataset_data"
}
