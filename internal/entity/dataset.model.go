package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatasetProfile is the descriptive metadata shared by user and shared
// datasets. Preview holds the first rows with missing values as "".
type DatasetProfile struct {
	Name             string                        `json:"name" gorm:"type:varchar(255)"`
	OriginalFilename string                        `json:"original_filename" gorm:"type:varchar(255)"`
	Rows             int                           `json:"rows"`
	ColumnCount      int                           `json:"column_count"`
	Columns          datatypes.JSONSlice[string]   `json:"columns" gorm:"type:jsonb"`
	ColumnTypes      datatypes.JSONType[StringMap] `json:"column_types" gorm:"type:jsonb"`
	MissingValues    datatypes.JSONType[CountMap]  `json:"missing_values" gorm:"type:jsonb"`
	Preview          datatypes.JSON                `json:"preview" gorm:"type:jsonb"`
	SizeBytes        int64                         `json:"size_bytes"`
	HasFullData      bool                          `json:"has_full_data"`
	IsChunked        bool                          `json:"is_chunked"`
	TotalChunks      int                           `json:"total_chunks"`
}

type StringMap map[string]string

type CountMap map[string]int

// Dataset is a dataset owned by one user.
type Dataset struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	DatasetProfile
	CreatedAt time.Time `json:"upload_date"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
