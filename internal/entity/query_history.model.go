package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QueryHistory struct {
	ID            uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID                   `json:"user_id" gorm:"type:uuid;not null;index"`
	Query         string                      `json:"query" gorm:"type:text"`
	DatasetsUsed  datatypes.JSONSlice[string] `json:"datasets_used" gorm:"type:jsonb"`
	Success       bool                        `json:"success"`
	ResultSummary string                      `json:"result_summary" gorm:"type:varchar(500)"`
	FullResult    datatypes.JSON              `json:"full_result,omitempty" gorm:"type:jsonb"`
	CreatedAt     time.Time                   `json:"timestamp" gorm:"index"`
}

func (QueryHistory) TableName() string {
	return "query_history"
}

func (q *QueryHistory) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
