package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SharedDataset is an admin-managed dataset visible to every user. Deletion
// only clears IsActive.
type SharedDataset struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UploadedBy uuid.UUID `json:"uploaded_by" gorm:"type:uuid"`
	DatasetProfile
	IsActive  bool      `json:"is_active" gorm:"index"`
	CreatedAt time.Time `json:"upload_date"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *SharedDataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
