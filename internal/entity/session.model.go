package entity

import (
	"time"

	"github.com/google/uuid"
)

// Session is the server-side half of a login. The cookie carries only a
// signed reference to ID.
type Session struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Email     string    `json:"email" gorm:"type:varchar(255)"`
	Name      string    `json:"name" gorm:"type:varchar(100)"`
	Role      string    `json:"role" gorm:"type:varchar(20)"`
	IsAdmin   bool      `json:"is_admin"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
}
