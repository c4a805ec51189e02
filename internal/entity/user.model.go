package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Email          string     `json:"email" gorm:"type:varchar(255);uniqueIndex"`
	Name           string     `json:"name" gorm:"type:varchar(100)"`
	PasswordHash   string     `json:"-" gorm:"type:varchar(255)"`
	ProfilePicture string     `json:"profile_picture" gorm:"type:varchar(255)"`
	Role           string     `json:"role" gorm:"type:varchar(20);index"`
	LastLogin      *time.Time `json:"last_login"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
