package domain

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors the users table. ID is the Supabase auth user id, so it is
// never generated here.
type User struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"column:email;not null" json:"email"`
	Name         string    `gorm:"column:name" json:"name"`
	AvatarURL    string    `gorm:"column:avatar_url" json:"avatar_url"`
	ListingsUsed int       `gorm:"column:listings_used;not null;default:0" json:"listings_used"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
