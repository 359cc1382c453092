package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subscriber is a marketing email capture.
type Subscriber struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	Name      string    `gorm:"column:name" json:"name"`
	Source    string    `gorm:"column:source" json:"source"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Subscriber) TableName() string {
	return "subscribers"
}

func (s *Subscriber) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
