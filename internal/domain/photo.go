package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PhotoStatusPending   = "pending"
	PhotoStatusAssigned  = "assigned"
	PhotoStatusProcessed = "processed"
)

// UploadedPhoto is a user upload. Photos sharing AssignedSKU form a SKU group.
type UploadedPhoto struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	ImageURL    string     `gorm:"column:image_url;not null" json:"image_url"`
	Filename    string     `gorm:"column:filename" json:"filename"`
	UploadOrder int        `gorm:"column:upload_order;not null;default:0" json:"upload_order"`
	AssignedSKU *string    `gorm:"column:assigned_sku;index" json:"assigned_sku"`
	ItemID      *uuid.UUID `gorm:"column:item_id;type:uuid;index" json:"item_id"`
	Status      string     `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (UploadedPhoto) TableName() string {
	return "uploaded_photos"
}

func (p *UploadedPhoto) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// SKUGroup is the unit of listing generation.
type SKUGroup struct {
	SKU    string          `json:"sku"`
	Photos []UploadedPhoto `json:"photos"`
}
