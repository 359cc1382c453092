package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ItemStatusDraft  = "draft"
	ItemStatusListed = "listed"
)

// Item condition vocabulary shared by generation and the edit path.
const (
	ConditionNew     = "new"
	ConditionLikeNew = "like_new"
	ConditionGood    = "good"
	ConditionFair    = "fair"
	ConditionPoor    = "poor"
)

var Conditions = []string{ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor}

func IsCondition(c string) bool {
	for _, v := range Conditions {
		if v == c {
			return true
		}
	}
	return false
}

// Item is one physical thing for sale. SKU is unique per user.
type Item struct {
	ID             uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_items_user_sku" json:"user_id"`
	SKU            string                      `gorm:"column:sku;not null;uniqueIndex:idx_items_user_sku" json:"sku"`
	Title          string                      `gorm:"column:title;not null" json:"title"`
	Description    string                      `gorm:"column:description;type:text" json:"description"`
	Category       string                      `gorm:"column:category" json:"category"`
	Condition      string                      `gorm:"column:condition" json:"condition"`
	Brand          string                      `gorm:"column:brand" json:"brand"`
	Size           string                      `gorm:"column:size" json:"size"`
	Color          string                      `gorm:"column:color" json:"color"`
	Model          string                      `gorm:"column:model" json:"model"`
	Price          decimal.Decimal             `gorm:"column:price;type:decimal(10,2);not null;default:0" json:"price"`
	SuggestedPrice decimal.Decimal             `gorm:"column:suggested_price;type:decimal(10,2);not null;default:0" json:"suggested_price"`
	PriceRangeMin  decimal.Decimal             `gorm:"column:price_range_min;type:decimal(10,2);not null;default:0" json:"price_range_min"`
	PriceRangeMax  decimal.Decimal             `gorm:"column:price_range_max;type:decimal(10,2);not null;default:0" json:"price_range_max"`
	Images         datatypes.JSONSlice[string] `gorm:"column:images" json:"images"`
	AIAnalysis     datatypes.JSON              `gorm:"column:ai_analysis" json:"ai_analysis"`
	Status         string                      `gorm:"column:status;type:varchar(20);not null;default:'draft'" json:"status"`
	CreatedAt      time.Time                   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time                   `gorm:"column:updated_at" json:"updated_at"`
}

func (Item) TableName() string {
	return "items"
}

func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// PhotoAnalysis keeps the raw AI output for the photo an item was generated from.
type PhotoAnalysis struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ItemID     uuid.UUID      `gorm:"column:item_id;type:uuid;not null;index" json:"item_id"`
	PhotoID    *uuid.UUID     `gorm:"column:photo_id;type:uuid" json:"photo_id"`
	Analysis   datatypes.JSON `gorm:"column:analysis" json:"analysis"`
	Confidence float64        `gorm:"column:confidence;not null;default:0" json:"confidence"`
	CreatedAt  time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (PhotoAnalysis) TableName() string {
	return "photo_analysis"
}

func (p *PhotoAnalysis) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
