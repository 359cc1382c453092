package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RecommendationPending   = "pending"
	RecommendationApplied   = "applied"
	RecommendationDismissed = "dismissed"
)

type PricingRecommendation struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ItemID           uuid.UUID       `gorm:"column:item_id;type:uuid;not null;index" json:"item_id"`
	UserID           uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	CurrentPrice     decimal.Decimal `gorm:"column:current_price;type:decimal(10,2);not null" json:"current_price"`
	RecommendedPrice decimal.Decimal `gorm:"column:recommended_price;type:decimal(10,2);not null" json:"recommended_price"`
	Reason           string          `gorm:"column:reason" json:"reason"`
	Status           string          `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt        time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (PricingRecommendation) TableName() string {
	return "pricing_recommendations"
}

func (p *PricingRecommendation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type PricingPerformance struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ItemID     uuid.UUID        `gorm:"column:item_id;type:uuid;not null;index" json:"item_id"`
	UserID     uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Views      int              `gorm:"column:views;not null;default:0" json:"views"`
	Watchers   int              `gorm:"column:watchers;not null;default:0" json:"watchers"`
	Sold       bool             `gorm:"column:sold;not null;default:false" json:"sold"`
	SoldPrice  *decimal.Decimal `gorm:"column:sold_price;type:decimal(10,2)" json:"sold_price"`
	DaysListed int              `gorm:"column:days_listed;not null;default:0" json:"days_listed"`
	CreatedAt  time.Time        `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"column:updated_at" json:"updated_at"`
}

func (PricingPerformance) TableName() string {
	return "pricing_performance"
}

func (p *PricingPerformance) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
