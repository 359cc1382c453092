package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ListingStatusDraft  = "draft"
	ListingStatusActive = "active"
)

// Supported resale platforms.
const (
	PlatformEbay     = "ebay"
	PlatformFacebook = "facebook"
	PlatformPoshmark = "poshmark"
	PlatformOfferUp  = "offerup"
)

var Platforms = []string{PlatformEbay, PlatformFacebook, PlatformPoshmark, PlatformOfferUp}

// IsPlatform reports whether p is one of Platforms.
func IsPlatform(p string) bool {
	for _, v := range Platforms {
		if v == p {
			return true
		}
	}
	return false
}

type Listing struct {
	ID            uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ItemID        uuid.UUID                   `gorm:"column:item_id;type:uuid;not null;index" json:"item_id"`
	UserID        uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Platforms     datatypes.JSONSlice[string] `gorm:"column:platforms" json:"platforms"`
	Price         decimal.Decimal             `gorm:"column:price;type:decimal(10,2);not null;default:0" json:"price"`
	Status        string                      `gorm:"column:status;type:varchar(20);not null;default:'draft'" json:"status"`
	EbayOfferID   *string                     `gorm:"column:ebay_offer_id" json:"ebay_offer_id"`
	EbayListingID *string                     `gorm:"column:ebay_listing_id" json:"ebay_listing_id"`
	CreatedAt     time.Time                   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at" json:"updated_at"`

	Item *Item `gorm:"foreignKey:ItemID" json:"item,omitempty"`
}

func (Listing) TableName() string {
	return "listings"
}

func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
