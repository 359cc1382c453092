package domain

import (
	"time"

	"github.com/google/uuid"
)

// EbayToken holds a user's eBay OAuth grant. Token columns are ciphertext.
type EbayToken struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	AccessToken  string    `gorm:"column:access_token;type:text;not null" json:"-"`
	RefreshToken string    `gorm:"column:refresh_token;type:text" json:"-"`
	TokenType    string    `gorm:"column:token_type" json:"token_type"`
	Scope        string    `gorm:"column:scope;type:text" json:"scope"`
	ExpiresAt    time.Time `gorm:"column:expires_at" json:"expires_at"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (EbayToken) TableName() string {
	return "ebay_tokens"
}
