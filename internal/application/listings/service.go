package listings

import (
	"context"
	"errors"
	"fmt"

	"easyflip-backend/internal/application/ebay"
	"easyflip-backend/internal/application/items"
	"easyflip-backend/internal/application/user"
	"easyflip-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrListingNotFound  = errors.New("Listing not found")
	ErrInvalidPlatform  = errors.New("Invalid platform")
	ErrNoPlatforms      = errors.New("At least one platform is required")
	ErrInvalidPrice     = errors.New("Invalid price")
	ErrInvalidStatus    = errors.New("Invalid status")
	ErrNoUpdateFields   = errors.New("No valid update fields provided")
	ErrNotEbayListing   = errors.New("Listing does not target eBay")
	ErrAlreadyPublished = errors.New("Listing is already live on eBay")
)

// Publisher puts an item live on eBay.
type Publisher interface {
	PublishItem(ctx context.Context, userID uuid.UUID, item *domain.Item, price decimal.Decimal) (*ebay.PublishResult, error)
}

type Service struct {
	DB        *gorm.DB
	Publisher Publisher
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, status string) ([]domain.Listing, error) {
	q := s.DB.WithContext(ctx).Preload("Item").Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.Listing
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Listing, error) {
	return findOwned(s.DB.WithContext(ctx).Preload("Item"), userID, id)
}

func findOwned(tx *gorm.DB, userID, id uuid.UUID) (*domain.Listing, error) {
	var l domain.Listing
	if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return &l, nil
}

// UpdateListingInput edits a listing and, optionally, its item in one go.
type UpdateListingInput struct {
	Platforms []string
	Price     *decimal.Decimal
	Status    *string
	Item      *items.UpdateItemInput
}

func (in UpdateListingInput) columns() (map[string]interface{}, error) {
	upd := map[string]interface{}{}
	if in.Platforms != nil {
		if len(in.Platforms) == 0 {
			return nil, ErrNoPlatforms
		}
		for _, p := range in.Platforms {
			if !domain.IsPlatform(p) {
				return nil, fmt.Errorf("%w: %s", ErrInvalidPlatform, p)
			}
		}
		upd["platforms"] = datatypes.JSONSlice[string](in.Platforms)
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		upd["price"] = *in.Price
	}
	if in.Status != nil {
		if *in.Status != domain.ListingStatusDraft && *in.Status != domain.ListingStatusActive {
			return nil, ErrInvalidStatus
		}
		upd["status"] = *in.Status
	}
	return upd, nil
}

// Update is the one edit path for listings; item fields ride along in the same transaction.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, in UpdateListingInput) (*domain.Listing, error) {
	upd, err := in.columns()
	if err != nil {
		return nil, err
	}
	if len(upd) == 0 && in.Item == nil {
		return nil, ErrNoUpdateFields
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := findOwned(tx, userID, id)
		if err != nil {
			return err
		}
		if len(upd) > 0 {
			if err := tx.Model(l).Updates(upd).Error; err != nil {
				return err
			}
		}
		if in.Item != nil {
			return items.ApplyUpdate(tx, userID, l.ItemID, *in.Item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

// Delete removes one listing and gives its slot back to the user's quota.
// The item goes back to draft when nothing else lists it.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l, err := findOwned(tx, userID, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(l).Error; err != nil {
			return err
		}
		if err := user.AdjustListingsUsed(tx, userID, -1); err != nil {
			return err
		}
		var remaining int64
		if err := tx.Model(&domain.Listing{}).Where("item_id = ?", l.ItemID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			return tx.Model(&domain.Item{}).Where("id = ?", l.ItemID).Update("status", domain.ItemStatusDraft).Error
		}
		return nil
	})
}

// Publish pushes a draft listing to eBay and marks it and its item live.
func (s *Service) Publish(ctx context.Context, userID, id uuid.UUID) (*domain.Listing, error) {
	l, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !hasPlatform(l.Platforms, domain.PlatformEbay) {
		return nil, ErrNotEbayListing
	}
	if l.EbayListingID != nil && *l.EbayListingID != "" {
		return nil, ErrAlreadyPublished
	}
	if l.Item == nil {
		return nil, items.ErrItemNotFound
	}
	price := l.Price
	if price.IsZero() {
		price = l.Item.SuggestedPrice
	}
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	res, err := s.Publisher.PublishItem(ctx, userID, l.Item, price)
	if err != nil {
		if res != nil && res.OfferID != "" {
			// Keep the offer id so the next attempt can be reconciled on eBay.
			if uerr := s.DB.WithContext(ctx).Model(&domain.Listing{}).Where("id = ?", l.ID).Update("ebay_offer_id", res.OfferID).Error; uerr != nil {
				log.Error().Err(uerr).Str("listing_id", l.ID.String()).Str("offer_id", res.OfferID).Msg("listings: failed to record eBay offer id")
			}
		}
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Listing{}).Where("id = ?", l.ID).Updates(map[string]interface{}{
			"ebay_offer_id":   res.OfferID,
			"ebay_listing_id": res.ListingID,
			"status":          domain.ListingStatusActive,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Item{}).Where("id = ?", l.ItemID).Update("status", domain.ItemStatusListed).Error
	})
	if err != nil {
		return nil, fmt.Errorf("record publish: %w", err)
	}
	return s.Get(ctx, userID, id)
}

func hasPlatform(ps []string, p string) bool {
	for _, v := range ps {
		if v == p {
			return true
		}
	}
	return false
}
