package items

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"easyflip-backend/internal/application/user"
	"easyflip-backend/internal/domain"
	"easyflip-backend/internal/infrastructure/database"
	"easyflip-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrItemNotFound     = errors.New("Item not found")
	ErrDuplicateSKU     = errors.New("An item with this SKU already exists")
	ErrInvalidSKU       = errors.New("Invalid SKU")
	ErrTitleRequired    = errors.New("Title is required")
	ErrInvalidCondition = errors.New("Invalid condition")
	ErrInvalidStatus    = errors.New("Invalid status")
	ErrInvalidPrice     = errors.New("Price must not be negative")
	ErrNoUpdateFields   = errors.New("No valid update fields provided")
	ErrItemInUse        = errors.New("Item is still referenced and could not be deleted")
	ErrForbidden        = errors.New("Not allowed to modify this item")
)

type Service struct {
	DB *gorm.DB
}

// ListFilter narrows the inventory view.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, f ListFilter) ([]domain.Item, int64, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Item{}).Where("user_id = ?", userID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(sku) LIKE ? OR LOWER(brand) LIKE ?", like, like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var items []domain.Item
	if err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Item, error) {
	return findOwned(s.DB.WithContext(ctx), userID, id)
}

func findOwned(tx *gorm.DB, userID, id uuid.UUID) (*domain.Item, error) {
	var it domain.Item
	if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&it).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &it, nil
}

// CreateItemInput is a manually entered item.
type CreateItemInput struct {
	SKU         string
	Title       string
	Description string
	Category    string
	Condition   string
	Brand       string
	Size        string
	Color       string
	Model       string
	Price       decimal.Decimal
	Images      []string
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateItemInput) (*domain.Item, error) {
	sku := strings.TrimSpace(in.SKU)
	if !validation.IsValidSKU(sku) {
		return nil, ErrInvalidSKU
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, ErrTitleRequired
	}
	if in.Condition != "" && !domain.IsCondition(in.Condition) {
		return nil, ErrInvalidCondition
	}
	if in.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	it := &domain.Item{
		UserID:      userID,
		SKU:         sku,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    in.Category,
		Condition:   in.Condition,
		Brand:       in.Brand,
		Size:        in.Size,
		Color:       in.Color,
		Model:       in.Model,
		Price:       in.Price,
		Images:      in.Images,
		Status:      domain.ItemStatusDraft,
	}
	if err := s.DB.WithContext(ctx).Create(it).Error; err != nil {
		return nil, translate(err)
	}
	return it, nil
}

// UpdateItemInput carries only the fields being edited. Nil means unchanged.
type UpdateItemInput struct {
	SKU         *string
	Title       *string
	Description *string
	Category    *string
	Condition   *string
	Brand       *string
	Size        *string
	Color       *string
	Model       *string
	Price       *decimal.Decimal
	Status      *string
}

func (in UpdateItemInput) columns() (map[string]interface{}, error) {
	upd := map[string]interface{}{}
	if in.SKU != nil {
		sku := strings.TrimSpace(*in.SKU)
		if !validation.IsValidSKU(sku) {
			return nil, ErrInvalidSKU
		}
		upd["sku"] = sku
	}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return nil, ErrTitleRequired
		}
		upd["title"] = t
	}
	if in.Condition != nil {
		if *in.Condition != "" && !domain.IsCondition(*in.Condition) {
			return nil, ErrInvalidCondition
		}
		upd["condition"] = *in.Condition
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		upd["price"] = *in.Price
	}
	if in.Status != nil {
		if *in.Status != domain.ItemStatusDraft && *in.Status != domain.ItemStatusListed {
			return nil, ErrInvalidStatus
		}
		upd["status"] = *in.Status
	}
	for col, v := range map[string]*string{
		"description": in.Description,
		"category":    in.Category,
		"brand":       in.Brand,
		"size":        in.Size,
		"color":       in.Color,
		"model":       in.Model,
	} {
		if v != nil {
			upd[col] = *v
		}
	}
	if len(upd) == 0 {
		return nil, ErrNoUpdateFields
	}
	return upd, nil
}

// Update applies a partial edit. This is the single edit path for every item form.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, in UpdateItemInput) (*domain.Item, error) {
	if err := ApplyUpdate(s.DB.WithContext(ctx), userID, id, in); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

// ApplyUpdate runs the item edit on tx so callers can combine it with other writes.
func ApplyUpdate(tx *gorm.DB, userID, id uuid.UUID, in UpdateItemInput) error {
	upd, err := in.columns()
	if err != nil {
		return err
	}
	res := tx.Model(&domain.Item{}).Where("id = ? AND user_id = ?", id, userID).Updates(upd)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}
	// Linked photos follow the item to its new SKU.
	if sku, ok := upd["sku"]; ok {
		if err := tx.Model(&domain.UploadedPhoto{}).
			Where("user_id = ? AND item_id = ?", userID, id).
			Update("assigned_sku", sku).Error; err != nil {
			return fmt.Errorf("move photos to new sku: %w", err)
		}
	}
	return nil
}

// Delete removes an item and everything that hangs off it in one transaction:
// listings, photo analysis, photo links (detached, not deleted), pricing rows, the item.
// listings_used drops by the number of listings removed.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		it, err := findOwned(tx, userID, id)
		if err != nil {
			return err
		}
		listings := tx.Where("item_id = ?", it.ID).Delete(&domain.Listing{})
		if listings.Error != nil {
			return fmt.Errorf("delete listings: %w", listings.Error)
		}
		if err := tx.Where("item_id = ?", it.ID).Delete(&domain.PhotoAnalysis{}).Error; err != nil {
			return fmt.Errorf("delete photo analysis: %w", err)
		}
		if err := tx.Model(&domain.UploadedPhoto{}).
			Where("user_id = ? AND (item_id = ? OR (item_id IS NULL AND assigned_sku = ?))", userID, it.ID, it.SKU).
			Updates(map[string]interface{}{
				"item_id":      nil,
				"assigned_sku": nil,
				"status":       domain.PhotoStatusPending,
			}).Error; err != nil {
			return fmt.Errorf("detach photos: %w", err)
		}
		if err := tx.Where("item_id = ?", it.ID).Delete(&domain.PricingRecommendation{}).Error; err != nil {
			return fmt.Errorf("delete pricing recommendations: %w", err)
		}
		if err := tx.Where("item_id = ?", it.ID).Delete(&domain.PricingPerformance{}).Error; err != nil {
			return fmt.Errorf("delete pricing performance: %w", err)
		}
		if err := tx.Delete(it).Error; err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		if listings.RowsAffected == 0 {
			return nil
		}
		return user.AdjustListingsUsed(tx, userID, -int(listings.RowsAffected))
	})
	return translate(err)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case database.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", ErrItemInUse, err)
	case database.IsPermissionDenied(err):
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	case database.IsUniqueViolation(err):
		return ErrDuplicateSKU
	}
	return err
}
