package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"easyflip-backend/internal/application/ebay"
	"easyflip-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRecommendationNotFound = errors.New("Recommendation not found")
	ErrRecommendationClosed   = errors.New("Recommendation was already applied or dismissed")
	ErrItemNotFound           = errors.New("Item not found")
	ErrNoComparables          = errors.New("No comparable eBay listings found for this item")
	ErrInvalidStatus          = errors.New("Invalid status")
	ErrInvalidPerformance     = errors.New("Views, watchers and days listed must not be negative")
)

const comparablesLimit = 50

// Market looks up current asks for similar items.
type Market interface {
	Trending(ctx context.Context, query string, limit int) (*ebay.TrendingReport, error)
}

type Service struct {
	DB     *gorm.DB
	Market Market
}

func (s *Service) Recommendations(ctx context.Context, userID uuid.UUID, status string) ([]domain.PricingRecommendation, error) {
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		switch status {
		case domain.RecommendationPending, domain.RecommendationApplied, domain.RecommendationDismissed:
		default:
			return nil, ErrInvalidStatus
		}
		q = q.Where("status = ?", status)
	}
	var out []domain.PricingRecommendation
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// searchQuery builds the marketplace query for an item, most specific words first.
func searchQuery(it *domain.Item) string {
	parts := []string{it.Brand, it.Model}
	if it.Brand == "" && it.Model == "" {
		parts = []string{it.Title}
	} else if it.Category != "" {
		parts = append(parts, it.Category)
	}
	var words []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			words = append(words, p)
		}
	}
	return strings.Join(words, " ")
}

// Recommend prices an item at the median of comparable fixed-price listings
// and stores the suggestion as pending. Earlier pending suggestions for the
// same item are dismissed.
func (s *Service) Recommend(ctx context.Context, userID, itemID uuid.UUID) (*domain.PricingRecommendation, error) {
	var it domain.Item
	if err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).First(&it).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	query := searchQuery(&it)
	if query == "" {
		return nil, ErrNoComparables
	}
	report, err := s.Market.Trending(ctx, query, comparablesLimit)
	if err != nil {
		return nil, fmt.Errorf("comparables: %w", err)
	}
	if report.Count == 0 || report.MedianPrice.IsZero() {
		return nil, ErrNoComparables
	}

	rec := &domain.PricingRecommendation{
		ItemID:           it.ID,
		UserID:           userID,
		CurrentPrice:     it.Price,
		RecommendedPrice: report.MedianPrice,
		Reason:           reason(it.Price, report),
		Status:           domain.RecommendationPending,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.PricingRecommendation{}).
			Where("item_id = ? AND user_id = ? AND status = ?", it.ID, userID, domain.RecommendationPending).
			Update("status", domain.RecommendationDismissed).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func reason(current decimal.Decimal, r *ebay.TrendingReport) string {
	base := fmt.Sprintf("Median of %d active eBay listings for %q is $%s (range $%s-$%s)",
		r.Count, r.Query, r.MedianPrice.StringFixed(2), r.MinPrice.StringFixed(2), r.MaxPrice.StringFixed(2))
	switch {
	case current.IsZero():
		return base
	case r.MedianPrice.GreaterThan(current):
		return base + "; you may be underpriced"
	case r.MedianPrice.LessThan(current):
		return base + "; a lower price may sell faster"
	}
	return base + "; your price matches the market"
}

func (s *Service) findPending(tx *gorm.DB, userID, id uuid.UUID) (*domain.PricingRecommendation, error) {
	var rec domain.PricingRecommendation
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", id, userID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecommendationNotFound
		}
		return nil, err
	}
	if rec.Status != domain.RecommendationPending {
		return nil, ErrRecommendationClosed
	}
	return &rec, nil
}

// Apply sets the item and its unpublished listings to the recommended price.
func (s *Service) Apply(ctx context.Context, userID, id uuid.UUID) (*domain.PricingRecommendation, error) {
	var out *domain.PricingRecommendation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.findPending(tx, userID, id)
		if err != nil {
			return err
		}
		res := tx.Model(&domain.Item{}).Where("id = ? AND user_id = ?", rec.ItemID, userID).
			Update("price", rec.RecommendedPrice)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrItemNotFound
		}
		if err := tx.Model(&domain.Listing{}).
			Where("item_id = ? AND user_id = ? AND status = ?", rec.ItemID, userID, domain.ListingStatusDraft).
			Update("price", rec.RecommendedPrice).Error; err != nil {
			return err
		}
		if err := tx.Model(rec).Update("status", domain.RecommendationApplied).Error; err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Dismiss(ctx context.Context, userID, id uuid.UUID) (*domain.PricingRecommendation, error) {
	var out *domain.PricingRecommendation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.findPending(tx, userID, id)
		if err != nil {
			return err
		}
		if err := tx.Model(rec).Update("status", domain.RecommendationDismissed).Error; err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PerformanceInput is a snapshot of marketplace engagement for one item.
type PerformanceInput struct {
	Views      int
	Watchers   int
	Sold       bool
	SoldPrice  *decimal.Decimal
	DaysListed int
}

// RecordPerformance upserts the single performance row for an item.
func (s *Service) RecordPerformance(ctx context.Context, userID, itemID uuid.UUID, in PerformanceInput) (*domain.PricingPerformance, error) {
	if in.Views < 0 || in.Watchers < 0 || in.DaysListed < 0 {
		return nil, ErrInvalidPerformance
	}
	if in.SoldPrice != nil && in.SoldPrice.IsNegative() {
		return nil, ErrInvalidPerformance
	}
	var out domain.PricingPerformance
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Item{}).Where("id = ? AND user_id = ?", itemID, userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrItemNotFound
		}
		err := tx.Where("item_id = ? AND user_id = ?", itemID, userID).First(&out).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		out.ItemID = itemID
		out.UserID = userID
		out.Views = in.Views
		out.Watchers = in.Watchers
		out.Sold = in.Sold
		out.SoldPrice = in.SoldPrice
		out.DaysListed = in.DaysListed
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PerformanceSummary aggregates the performance rows of one user.
type PerformanceSummary struct {
	Items             int                         `json:"items"`
	TotalViews        int                         `json:"total_views"`
	TotalWatchers     int                         `json:"total_watchers"`
	SoldCount         int                         `json:"sold_count"`
	SellThroughRate   float64                     `json:"sell_through_rate"`
	Revenue           decimal.Decimal             `json:"revenue"`
	AverageDaysToSell float64                     `json:"average_days_to_sell"`
	Rows              []domain.PricingPerformance `json:"rows"`
}

func (s *Service) Performance(ctx context.Context, userID uuid.UUID) (*PerformanceSummary, error) {
	var rows []domain.PricingPerformance
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return summarise(rows), nil
}

func summarise(rows []domain.PricingPerformance) *PerformanceSummary {
	sum := &PerformanceSummary{Items: len(rows), Revenue: decimal.Zero, Rows: rows}
	if rows == nil {
		sum.Rows = []domain.PricingPerformance{}
	}
	soldDays := 0
	for _, r := range rows {
		sum.TotalViews += r.Views
		sum.TotalWatchers += r.Watchers
		if r.Sold {
			sum.SoldCount++
			soldDays += r.DaysListed
			if r.SoldPrice != nil {
				sum.Revenue = sum.Revenue.Add(*r.SoldPrice)
			}
		}
	}
	if sum.Items > 0 {
		sum.SellThroughRate = float64(sum.SoldCount) / float64(sum.Items)
	}
	if sum.SoldCount > 0 {
		sum.AverageDaysToSell = float64(soldDays) / float64(sum.SoldCount)
	}
	return sum
}
