package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"easyflip-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound      = errors.New("User not found")
	ErrNoUpdateFields    = errors.New("No valid update fields provided")
	ErrNameTooLong       = errors.New("Name must be at most 100 characters")
	ErrMissingIdentifier = errors.New("Missing user ID")
)

// Service holds DB for user operations.
type Service struct {
	DB *gorm.DB
}

// Identity is what the verified access token tells us about the caller.
type Identity struct {
	ID        uuid.UUID
	Email     string
	Name      string
	AvatarURL string
}

// EnsureUser returns the users row for id, creating it on first sight (sign-up).
// Existing rows keep their name/avatar; the email follows the auth provider.
func (s *Service) EnsureUser(ctx context.Context, in Identity) (*domain.User, error) {
	if in.ID == uuid.Nil {
		return nil, ErrMissingIdentifier
	}
	u := &domain.User{
		ID:        in.ID,
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Name:      strings.TrimSpace(in.Name),
		AvatarURL: in.AvatarURL,
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email"}),
	}).Create(u).Error
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetUser(ctx, in.ID)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpdateProfileInput carries the editable profile fields; nil means unchanged.
type UpdateProfileInput struct {
	Name      *string
	AvatarURL *string
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateProfileInput) (*domain.User, error) {
	upd := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len(name) > 100 {
			return nil, ErrNameTooLong
		}
		upd["name"] = name
	}
	if in.AvatarURL != nil {
		upd["avatar_url"] = strings.TrimSpace(*in.AvatarURL)
	}
	if len(upd) == 0 {
		return nil, ErrNoUpdateFields
	}
	res := s.DB.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(upd)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return s.GetUser(ctx, id)
}

// AdjustListingsUsed moves the listings_used counter by delta inside tx, never below zero.
func AdjustListingsUsed(tx *gorm.DB, id uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	expr := gorm.Expr("listings_used + ?", delta)
	if delta < 0 {
		expr = gorm.Expr("CASE WHEN listings_used + ? < 0 THEN 0 ELSE listings_used + ? END", delta, delta)
	}
	return tx.Model(&domain.User{}).Where("id = ?", id).Update("listings_used", expr).Error
}
