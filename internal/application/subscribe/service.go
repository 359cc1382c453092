package subscribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"easyflip-backend/internal/application/emails"
	"easyflip-backend/internal/domain"
	"easyflip-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidEmail = errors.New("A valid email is required")
	ErrNameTooLong  = errors.New("Name must be at most 100 characters")
)

const defaultSource = "website"

type Service struct {
	DB     *gorm.DB
	Mailer emails.Sender
}

type Input struct {
	Email  string
	Name   string
	Source string
}

// Subscribe records the email once. Only the first sign-up for an address
// gets the welcome email; repeats return the stored row with created=false.
func (s *Service) Subscribe(ctx context.Context, in Input) (*domain.Subscriber, bool, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !validation.IsValidEmail(email) {
		return nil, false, ErrInvalidEmail
	}
	name := strings.TrimSpace(in.Name)
	if len(name) > 100 {
		return nil, false, ErrNameTooLong
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = defaultSource
	}

	sub := &domain.Subscriber{Email: email, Name: name, Source: source}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(sub)
	if res.Error != nil {
		return nil, false, fmt.Errorf("insert subscriber: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var existing domain.Subscriber
		if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}

	if s.Mailer != nil {
		if err := s.Mailer.SendWelcome(ctx, email, name); err != nil {
			log.Error().Err(err).Str("email", email).Msg("subscribe: welcome email failed")
		}
	}
	return sub, true, nil
}
