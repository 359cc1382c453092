package database

import (
	"errors"

	"easyflip-backend/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from DSN (Supabase/Postgres pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind the Supabase pooler.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
}

// Models lists every table the service owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Item{},
		&domain.UploadedPhoto{},
		&domain.PhotoAnalysis{},
		&domain.Listing{},
		&domain.PricingRecommendation{},
		&domain.PricingPerformance{},
		&domain.EbayToken{},
		&domain.Subscriber{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// Postgres error codes the services care about.
const (
	CodeForeignKeyViolation = "23503"
	CodeUniqueViolation     = "23505"
	CodeInsufficientPriv    = "42501"
)

// PgCode returns the SQLSTATE of a Postgres error anywhere in err's chain, or "".
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return PgCode(err) == CodeForeignKeyViolation
}

// IsUniqueViolation also recognises gorm's translated error (TranslateError).
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return PgCode(err) == CodeUniqueViolation
}

func IsPermissionDenied(err error) bool {
	return PgCode(err) == CodeInsufficientPriv
}
