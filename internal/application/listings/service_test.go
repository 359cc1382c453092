package listings

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"easyflip-backend/internal/application/ebay"
	"easyflip-backend/internal/application/items"
	"easyflip-backend/internal/domain"
	"easyflip-backend/internal/infrastructure/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakePublisher struct {
	calls int
	price decimal.Decimal
	res   *ebay.PublishResult
	err   error
}

func (f *fakePublisher) PublishItem(ctx context.Context, userID uuid.UUID, item *domain.Item, price decimal.Decimal) (*ebay.PublishResult, error) {
	f.calls++
	f.price = price
	return f.res, f.err
}

func setupListingsTest(t *testing.T) (*Service, *fakePublisher, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	pub := &fakePublisher{res: &ebay.PublishResult{OfferID: "O-1", ListingID: "L-1"}}
	return &Service{DB: db, Publisher: pub}, pub, db
}

func seedListing(t *testing.T, db *gorm.DB, userID uuid.UUID, platforms ...string) *domain.Listing {
	it := &domain.Item{UserID: userID, SKU: uuid.NewString()[:8], Title: "Lamp", SuggestedPrice: decimal.NewFromInt(30)}
	require.NoError(t, db.Create(it).Error)
	l := &domain.Listing{ItemID: it.ID, UserID: userID, Platforms: platforms, Status: domain.ListingStatusDraft}
	require.NoError(t, db.Create(l).Error)
	return l
}

func TestListAndGet(t *testing.T) {
	svc, _, db := setupListingsTest(t)
	uid := uuid.New()
	l := seedListing(t, db, uid, "ebay")
	seedListing(t, db, uuid.New(), "ebay")

	out, err := svc.List(context.Background(), uid, "")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Item)
	assert.Equal(t, "Lamp", out[0].Item.Title)

	_, err = svc.Get(context.Background(), uuid.New(), l.ID)
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestUpdate_ListingAndItemTogether(t *testing.T) {
	svc, _, db := setupListingsTest(t)
	uid := uuid.New()
	l := seedListing(t, db, uid, "ebay")

	price := decimal.RequireFromString("19.99")
	title := "Brass lamp"
	out, err := svc.Update(context.Background(), uid, l.ID, UpdateListingInput{
		Platforms: []string{"ebay", "poshmark"},
		Price:     &price,
		Item:      &items.UpdateItemInput{Title: &title},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ebay", "poshmark"}, []string(out.Platforms))
	assert.True(t, price.Equal(out.Price))
	assert.Equal(t, "Brass lamp", out.Item.Title)
}

func TestUpdate_Validation(t *testing.T) {
	svc, _, db := setupListingsTest(t)
	uid := uuid.New()
	l := seedListing(t, db, uid, "ebay")
	ctx := context.Background()

	_, err := svc.Update(ctx, uid, l.ID, UpdateListingInput{Platforms: []string{"craigslist"}})
	assert.ErrorIs(t, err, ErrInvalidPlatform)
	_, err = svc.Update(ctx, uid, l.ID, UpdateListingInput{Platforms: []string{}})
	assert.ErrorIs(t, err, ErrNoPlatforms)
	_, err = svc.Update(ctx, uid, l.ID, UpdateListingInput{})
	assert.ErrorIs(t, err, ErrNoUpdateFields)

	// A bad item field rolls back the listing change too.
	price := decimal.NewFromInt(5)
	empty := ""
	_, err = svc.Update(ctx, uid, l.ID, UpdateListingInput{Price: &price, Item: &items.UpdateItemInput{Title: &empty}})
	assert.ErrorIs(t, err, items.ErrTitleRequired)
	got, err := svc.Get(ctx, uid, l.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.IsZero())
}

func TestDelete_ReturnsItemToDraft(t *testing.T) {
	svc, _, db := setupListingsTest(t)
	uid := uuid.New()
	l := seedListing(t, db, uid, "ebay")
	require.NoError(t, db.Model(&domain.Item{}).Where("id = ?", l.ItemID).Update("status", domain.ItemStatusListed).Error)

	require.NoError(t, svc.Delete(context.Background(), uid, l.ID))
	var it domain.Item
	require.NoError(t, db.First(&it, "id = ?", l.ItemID).Error)
	assert.Equal(t, domain.ItemStatusDraft, it.Status)
	assert.ErrorIs(t, svc.Delete(context.Background(), uid, l.ID), ErrListingNotFound)
}

func TestDelete_ReleasesListingsUsed(t *testing.T) {
	svc, _, db := setupListingsTest(t)
	uid := uuid.New()
	require.NoError(t, db.Create(&domain.User{ID: uid, Email: "u@test.com", ListingsUsed: 2}).Error)
	l := seedListing(t, db, uid, "ebay")

	require.NoError(t, svc.Delete(context.Background(), uid, l.ID))
	var u domain.User
	require.NoError(t, db.First(&u, "id = ?", uid).Error)
	assert.Equal(t, 1, u.ListingsUsed)

	// The item no longer has listings, so removing it leaves the counter alone.
	require.NoError(t, (&items.Service{DB: db}).Delete(context.Background(), uid, l.ItemID))
	require.NoError(t, db.First(&u, "id = ?", uid).Error)
	assert.Equal(t, 1, u.ListingsUsed)
}

func TestPublish_LogsLostOfferID(t *testing.T) {
	svc, pub, db := setupListingsTest(t)
	uid := uuid.New()
	l := seedListing(t, db, uid, "ebay")
	pub.res = &ebay.PublishResult{OfferID: "O-9"}
	pub.err = &ebay.APIError{Status: 500, Body: "publish failed"}
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:fail", func(tx *gorm.DB) {
		if tx.Statement.Table == "listings" {
			_ = tx.AddError(errors.New("write failed"))
		}
	}))

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	_, err := svc.Publish(context.Background(), uid, l.ID)
	assert.ErrorAs(t, err, new(*ebay.APIError))
	assert.Contains(t, buf.String(), "failed to record eBay offer id")
	assert.Contains(t, buf.String(), "O-9")
}

func TestPublish(t *testing.T) {
	svc, pub, db := setupListingsTest(t)
	uid := uuid.New()
	l := seedListing(t, db, uid, "ebay", "facebook")

	out, err := svc.Publish(context.Background(), uid, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusActive, out.Status)
	require.NotNil(t, out.EbayListingID)
	assert.Equal(t, "L-1", *out.EbayListingID)
	assert.Equal(t, domain.ItemStatusListed, out.Item.Status)
	assert.True(t, decimal.NewFromInt(30).Equal(pub.price), "falls back to the suggested price")

	_, err = svc.Publish(context.Background(), uid, l.ID)
	assert.ErrorIs(t, err, ErrAlreadyPublished)
	assert.Equal(t, 1, pub.calls)
}

func TestPublish_Guards(t *testing.T) {
	svc, pub, db := setupListingsTest(t)
	uid := uuid.New()
	fb := seedListing(t, db, uid, "facebook")
	_, err := svc.Publish(context.Background(), uid, fb.ID)
	assert.ErrorIs(t, err, ErrNotEbayListing)

	l := seedListing(t, db, uid, "ebay")
	pub.err = errors.New("publish offer: 500")
	_, err = svc.Publish(context.Background(), uid, l.ID)
	assert.Error(t, err)
	got, err := svc.Get(context.Background(), uid, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusDraft, got.Status)
	require.NotNil(t, got.EbayOfferID)
	assert.Equal(t, "O-1", *got.EbayOfferID)
}
