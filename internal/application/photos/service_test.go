package photos

import (
	"context"
	"errors"
	"strings"
	"testing"

	"easyflip-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSigner struct {
	lastBucket string
	lastPath   string
	err        error
}

func (f *fakeSigner) CreateSignedUploadURL(ctx context.Context, bucket, path string) (string, error) {
	f.lastBucket = bucket
	f.lastPath = path
	if f.err != nil {
		return "", f.err
	}
	return "https://example.com/upload", nil
}

func setupPhotosTest(t *testing.T) (*Service, *fakeSigner) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.UploadedPhoto{}))
	signer := &fakeSigner{}
	return &Service{DB: db, Storage: signer, SupabaseURL: "https://p.supabase.co", Bucket: "item-photos"}, signer
}

func TestCreateUploadURL(t *testing.T) {
	svc, signer := setupPhotosTest(t)
	uid := uuid.New()

	res, err := svc.CreateUploadURL(context.Background(), uid, "../shoe.jpg")
	require.NoError(t, err)
	assert.Equal(t, "item-photos", signer.lastBucket)
	assert.True(t, strings.HasPrefix(signer.lastPath, uid.String()+"/"))
	assert.True(t, strings.HasSuffix(signer.lastPath, "-shoe.jpg"))
	assert.Equal(t, "https://example.com/upload", res.UploadURL)
	assert.Contains(t, res.PublicURL, "/storage/v1/object/public/item-photos/"+uid.String())

	_, err = svc.CreateUploadURL(context.Background(), uid, "  ")
	assert.ErrorIs(t, err, ErrFileNameRequired)

	signer.err = errors.New("down")
	_, err = svc.CreateUploadURL(context.Background(), uid, "a.jpg")
	assert.Error(t, err)
}

func TestRegisterPhotos_ContinuesUploadOrder(t *testing.T) {
	svc, _ := setupPhotosTest(t)
	ctx := context.Background()
	uid := uuid.New()

	first, err := svc.RegisterPhotos(ctx, uid, []NewPhoto{{ImageURL: "https://x/1.jpg"}, {ImageURL: "https://x/2.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, 0, first[0].UploadOrder)
	assert.Equal(t, 1, first[1].UploadOrder)

	more, err := svc.RegisterPhotos(ctx, uid, []NewPhoto{{ImageURL: "https://x/3.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, 2, more[0].UploadOrder)
	assert.Equal(t, domain.PhotoStatusPending, more[0].Status)

	_, err = svc.RegisterPhotos(ctx, uid, nil)
	assert.ErrorIs(t, err, ErrNoPhotos)
	_, err = svc.RegisterPhotos(ctx, uid, []NewPhoto{{ImageURL: ""}})
	assert.ErrorIs(t, err, ErrInvalidImageURL)
}

func TestAssignSKU_GroupsAndOrder(t *testing.T) {
	svc, _ := setupPhotosTest(t)
	ctx := context.Background()
	uid := uuid.New()
	photos, err := svc.RegisterPhotos(ctx, uid, []NewPhoto{
		{ImageURL: "https://x/1.jpg"}, {ImageURL: "https://x/2.jpg"}, {ImageURL: "https://x/3.jpg"},
	})
	require.NoError(t, err)

	n, err := svc.AssignSKU(ctx, uid, []uuid.UUID{photos[2].ID, photos[0].ID}, "SKU-B")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	_, err = svc.AssignSKU(ctx, uid, []uuid.UUID{photos[1].ID}, "SKU-A")
	require.NoError(t, err)

	groups, err := svc.ListSKUGroups(ctx, uid)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "SKU-A", groups[0].SKU)
	assert.Equal(t, "SKU-B", groups[1].SKU)
	require.Len(t, groups[1].Photos, 2)
	assert.Equal(t, photos[0].ID, groups[1].Photos[0].ID)

	_, err = svc.AssignSKU(ctx, uid, []uuid.UUID{photos[0].ID}, "bad sku!")
	assert.ErrorIs(t, err, ErrInvalidSKU)

	_, err = svc.AssignSKU(ctx, uuid.New(), []uuid.UUID{photos[0].ID}, "SKU-C")
	assert.ErrorIs(t, err, ErrPhotoNotFound)
}

func TestAssignSKU_RejectsProcessed(t *testing.T) {
	svc, _ := setupPhotosTest(t)
	ctx := context.Background()
	uid := uuid.New()
	photos, err := svc.RegisterPhotos(ctx, uid, []NewPhoto{{ImageURL: "https://x/1.jpg"}})
	require.NoError(t, err)
	require.NoError(t, svc.DB.Model(&domain.UploadedPhoto{}).Where("id = ?", photos[0].ID).
		Update("status", domain.PhotoStatusProcessed).Error)

	_, err = svc.AssignSKU(ctx, uid, []uuid.UUID{photos[0].ID}, "SKU-1")
	assert.ErrorIs(t, err, ErrPhotoProcessed)
	assert.ErrorIs(t, svc.DeletePhoto(ctx, uid, photos[0].ID), ErrPhotoProcessed)
}

func TestUnassignAndDelete(t *testing.T) {
	svc, _ := setupPhotosTest(t)
	ctx := context.Background()
	uid := uuid.New()
	photos, err := svc.RegisterPhotos(ctx, uid, []NewPhoto{{ImageURL: "https://x/1.jpg"}})
	require.NoError(t, err)
	_, err = svc.AssignSKU(ctx, uid, []uuid.UUID{photos[0].ID}, "SKU-1")
	require.NoError(t, err)

	_, err = svc.UnassignPhotos(ctx, uid, []uuid.UUID{photos[0].ID})
	require.NoError(t, err)
	pending, err := svc.ListPhotos(ctx, uid, domain.PhotoStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Nil(t, pending[0].AssignedSKU)

	require.NoError(t, svc.DeletePhoto(ctx, uid, photos[0].ID))
	assert.ErrorIs(t, svc.DeletePhoto(ctx, uid, photos[0].ID), ErrPhotoNotFound)
}
