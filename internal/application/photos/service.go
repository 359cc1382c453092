package photos

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"easyflip-backend/internal/domain"
	"easyflip-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrFileNameRequired = errors.New("file_name is required")
	ErrNoPhotos         = errors.New("No photos provided")
	ErrInvalidSKU       = errors.New("Invalid SKU")
	ErrPhotoNotFound    = errors.New("Photo not found")
	ErrPhotoProcessed   = errors.New("Photo already belongs to a generated item")
	ErrInvalidImageURL  = errors.New("image_url is required")
)

// Service manages uploaded photos and their grouping by SKU.
type Service struct {
	DB          *gorm.DB
	Storage     StorageSigner
	SupabaseURL string
	Bucket      string
}

// UploadURL is the signed-upload handshake returned to the browser.
type UploadURL struct {
	UploadURL string `json:"uploadUrl"`
	PublicURL string `json:"publicUrl"`
	Path      string `json:"path"`
}

// CreateUploadURL signs an upload slot under the user's folder.
func (s *Service) CreateUploadURL(ctx context.Context, userID uuid.UUID, fileName string) (*UploadURL, error) {
	name := path.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == "/" {
		return nil, ErrFileNameRequired
	}
	objectPath := fmt.Sprintf("%s/%d-%s", userID, time.Now().UnixMilli(), name)
	signed, err := s.Storage.CreateSignedUploadURL(ctx, s.Bucket, objectPath)
	if err != nil {
		return nil, err
	}
	return &UploadURL{
		UploadURL: signed,
		PublicURL: PublicURL(s.SupabaseURL, s.Bucket, objectPath),
		Path:      objectPath,
	}, nil
}

// NewPhoto describes one uploaded file being registered.
type NewPhoto struct {
	ImageURL string
	Filename string
}

// RegisterPhotos records uploads in order, continuing after the user's last upload_order.
func (s *Service) RegisterPhotos(ctx context.Context, userID uuid.UUID, in []NewPhoto) ([]domain.UploadedPhoto, error) {
	if len(in) == 0 {
		return nil, ErrNoPhotos
	}
	var out []domain.UploadedPhoto
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		if err := tx.Model(&domain.UploadedPhoto{}).Where("user_id = ?", userID).
			Select("COALESCE(MAX(upload_order), -1)").Row().Scan(&last); err != nil {
			return err
		}
		next := last + 1
		for i, p := range in {
			if strings.TrimSpace(p.ImageURL) == "" {
				return ErrInvalidImageURL
			}
			out = append(out, domain.UploadedPhoto{
				UserID:      userID,
				ImageURL:    strings.TrimSpace(p.ImageURL),
				Filename:    p.Filename,
				UploadOrder: next + i,
				Status:      domain.PhotoStatusPending,
			})
		}
		return tx.Create(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPhotos returns the user's photos in upload order, optionally filtered by status.
func (s *Service) ListPhotos(ctx context.Context, userID uuid.UUID, status string) ([]domain.UploadedPhoto, error) {
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var photos []domain.UploadedPhoto
	if err := q.Order("upload_order ASC").Find(&photos).Error; err != nil {
		return nil, err
	}
	return photos, nil
}

// AssignSKU groups photos under sku. Processed photos cannot be regrouped.
func (s *Service) AssignSKU(ctx context.Context, userID uuid.UUID, photoIDs []uuid.UUID, sku string) (int64, error) {
	sku = strings.TrimSpace(sku)
	if !validation.IsValidSKU(sku) {
		return 0, ErrInvalidSKU
	}
	return s.setGroup(ctx, userID, photoIDs, map[string]interface{}{
		"assigned_sku": sku,
		"status":       domain.PhotoStatusAssigned,
	})
}

// UnassignPhotos returns photos to the pending pool.
func (s *Service) UnassignPhotos(ctx context.Context, userID uuid.UUID, photoIDs []uuid.UUID) (int64, error) {
	return s.setGroup(ctx, userID, photoIDs, map[string]interface{}{
		"assigned_sku": nil,
		"status":       domain.PhotoStatusPending,
	})
}

func (s *Service) setGroup(ctx context.Context, userID uuid.UUID, photoIDs []uuid.UUID, upd map[string]interface{}) (int64, error) {
	if len(photoIDs) == 0 {
		return 0, ErrNoPhotos
	}
	var affected int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var processed int64
		if err := tx.Model(&domain.UploadedPhoto{}).
			Where("user_id = ? AND id IN ? AND status = ?", userID, photoIDs, domain.PhotoStatusProcessed).
			Count(&processed).Error; err != nil {
			return err
		}
		if processed > 0 {
			return ErrPhotoProcessed
		}
		res := tx.Model(&domain.UploadedPhoto{}).Where("user_id = ? AND id IN ?", userID, photoIDs).Updates(upd)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPhotoNotFound
		}
		affected = res.RowsAffected
		return nil
	})
	return affected, err
}

// ListSKUGroups returns the not-yet-generated groups, sorted by SKU, photos in upload order.
func (s *Service) ListSKUGroups(ctx context.Context, userID uuid.UUID) ([]domain.SKUGroup, error) {
	var photos []domain.UploadedPhoto
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND assigned_sku IS NOT NULL AND status = ?", userID, domain.PhotoStatusAssigned).
		Order("upload_order ASC").Find(&photos).Error; err != nil {
		return nil, err
	}
	return GroupBySKU(photos), nil
}

// GroupPhotos returns the photos of one SKU group in upload order (primary photo first).
func (s *Service) GroupPhotos(ctx context.Context, userID uuid.UUID, sku string) ([]domain.UploadedPhoto, error) {
	var photos []domain.UploadedPhoto
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND assigned_sku = ? AND status <> ?", userID, sku, domain.PhotoStatusProcessed).
		Order("upload_order ASC").Find(&photos).Error
	return photos, err
}

// DeletePhoto removes an unprocessed photo row.
func (s *Service) DeletePhoto(ctx context.Context, userID, photoID uuid.UUID) error {
	var p domain.UploadedPhoto
	if err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", photoID, userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPhotoNotFound
		}
		return err
	}
	if p.Status == domain.PhotoStatusProcessed {
		return ErrPhotoProcessed
	}
	return s.DB.WithContext(ctx).Delete(&p).Error
}

// GroupBySKU groups photos by AssignedSKU; photos without one are skipped.
func GroupBySKU(photos []domain.UploadedPhoto) []domain.SKUGroup {
	idx := map[string]int{}
	var groups []domain.SKUGroup
	for _, p := range photos {
		if p.AssignedSKU == nil || *p.AssignedSKU == "" {
			continue
		}
		i, ok := idx[*p.AssignedSKU]
		if !ok {
			i = len(groups)
			idx[*p.AssignedSKU] = i
			groups = append(groups, domain.SKUGroup{SKU: *p.AssignedSKU})
		}
		groups[i].Photos = append(groups[i].Photos, p)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].SKU < groups[b].SKU })
	for _, g := range groups {
		sort.SliceStable(g.Photos, func(a, b int) bool { return g.Photos[a].UploadOrder < g.Photos[b].UploadOrder })
	}
	return groups
}
