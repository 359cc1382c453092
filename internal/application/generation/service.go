package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"easyflip-backend/internal/application/items"
	"easyflip-backend/internal/application/photos"
	"easyflip-backend/internal/application/user"
	"easyflip-backend/internal/domain"
	"easyflip-backend/internal/infrastructure/database"
	"easyflip-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNoSKUs          = errors.New("Select at least one SKU group")
	ErrNoPlatforms     = errors.New("Select at least one platform")
	ErrInvalidSKU      = errors.New("Invalid SKU")
	ErrInvalidPlatform = errors.New("Invalid platform")
	ErrNoPhotos        = errors.New("no photos assigned to SKU")
	ErrRelinkFailed    = errors.New("failed to link photos to the new item")
)

// Request selects the SKU groups to turn into listings.
type Request struct {
	SKUs      []string
	Platforms []string
}

// Failure is one SKU that did not produce a listing.
type Failure struct {
	SKU   string `json:"sku"`
	Error string `json:"error"`
}

type Result struct {
	Succeeded int       `json:"succeeded"`
	Failed    []Failure `json:"failed"`
	Message   string    `json:"message"`
}

// Summary is the banner text for n generated listings.
func Summary(n int) string {
	if n == 1 {
		return "1 listing generated"
	}
	return fmt.Sprintf("%d listings generated", n)
}

type Service struct {
	DB         *gorm.DB
	Photos     *photos.Service
	Analyzer   Analyzer
	Jobs       *JobStore
	Metrics    *Metrics
	JobTimeout time.Duration
}

func (r Request) validate() (Request, error) {
	seen := map[string]bool{}
	var out Request
	for _, s := range r.SKUs {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		if !validation.IsValidSKU(s) {
			return out, fmt.Errorf("%w: %s", ErrInvalidSKU, s)
		}
		seen[s] = true
		out.SKUs = append(out.SKUs, s)
	}
	if len(out.SKUs) == 0 {
		return out, ErrNoSKUs
	}
	for _, p := range r.Platforms {
		if !domain.IsPlatform(p) {
			return out, fmt.Errorf("%w: %s", ErrInvalidPlatform, p)
		}
		out.Platforms = append(out.Platforms, p)
	}
	if len(out.Platforms) == 0 {
		return out, ErrNoPlatforms
	}
	return out, nil
}

// Start records a new job and runs it in the background, detached from ctx.
func (s *Service) Start(ctx context.Context, userID uuid.UUID, req Request) (*Job, error) {
	req, err := req.validate()
	if err != nil {
		return nil, err
	}
	job := &Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		State:     JobRunning,
		Total:     len(req.SKUs),
		CreatedAt: time.Now().UTC(),
	}
	for _, sku := range req.SKUs {
		job.setStatus(sku, "Queued")
	}
	if err := s.Jobs.Save(ctx, job); err != nil {
		return nil, err
	}
	snapshot := *job
	snapshot.Statuses = append([]SKUStatus(nil), job.Statuses...)
	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), s.JobTimeout)
		defer cancel()
		s.Run(runCtx, job, req)
	}()
	return &snapshot, nil
}

// Run processes the groups strictly one after another. A failed group is
// recorded and the loop moves on; nothing is retried.
func (s *Service) Run(ctx context.Context, job *Job, req Request) *Result {
	res := &Result{Failed: []Failure{}}
	n := len(req.SKUs)
	for i, sku := range req.SKUs {
		job.setStatus(sku, fmt.Sprintf("Processing %d/%d", i+1, n))
		s.persist(ctx, job)

		start := time.Now()
		err := ctx.Err()
		if err == nil {
			err = s.generateRecovered(ctx, job.ID, job.UserID, sku, req.Platforms)
		}
		if s.Metrics != nil {
			s.Metrics.Duration.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			log.Warn().Err(err).Str("job_id", job.ID).Str("sku", sku).Msg("generation: sku failed")
			res.Failed = append(res.Failed, Failure{SKU: sku, Error: err.Error()})
			job.setStatus(sku, "Error: "+err.Error())
			s.count("failed")
		} else {
			res.Succeeded++
			job.setStatus(sku, "Completed")
			s.count("succeeded")
		}
		s.persist(ctx, job)
	}
	res.Message = Summary(res.Succeeded)
	job.State = JobCompleted
	job.Result = res
	// The job context may be done by now; the final state still has to land.
	s.persist(context.Background(), job)
	log.Info().Str("job_id", job.ID).Int("succeeded", res.Succeeded).Int("failed", len(res.Failed)).Msg("generation: job finished")
	return res
}

func (s *Service) count(outcome string) {
	if s.Metrics != nil {
		s.Metrics.Items.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) persist(ctx context.Context, job *Job) {
	if s.Jobs == nil {
		return
	}
	if err := s.Jobs.Save(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("generation: failed to save progress")
	}
}

// GetJob returns a job owned by userID.
func (s *Service) GetJob(ctx context.Context, userID uuid.UUID, id string) (*Job, error) {
	return s.Jobs.Get(ctx, userID, id)
}

// generateRecovered turns a panic in one group into that group's failure so
// the job still reaches its completed state.
func (s *Service) generateRecovered(ctx context.Context, jobID string, userID uuid.UUID, sku string, platforms []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job_id", jobID).Str("sku", sku).Interface("panic", r).Msg("generation: recovered from panic")
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return s.generateOne(ctx, userID, sku, platforms)
}

func (s *Service) generateOne(ctx context.Context, userID uuid.UUID, sku string, platforms []string) error {
	group, err := s.Photos.GroupPhotos(ctx, userID, sku)
	if err != nil {
		return err
	}
	if len(group) == 0 {
		return ErrNoPhotos
	}
	primary := group[0]

	analysis, err := s.Analyzer.Analyze(ctx, primary.ImageURL)
	if err != nil {
		return err
	}
	n := Normalize(analysis, sku)
	raw, err := json.Marshal(analysis)
	if err != nil {
		return err
	}

	urls := make([]string, len(group))
	ids := make([]uuid.UUID, len(group))
	for i, p := range group {
		urls[i] = p.ImageURL
		ids[i] = p.ID
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item := &domain.Item{
			UserID:         userID,
			SKU:            sku,
			Title:          n.Title,
			Description:    n.Description,
			Category:       n.Category,
			Condition:      n.Condition,
			Brand:          n.Brand,
			Size:           n.Size,
			Color:          n.Color,
			Model:          n.Model,
			Price:          n.SuggestedPrice,
			SuggestedPrice: n.SuggestedPrice,
			PriceRangeMin:  n.PriceMin,
			PriceRangeMax:  n.PriceMax,
			Images:         urls,
			AIAnalysis:     datatypes.JSON(raw),
			Status:         domain.ItemStatusDraft,
		}
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		if err := tx.Create(&domain.PhotoAnalysis{
			ItemID:     item.ID,
			PhotoID:    &primary.ID,
			Analysis:   datatypes.JSON(raw),
			Confidence: n.Confidence,
		}).Error; err != nil {
			return err
		}
		relink := tx.Model(&domain.UploadedPhoto{}).
			Where("user_id = ? AND id IN ?", userID, ids).
			Updates(map[string]interface{}{"item_id": item.ID, "status": domain.PhotoStatusProcessed})
		if relink.Error != nil {
			return fmt.Errorf("%w: %v", ErrRelinkFailed, relink.Error)
		}
		if relink.RowsAffected != int64(len(ids)) {
			return ErrRelinkFailed
		}
		if err := tx.Create(&domain.Listing{
			ItemID:    item.ID,
			UserID:    userID,
			Platforms: platforms,
			Price:     n.SuggestedPrice,
			Status:    domain.ListingStatusDraft,
		}).Error; err != nil {
			return err
		}
		return user.AdjustListingsUsed(tx, userID, 1)
	})
	if database.IsUniqueViolation(err) {
		return items.ErrDuplicateSKU
	}
	return err
}
