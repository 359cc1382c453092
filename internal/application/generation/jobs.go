package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix = "generation:job:"
	jobTTL       = 24 * time.Hour

	JobRunning   = "running"
	JobCompleted = "completed"
)

var ErrJobNotFound = errors.New("Generation job not found")

// SKUStatus is the progress line shown next to one SKU group.
type SKUStatus struct {
	SKU    string `json:"sku"`
	Status string `json:"status"`
}

// Job is the stored progress and outcome of one generation request.
type Job struct {
	ID        string      `json:"job_id"`
	UserID    uuid.UUID   `json:"user_id"`
	State     string      `json:"state"`
	Total     int         `json:"total"`
	Statuses  []SKUStatus `json:"statuses"`
	Result    *Result     `json:"result,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (j *Job) setStatus(sku, status string) {
	for i := range j.Statuses {
		if j.Statuses[i].SKU == sku {
			j.Statuses[i].Status = status
			return
		}
	}
	j.Statuses = append(j.Statuses, SKUStatus{SKU: sku, Status: status})
}

// JobStore keeps jobs in Redis. Each job has a single writer, its own goroutine.
type JobStore struct {
	Rdb *redis.Client
}

func jobKey(id string) string { return jobKeyPrefix + id }

func (s *JobStore) Save(ctx context.Context, j *Job) error {
	j.UpdatedAt = time.Now().UTC()
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	if err := s.Rdb.Set(ctx, jobKey(j.ID), b, jobTTL).Err(); err != nil {
		return fmt.Errorf("save generation job: %w", err)
	}
	return nil
}

// Get returns the job only to its owner.
func (s *JobStore) Get(ctx context.Context, userID uuid.UUID, id string) (*Job, error) {
	raw, err := s.Rdb.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var j Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, err
	}
	if j.UserID != userID {
		return nil, ErrJobNotFound
	}
	return &j, nil
}
