package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	gensvc "easyflip-backend/internal/application/generation"
	"easyflip-backend/internal/application/photos"
	"easyflip-backend/internal/domain"
	"easyflip-backend/internal/infrastructure/database"
	"easyflip-backend/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(ctx context.Context, imageURL string) (*gensvc.Analysis, error) {
	return &gensvc.Analysis{SuggestedTitle: "Jacket", Condition: "good", SuggestedPrice: 30, Confidence: 0.8}, nil
}

func setupGenerateTest(t *testing.T) (*fiber.App, *photos.Service, uuid.UUID) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// The job runs on its own goroutine; one connection keeps it on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	uid := uuid.New()
	require.NoError(t, db.Create(&domain.User{ID: uid, Email: "u@test.com"}).Error)
	ps := &photos.Service{DB: db}
	h := &Handlers{Service: &gensvc.Service{
		DB:         db,
		Photos:     ps,
		Analyzer:   stubAnalyzer{},
		Jobs:       &gensvc.JobStore{Rdb: rdb},
		Metrics:    gensvc.NewMetrics(nil),
		JobTimeout: time.Minute,
	}}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		middleware.SetUser(c, &middleware.AuthUser{ID: uid})
		return c.Next()
	})
	app.Post("/generate", h.Start)
	app.Get("/generate/jobs/:job_id", h.Job)
	return app, ps, uid
}

func send(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestStart_AcceptedThenCompletes(t *testing.T) {
	app, ps, uid := setupGenerateTest(t)
	created, err := ps.RegisterPhotos(context.Background(), uid, []photos.NewPhoto{{ImageURL: "https://cdn/a.jpg"}})
	require.NoError(t, err)
	_, err = ps.AssignSKU(context.Background(), uid, []uuid.UUID{created[0].ID}, "JKT-1")
	require.NoError(t, err)

	code, out := send(t, app, "POST", "/generate", map[string]interface{}{
		"skus":      []string{"JKT-1", "EMPTY-1"},
		"platforms": []string{"ebay"},
	})
	require.Equal(t, 202, code)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["total"])
	jobID := data["job_id"].(string)

	var job map[string]interface{}
	require.Eventually(t, func() bool {
		code, out := send(t, app, "GET", "/generate/jobs/"+jobID, nil)
		if code != 200 {
			return false
		}
		job = out["data"].(map[string]interface{})
		return job["result"] != nil
	}, 5*time.Second, 20*time.Millisecond)

	res := job["result"].(map[string]interface{})
	assert.Equal(t, "1 listing generated", res["message"])
	failed := res["failed"].([]interface{})
	require.Len(t, failed, 1)
	assert.Equal(t, "EMPTY-1", failed[0].(map[string]interface{})["sku"])
}

func TestStart_Validation(t *testing.T) {
	app, _, _ := setupGenerateTest(t)

	code, _ := send(t, app, "POST", "/generate", map[string]interface{}{"skus": []string{}, "platforms": []string{"ebay"}})
	assert.Equal(t, 400, code)

	code, _ = send(t, app, "POST", "/generate", map[string]interface{}{"skus": []string{"A-1"}, "platforms": []string{"craigslist"}})
	assert.Equal(t, 400, code)

	code, _ = send(t, app, "POST", "/generate", map[string]interface{}{"skus": []string{"A-1"}})
	assert.Equal(t, 400, code)
}

func TestJob_NotFound(t *testing.T) {
	app, _, _ := setupGenerateTest(t)
	code, out := send(t, app, "GET", "/generate/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, 404, code)
	assert.Equal(t, "error", out["status"])
}
