package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	healthsvc "easyflip-backend/internal/application/health"
	"easyflip-backend/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okDB struct{}

func (okDB) PingContext(context.Context) error { return nil }

func setupHealthHandlers(t *testing.T) (*fiber.App, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	h := &Handlers{Service: &healthsvc.Service{Rdb: rdb, DB: okDB{}}, HealthAdminKey: "admin"}
	app := fiber.New()
	app.Get("/health/json", h.JSON)
	app.Get("/health/errors", h.Errors)
	app.Get("/health/reset", h.Reset)
	return app, rdb
}

func getJSON(t *testing.T, app *fiber.App, path string, out interface{}) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestJSON_ReportsService(t *testing.T) {
	app, _ := setupHealthHandlers(t)
	var out map[string]interface{}
	code := getJSON(t, app, "/health/json", &out)
	assert.Equal(t, 200, code)
	assert.Equal(t, "easyflip-api", out["service"])
	assert.Equal(t, "ok", out["status"])
	deps := out["dependencies"].(map[string]interface{})
	assert.Equal(t, "connected", deps["redis"].(map[string]interface{})["status"])
}

func TestErrors_ReturnsLog(t *testing.T) {
	app, rdb := setupHealthHandlers(t)
	require.NoError(t, rdb.LPush(context.Background(), middleware.KeyErrorLog, `{"path":"/api/v1/items","status":500}`).Err())

	var out []map[string]interface{}
	code := getJSON(t, app, "/health/errors", &out)
	assert.Equal(t, 200, code)
	require.Len(t, out, 1)
	assert.Equal(t, "/api/v1/items", out[0]["path"])
}

func TestReset_RequiresKey(t *testing.T) {
	app, rdb := setupHealthHandlers(t)
	ctx := context.Background()
	require.NoError(t, rdb.Set(ctx, middleware.KeyReqTotal, "9", 0).Err())

	var out map[string]interface{}
	assert.Equal(t, 403, getJSON(t, app, "/health/reset?key=wrong", &out))
	assert.Equal(t, 200, getJSON(t, app, "/health/reset?key=admin", &out))

	n, err := rdb.Exists(ctx, middleware.KeyReqTotal).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
