package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, secret string, sub string, exp time.Time) string {
	t.Helper()
	claims := SupabaseClaims{
		Email: "seller@example.com",
		Role:  "authenticated",
		UserMetadata: map[string]interface{}{
			"full_name":  "Sam Seller",
			"avatar_url": "https://example.com/a.png",
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func authApp(v *TokenVerifier) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/me", RequireAuth(v), func(c *fiber.Ctx) error {
		u := GetUser(c)
		return c.JSON(fiber.Map{"id": u.ID.String(), "name": u.Name, "email": u.Email})
	})
	return app
}

func TestRequireAuth_Valid(t *testing.T) {
	id := uuid.New()
	app := authApp(&TokenVerifier{Secret: testSecret})
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, id.String(), time.Now().Add(time.Hour)))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, id.String(), out["id"])
	assert.Equal(t, "Sam Seller", out["name"])
	assert.Equal(t, "seller@example.com", out["email"])
}

func TestRequireAuth_Rejects(t *testing.T) {
	app := authApp(&TokenVerifier{Secret: testSecret})
	cases := map[string]string{
		"missing":   "",
		"no bearer": "Token abc",
		"expired":   "Bearer " + signToken(t, testSecret, uuid.NewString(), time.Now().Add(-time.Minute)),
		"wrong key": "Bearer " + signToken(t, "another-secret-another-secret-another", uuid.NewString(), time.Now().Add(time.Hour)),
		"bad sub":   "Bearer " + signToken(t, testSecret, "not-a-uuid", time.Now().Add(time.Hour)),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, 401, resp.StatusCode)
		})
	}
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{AllowedOrigins: []string{"https://easyflip.ai/"}, AllowLocalhost: true}))
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Origin", "https://easyflip.ai")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "https://easyflip.ai", resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("OPTIONS", "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)

	req = httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestTracing_KeepsIncomingID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendString(GetTraceID(c)) })

	id := uuid.NewString()
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Trace-Id", id)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, id, resp.Header.Get("X-Trace-Id"))

	resp, err = app.Test(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)
	_, err = uuid.Parse(resp.Header.Get("X-Trace-Id"))
	assert.NoError(t, err)
}

func TestHealthMarker_CountsAndLogsErrors(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(HealthMarker(rdb))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.NewError(500, "boom") })
	app.Get("/health/json", func(c *fiber.Ctx) error { return c.SendString("{}") })

	for _, p := range []string{"/ok", "/boom", "/health/json"} {
		_, err := app.Test(httptest.NewRequest("GET", p, nil))
		require.NoError(t, err)
	}
	ctx := context.Background()
	total, _ := rdb.Get(ctx, KeyReqTotal).Int()
	errs, _ := rdb.Get(ctx, KeyReqErrors).Int()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, errs)
	entries, err := rdb.LRange(ctx, KeyErrorLog, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "/boom")
}
