package listings

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"easyflip-backend/internal/application/ebay"
	listsvc "easyflip-backend/internal/application/listings"
	"easyflip-backend/internal/domain"
	"easyflip-backend/internal/infrastructure/database"
	"easyflip-backend/internal/middleware"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubPublisher struct {
	res *ebay.PublishResult
	err error
}

func (p *stubPublisher) PublishItem(ctx context.Context, userID uuid.UUID, item *domain.Item, price decimal.Decimal) (*ebay.PublishResult, error) {
	return p.res, p.err
}

func setupListingsTest(t *testing.T) (*fiber.App, *gorm.DB, *stubPublisher, uuid.UUID) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	pub := &stubPublisher{res: &ebay.PublishResult{OfferID: "O-1", ListingID: "L-1"}}
	h := &Handlers{Service: &listsvc.Service{DB: db, Publisher: pub}}
	uid := uuid.New()

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		middleware.SetUser(c, &middleware.AuthUser{ID: uid})
		return c.Next()
	})
	app.Get("/listings", h.List)
	app.Get("/listings/:id", h.Get)
	app.Patch("/listings/:id", h.Update)
	app.Delete("/listings/:id", h.Delete)
	app.Post("/listings/:id/publish", h.Publish)
	return app, db, pub, uid
}

func seed(t *testing.T, db *gorm.DB, uid uuid.UUID, platforms ...string) *domain.Listing {
	it := &domain.Item{UserID: uid, SKU: "SKU-" + uuid.NewString()[:6], Title: "Camera", Price: decimal.NewFromInt(120)}
	require.NoError(t, db.Create(it).Error)
	l := &domain.Listing{ItemID: it.ID, UserID: uid, Platforms: platforms, Price: decimal.NewFromInt(120)}
	require.NoError(t, db.Create(l).Error)
	return l
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

func TestListAndGet(t *testing.T) {
	app, db, _, uid := setupListingsTest(t)
	l := seed(t, db, uid, "ebay")
	seed(t, db, uuid.New(), "ebay")

	code, out := send(t, app, "GET", "/listings", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Len(t, out["data"].(map[string]interface{})["listings"], 1)

	code, _ = send(t, app, "GET", "/listings/"+l.ID.String(), nil)
	assert.Equal(t, fiber.StatusOK, code)
	code, _ = send(t, app, "GET", "/listings/"+uuid.NewString(), nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestUpdate_WithItemFields(t *testing.T) {
	app, db, _, uid := setupListingsTest(t)
	l := seed(t, db, uid, "ebay")

	code, out := send(t, app, "PATCH", "/listings/"+l.ID.String(), map[string]interface{}{
		"platforms": []string{"ebay", "poshmark"},
		"price":     "99.99",
		"item":      map[string]interface{}{"title": "Film camera"},
	})
	require.Equal(t, fiber.StatusOK, code)
	listing := out["data"].(map[string]interface{})["listing"].(map[string]interface{})
	assert.Equal(t, "99.99", listing["price"])
	assert.Equal(t, "Film camera", listing["item"].(map[string]interface{})["title"])

	code, _ = send(t, app, "PATCH", "/listings/"+l.ID.String(), map[string]interface{}{"platforms": []string{"myspace"}})
	assert.Equal(t, fiber.StatusBadRequest, code)
	code, _ = send(t, app, "PATCH", "/listings/"+l.ID.String(), map[string]interface{}{"item": map[string]interface{}{"condition": "mint"}})
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestDelete(t *testing.T) {
	app, db, _, uid := setupListingsTest(t)
	l := seed(t, db, uid, "ebay")
	code, _ := send(t, app, "DELETE", "/listings/"+l.ID.String(), nil)
	assert.Equal(t, fiber.StatusOK, code)
	code, _ = send(t, app, "DELETE", "/listings/"+l.ID.String(), nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestPublish(t *testing.T) {
	app, db, pub, uid := setupListingsTest(t)
	l := seed(t, db, uid, "ebay")

	code, out := send(t, app, "POST", "/listings/"+l.ID.String()+"/publish", nil)
	require.Equal(t, fiber.StatusOK, code)
	listing := out["data"].(map[string]interface{})["listing"].(map[string]interface{})
	assert.Equal(t, "active", listing["status"])

	code, _ = send(t, app, "POST", "/listings/"+l.ID.String()+"/publish", nil)
	assert.Equal(t, fiber.StatusConflict, code)

	other := seed(t, db, uid, "ebay")
	pub.err = ebay.ErrMissingScope
	code, out = send(t, app, "POST", "/listings/"+other.ID.String()+"/publish", nil)
	assert.Equal(t, fiber.StatusForbidden, code)
	assert.Equal(t, "reauth_ebay", out["error"].(map[string]interface{})["details"].(map[string]interface{})["action"])

	pub.err = &ebay.APIError{Status: 400, Body: "bad"}
	pub.res = nil
	code, _ = send(t, app, "POST", "/listings/"+other.ID.String()+"/publish", nil)
	assert.Equal(t, fiber.StatusBadGateway, code)

	poshOnly := seed(t, db, uid, "poshmark")
	code, _ = send(t, app, "POST", "/listings/"+poshOnly.ID.String()+"/publish", nil)
	assert.Equal(t, fiber.StatusBadRequest, code)
}
