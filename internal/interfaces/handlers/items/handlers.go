package items

import (
	"errors"

	itemsvc "easyflip-backend/internal/application/items"
	"easyflip-backend/internal/middleware"
	"easyflip-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *itemsvc.Service
}

// List GET /api/v1/items?status=&q=&limit=&offset=
func (h *Handlers) List(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	f := itemsvc.ListFilter{
		Status: c.Query("status"),
		Search: c.Query("q"),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if f.Offset < 0 {
		return response.Error(c, "offset must not be negative", fiber.StatusBadRequest, nil)
	}
	out, total, err := h.Service.List(c.Context(), caller.ID, f)
	if err != nil {
		return MapError(c, err)
	}
	return response.Success(c, "Items fetched", fiber.Map{"items": out}, fiber.Map{"total": total, "limit": f.Limit, "offset": f.Offset})
}

// Get GET /api/v1/items/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid item ID", fiber.StatusBadRequest, nil)
	}
	it, err := h.Service.Get(c.Context(), caller.ID, id)
	if err != nil {
		return MapError(c, err)
	}
	return response.Success(c, "Item fetched", fiber.Map{"item": it}, nil)
}

type CreateRequest struct {
	SKU         string          `json:"sku"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Condition   string          `json:"condition"`
	Brand       string          `json:"brand"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Model       string          `json:"model"`
	Price       decimal.Decimal `json:"price"`
	Images      []string        `json:"images"`
}

// Create POST /api/v1/items
func (h *Handlers) Create(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	it, err := h.Service.Create(c.Context(), caller.ID, itemsvc.CreateItemInput{
		SKU:         req.SKU,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Condition:   req.Condition,
		Brand:       req.Brand,
		Size:        req.Size,
		Color:       req.Color,
		Model:       req.Model,
		Price:       req.Price,
		Images:      req.Images,
	})
	if err != nil {
		return MapError(c, err)
	}
	return response.SuccessCreated(c, "Item created", fiber.Map{"item": it}, nil)
}

// UpdateRequest is shared with the listing edit endpoint.
type UpdateRequest struct {
	SKU         *string          `json:"sku"`
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Condition   *string          `json:"condition"`
	Brand       *string          `json:"brand"`
	Size        *string          `json:"size"`
	Color       *string          `json:"color"`
	Model       *string          `json:"model"`
	Price       *decimal.Decimal `json:"price"`
	Status      *string          `json:"status"`
}

func (r UpdateRequest) Input() itemsvc.UpdateItemInput {
	return itemsvc.UpdateItemInput{
		SKU:         r.SKU,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Condition:   r.Condition,
		Brand:       r.Brand,
		Size:        r.Size,
		Color:       r.Color,
		Model:       r.Model,
		Price:       r.Price,
		Status:      r.Status,
	}
}

// Update PATCH /api/v1/items/:id
func (h *Handlers) Update(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid item ID", fiber.StatusBadRequest, nil)
	}
	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	it, err := h.Service.Update(c.Context(), caller.ID, id, req.Input())
	if err != nil {
		return MapError(c, err)
	}
	return response.Success(c, "Item updated", fiber.Map{"item": it}, nil)
}

// Delete DELETE /api/v1/items/:id removes the item with its listings,
// analyses and pricing rows; its photos return to the pending pool.
func (h *Handlers) Delete(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid item ID", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.Delete(c.Context(), caller.ID, id); err != nil {
		return MapError(c, err)
	}
	return response.Success(c, "Item deleted", nil, nil)
}

// MapError turns item service errors into responses.
func MapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, itemsvc.ErrInvalidSKU), errors.Is(err, itemsvc.ErrTitleRequired),
		errors.Is(err, itemsvc.ErrInvalidCondition), errors.Is(err, itemsvc.ErrInvalidStatus),
		errors.Is(err, itemsvc.ErrInvalidPrice), errors.Is(err, itemsvc.ErrNoUpdateFields):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, itemsvc.ErrItemNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, itemsvc.ErrDuplicateSKU):
		return response.Error(c, itemsvc.ErrDuplicateSKU.Error(), fiber.StatusConflict, nil)
	case errors.Is(err, itemsvc.ErrItemInUse):
		log.Warn().Err(err).Str("path", c.Path()).Msg("item delete blocked by reference")
		return response.Error(c, itemsvc.ErrItemInUse.Error(), fiber.StatusConflict, nil)
	case errors.Is(err, itemsvc.ErrForbidden):
		log.Warn().Err(err).Str("path", c.Path()).Msg("item write denied by row policy")
		return response.Error(c, itemsvc.ErrForbidden.Error(), fiber.StatusForbidden, nil)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("items handler failed")
	return response.Error(c, "Internal server error", fiber.StatusInternalServerError, nil)
}
