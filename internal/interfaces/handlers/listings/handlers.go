package listings

import (
	"errors"

	"easyflip-backend/internal/application/ebay"
	listsvc "easyflip-backend/internal/application/listings"
	itemhandlers "easyflip-backend/internal/interfaces/handlers/items"
	"easyflip-backend/internal/middleware"
	"easyflip-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *listsvc.Service
}

// List GET /api/v1/listings?status=
func (h *Handlers) List(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	out, err := h.Service.List(c.Context(), caller.ID, c.Query("status"))
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Listings fetched", fiber.Map{"listings": out}, fiber.Map{"count": len(out)})
}

// Get GET /api/v1/listings/:id
func (h *Handlers) Get(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid listing ID", fiber.StatusBadRequest, nil)
	}
	l, err := h.Service.Get(c.Context(), caller.ID, id)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Listing fetched", fiber.Map{"listing": l}, nil)
}

type UpdateRequest struct {
	Platforms []string                    `json:"platforms"`
	Price     *decimal.Decimal            `json:"price"`
	Status    *string                     `json:"status"`
	Item      *itemhandlers.UpdateRequest `json:"item"`
}

// Update PATCH /api/v1/listings/:id edits the listing and its item together.
func (h *Handlers) Update(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid listing ID", fiber.StatusBadRequest, nil)
	}
	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	in := listsvc.UpdateListingInput{Platforms: req.Platforms, Price: req.Price, Status: req.Status}
	if req.Item != nil {
		item := req.Item.Input()
		in.Item = &item
	}
	l, err := h.Service.Update(c.Context(), caller.ID, id, in)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Listing updated", fiber.Map{"listing": l}, nil)
}

// Delete DELETE /api/v1/listings/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid listing ID", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.Delete(c.Context(), caller.ID, id); err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Listing deleted", nil, nil)
}

// Publish POST /api/v1/listings/:id/publish
func (h *Handlers) Publish(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid listing ID", fiber.StatusBadRequest, nil)
	}
	l, err := h.Service.Publish(c.Context(), caller.ID, id)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Listing published to eBay", fiber.Map{"listing": l}, nil)
}

func mapError(c *fiber.Ctx, err error) error {
	var apiErr *ebay.APIError
	switch {
	case errors.Is(err, listsvc.ErrInvalidPlatform), errors.Is(err, listsvc.ErrNoPlatforms),
		errors.Is(err, listsvc.ErrInvalidPrice), errors.Is(err, listsvc.ErrInvalidStatus),
		errors.Is(err, listsvc.ErrNoUpdateFields), errors.Is(err, listsvc.ErrNotEbayListing):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, listsvc.ErrListingNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, listsvc.ErrAlreadyPublished):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	case errors.Is(err, ebay.ErrNotConnected):
		return response.Error(c, err.Error(), fiber.StatusConflict, fiber.Map{"action": "connect_ebay"})
	case errors.Is(err, ebay.ErrMissingScope):
		return response.Error(c, err.Error(), fiber.StatusForbidden, fiber.Map{"action": "reauth_ebay"})
	case errors.Is(err, ebay.ErrNoPolicies):
		return response.Error(c, err.Error(), fiber.StatusUnprocessableEntity, nil)
	case errors.As(err, &apiErr):
		log.Warn().Err(err).Str("path", c.Path()).Msg("ebay rejected publish")
		return response.Error(c, "eBay rejected the listing", fiber.StatusBadGateway, fiber.Map{"ebay_status": apiErr.Status})
	}
	return itemhandlers.MapError(c, err)
}
