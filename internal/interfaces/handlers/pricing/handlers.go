package pricing

import (
	"errors"

	"easyflip-backend/internal/application/ebay"
	pricesvc "easyflip-backend/internal/application/pricing"
	"easyflip-backend/internal/middleware"
	"easyflip-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *pricesvc.Service
}

// Recommendations GET /api/v1/pricing/recommendations?status=
func (h *Handlers) Recommendations(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	recs, err := h.Service.Recommendations(c.Context(), caller.ID, c.Query("status"))
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Recommendations fetched", fiber.Map{"recommendations": recs}, fiber.Map{"count": len(recs)})
}

// Recommend POST /api/v1/pricing/items/:id/recommendation
func (h *Handlers) Recommend(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid item ID", fiber.StatusBadRequest, nil)
	}
	rec, err := h.Service.Recommend(c.Context(), caller.ID, id)
	if err != nil {
		return mapError(c, err)
	}
	return response.SuccessCreated(c, "Recommendation created", fiber.Map{"recommendation": rec}, nil)
}

// Apply POST /api/v1/pricing/recommendations/:id/apply
func (h *Handlers) Apply(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid recommendation ID", fiber.StatusBadRequest, nil)
	}
	rec, err := h.Service.Apply(c.Context(), caller.ID, id)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Recommendation applied", fiber.Map{"recommendation": rec}, nil)
}

// Dismiss POST /api/v1/pricing/recommendations/:id/dismiss
func (h *Handlers) Dismiss(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid recommendation ID", fiber.StatusBadRequest, nil)
	}
	rec, err := h.Service.Dismiss(c.Context(), caller.ID, id)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Recommendation dismissed", fiber.Map{"recommendation": rec}, nil)
}

// Performance GET /api/v1/pricing/performance
func (h *Handlers) Performance(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	sum, err := h.Service.Performance(c.Context(), caller.ID)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Performance summary", sum, nil)
}

type PerformanceRequest struct {
	Views      int              `json:"views"`
	Watchers   int              `json:"watchers"`
	Sold       bool             `json:"sold"`
	SoldPrice  *decimal.Decimal `json:"sold_price"`
	DaysListed int              `json:"days_listed"`
}

// RecordPerformance PUT /api/v1/pricing/items/:id/performance
func (h *Handlers) RecordPerformance(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid item ID", fiber.StatusBadRequest, nil)
	}
	var req PerformanceRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	row, err := h.Service.RecordPerformance(c.Context(), caller.ID, id, pricesvc.PerformanceInput{
		Views:      req.Views,
		Watchers:   req.Watchers,
		Sold:       req.Sold,
		SoldPrice:  req.SoldPrice,
		DaysListed: req.DaysListed,
	})
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Performance recorded", fiber.Map{"performance": row}, nil)
}

func mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pricesvc.ErrInvalidStatus), errors.Is(err, pricesvc.ErrInvalidPerformance),
		errors.Is(err, ebay.ErrEmptyQuery):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, pricesvc.ErrItemNotFound), errors.Is(err, pricesvc.ErrRecommendationNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, pricesvc.ErrRecommendationClosed):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	case errors.Is(err, pricesvc.ErrNoComparables):
		return response.Error(c, err.Error(), fiber.StatusUnprocessableEntity, nil)
	}
	var apiErr *ebay.APIError
	if errors.As(err, &apiErr) {
		log.Warn().Err(err).Str("path", c.Path()).Msg("comparables lookup failed")
		return response.Error(c, "eBay request failed", fiber.StatusBadGateway, fiber.Map{"ebay_status": apiErr.Status})
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("pricing handler failed")
	return response.Error(c, "Internal server error", fiber.StatusInternalServerError, nil)
}
