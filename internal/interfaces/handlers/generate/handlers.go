package generate

import (
	"errors"

	gensvc "easyflip-backend/internal/application/generation"
	"easyflip-backend/internal/middleware"
	"easyflip-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *gensvc.Service
}

type StartRequest struct {
	SKUs      []string `json:"skus"`
	Platforms []string `json:"platforms"`
}

// Start POST /api/v1/generate. Work continues after the response; clients
// poll the job for per-SKU progress and the final summary.
func (h *Handlers) Start(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	job, err := h.Service.Start(c.Context(), caller.ID, gensvc.Request{SKUs: req.SKUs, Platforms: req.Platforms})
	if err != nil {
		return mapError(c, err)
	}
	return response.Accepted(c, "Listing generation started", fiber.Map{"job_id": job.ID, "total": job.Total})
}

// Job GET /api/v1/generate/jobs/:job_id
func (h *Handlers) Job(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	job, err := h.Service.GetJob(c.Context(), caller.ID, c.Params("job_id"))
	if err != nil {
		return mapError(c, err)
	}
	msg := "Generation in progress"
	if job.Result != nil {
		msg = job.Result.Message
	}
	return response.Success(c, msg, job, nil)
}

func mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, gensvc.ErrNoSKUs), errors.Is(err, gensvc.ErrNoPlatforms),
		errors.Is(err, gensvc.ErrInvalidSKU), errors.Is(err, gensvc.ErrInvalidPlatform):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, gensvc.ErrJobNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("generate handler failed")
	return response.Error(c, "Internal server error", fiber.StatusInternalServerError, nil)
}
