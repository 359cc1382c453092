package health

import (
	"errors"

	healthsvc "easyflip-backend/internal/application/health"
	"easyflip-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const serviceName = "easyflip-api"

// Handlers holds dependencies for health endpoints.
type Handlers struct {
	Service        *healthsvc.Service
	HealthAdminKey string
}

// JSON returns service status, runtime, traffic and dependency pings.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	rep := h.Service.Collect(c.Context())
	return c.JSON(fiber.Map{
		"service":      serviceName,
		"status":       rep.Status,
		"runtime":      rep.Runtime,
		"traffic":      rep.Traffic,
		"dependencies": rep.Dependencies,
	})
}

// Errors returns the last 50 logged 5xx responses.
func (h *Handlers) Errors(c *fiber.Ctx) error {
	entries, err := h.Service.Errors(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("health: read error log")
		return c.Status(fiber.StatusInternalServerError).JSON(entries)
	}
	return c.JSON(entries)
}

// Reset clears health stats in Redis. Requires query key=HEALTH_ADMIN_KEY.
func (h *Handlers) Reset(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" || key != h.HealthAdminKey {
		return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
	}
	if err := h.Service.Reset(c.Context()); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, healthsvc.ErrNoRedis) {
			status = fiber.StatusServiceUnavailable
		}
		return response.Error(c, err.Error(), status, nil)
	}
	return response.Success(c, "Stats reset successfully", fiber.Map{"success": true}, nil)
}
