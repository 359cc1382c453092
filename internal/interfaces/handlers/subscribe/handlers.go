package subscribe

import (
	"errors"

	subsvc "easyflip-backend/internal/application/subscribe"
	"easyflip-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *subsvc.Service
}

type SubscribeRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

// Subscribe POST /api/v1/subscribe (public; also served at the legacy
// /.netlify/functions/subscribe path).
func (h *Handlers) Subscribe(c *fiber.Ctx) error {
	var req SubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	sub, created, err := h.Service.Subscribe(c.Context(), subsvc.Input{Email: req.Email, Name: req.Name, Source: req.Source})
	if err != nil {
		if errors.Is(err, subsvc.ErrInvalidEmail) || errors.Is(err, subsvc.ErrNameTooLong) {
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		}
		log.Error().Err(err).Str("path", c.Path()).Msg("subscribe failed")
		return response.Error(c, "Internal server error", fiber.StatusInternalServerError, nil)
	}
	if !created {
		return response.Success(c, "You're already subscribed", fiber.Map{"email": sub.Email}, nil)
	}
	return response.SuccessCreated(c, "Thanks for subscribing", fiber.Map{"email": sub.Email}, nil)
}
