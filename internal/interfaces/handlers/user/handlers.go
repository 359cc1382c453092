package user

import (
	"errors"

	usersvc "easyflip-backend/internal/application/user"
	"easyflip-backend/internal/middleware"
	"easyflip-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *usersvc.Service
}

// GetMe GET /api/v1/users/me. The first call after sign-up creates the row.
func (h *Handlers) GetMe(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	u, err := h.Service.EnsureUser(c.Context(), usersvc.Identity{
		ID:        caller.ID,
		Email:     caller.Email,
		Name:      caller.Name,
		AvatarURL: caller.AvatarURL,
	})
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "User found", fiber.Map{"user": u}, nil)
}

type UpdateMeRequest struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

// UpdateMe PATCH /api/v1/users/me
func (h *Handlers) UpdateMe(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req UpdateMeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	u, err := h.Service.UpdateProfile(c.Context(), caller.ID, usersvc.UpdateProfileInput{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "User updated successfully", fiber.Map{"user": u}, nil)
}

func mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, usersvc.ErrNoUpdateFields), errors.Is(err, usersvc.ErrNameTooLong), errors.Is(err, usersvc.ErrMissingIdentifier):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, usersvc.ErrUserNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("user handler failed")
	return response.Error(c, "Internal server error", fiber.StatusInternalServerError, nil)
}
