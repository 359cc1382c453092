package photos

import (
	"errors"

	photosvc "easyflip-backend/internal/application/photos"
	"easyflip-backend/internal/domain"
	"easyflip-backend/internal/middleware"
	"easyflip-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Handlers struct {
	Service *photosvc.Service
}

type UploadURLRequest struct {
	FileName string `json:"file_name"`
}

// CreateUploadURL POST /api/v1/photos/upload-url
func (h *Handlers) CreateUploadURL(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req UploadURLRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	out, err := h.Service.CreateUploadURL(c.Context(), caller.ID, req.FileName)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Upload URL created", out, nil)
}

type RegisterRequest struct {
	Photos []struct {
		ImageURL string `json:"image_url"`
		Filename string `json:"filename"`
	} `json:"photos"`
}

// Register POST /api/v1/photos
func (h *Handlers) Register(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	in := make([]photosvc.NewPhoto, 0, len(req.Photos))
	for _, p := range req.Photos {
		in = append(in, photosvc.NewPhoto{ImageURL: p.ImageURL, Filename: p.Filename})
	}
	out, err := h.Service.RegisterPhotos(c.Context(), caller.ID, in)
	if err != nil {
		return mapError(c, err)
	}
	return response.SuccessCreated(c, "Photos uploaded", fiber.Map{"photos": out}, fiber.Map{"count": len(out)})
}

// List GET /api/v1/photos?status=pending|assigned|processed
func (h *Handlers) List(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	status := c.Query("status")
	switch status {
	case "", domain.PhotoStatusPending, domain.PhotoStatusAssigned, domain.PhotoStatusProcessed:
	default:
		return response.Error(c, "Invalid status", fiber.StatusBadRequest, nil)
	}
	out, err := h.Service.ListPhotos(c.Context(), caller.ID, status)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Photos fetched", fiber.Map{"photos": out}, fiber.Map{"count": len(out)})
}

type GroupRequest struct {
	PhotoIDs []string `json:"photo_ids"`
	SKU      string   `json:"sku"`
}

func parseIDs(raw []string) ([]uuid.UUID, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// Assign POST /api/v1/photos/assign
func (h *Handlers) Assign(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req GroupRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	ids, ok := parseIDs(req.PhotoIDs)
	if !ok {
		return response.Error(c, "photo_ids must be a non-empty list of UUIDs", fiber.StatusBadRequest, nil)
	}
	n, err := h.Service.AssignSKU(c.Context(), caller.ID, ids, req.SKU)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Photos assigned", fiber.Map{"sku": req.SKU, "updated": n}, nil)
}

// Unassign POST /api/v1/photos/unassign
func (h *Handlers) Unassign(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req GroupRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	ids, ok := parseIDs(req.PhotoIDs)
	if !ok {
		return response.Error(c, "photo_ids must be a non-empty list of UUIDs", fiber.StatusBadRequest, nil)
	}
	n, err := h.Service.UnassignPhotos(c.Context(), caller.ID, ids)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Photos unassigned", fiber.Map{"updated": n}, nil)
}

// Groups GET /api/v1/photos/groups
func (h *Handlers) Groups(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	out, err := h.Service.ListSKUGroups(c.Context(), caller.ID)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "SKU groups fetched", fiber.Map{"groups": out}, fiber.Map{"count": len(out)})
}

// Delete DELETE /api/v1/photos/:id
func (h *Handlers) Delete(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid photo ID", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.DeletePhoto(c.Context(), caller.ID, id); err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Photo deleted", nil, nil)
}

func mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, photosvc.ErrFileNameRequired), errors.Is(err, photosvc.ErrNoPhotos),
		errors.Is(err, photosvc.ErrInvalidSKU), errors.Is(err, photosvc.ErrInvalidImageURL):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, photosvc.ErrPhotoNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, photosvc.ErrPhotoProcessed):
		return response.Error(c, err.Error(), fiber.StatusConflict, nil)
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("photos handler failed")
	return response.Error(c, "Internal server error", fiber.StatusInternalServerError, nil)
}
