package ebay

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"strings"

	ebaysvc "easyflip-backend/internal/application/ebay"
	"easyflip-backend/internal/domain"
	"easyflip-backend/internal/middleware"
	"easyflip-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const trendingLimit = 50

type Handlers struct {
	OAuth  *ebaysvc.OAuthService
	Seller *ebaysvc.Service
}

type StartRequest struct {
	ReturnURL string `json:"return_url"`
}

type startFunc func(ctx context.Context, userID uuid.UUID, returnURL string) (*domain.ConnectStart, error)

// Start POST /api/v1/ebay/oauth/start
func (h *Handlers) Start(c *fiber.Ctx) error {
	return h.begin(c, h.OAuth.Start)
}

// Reauth POST /api/v1/ebay/reauth. Stored tokens are cleared before a new URL is issued.
func (h *Handlers) Reauth(c *fiber.Ctx) error {
	return h.begin(c, h.OAuth.Reauth)
}

func (h *Handlers) begin(c *fiber.Ctx, start startFunc) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var req StartRequest
	// The connect CLI posts without a body.
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
		}
	}
	out, err := start(c.Context(), caller.ID, req.ReturnURL)
	if err != nil {
		return flowError(c, err)
	}
	return response.Success(c, "Authorization started", out, nil)
}

// Status GET /api/v1/ebay/oauth/status?state=
func (h *Handlers) Status(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	state := strings.TrimSpace(c.Query("state"))
	if state == "" {
		return response.Error(c, "state is required", fiber.StatusBadRequest, nil)
	}
	st, err := h.OAuth.Status(c.Context(), caller.ID, state)
	if err != nil {
		return flowError(c, err)
	}
	return response.Success(c, "Connection status", st, nil)
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>EasyFlip - eBay</title></head>
<body style="font-family:sans-serif;text-align:center;padding:48px">
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
{{if .ReturnURL}}<p><a href="{{.ReturnURL}}">Back to EasyFlip</a></p>{{end}}
</body></html>`))

type callbackView struct {
	Title     string
	Message   string
	ReturnURL string
}

// Callback GET /api/v1/ebay/oauth/callback. Public: eBay redirects the browser here.
func (h *Handlers) Callback(c *fiber.Ctx) error {
	rec, err := h.OAuth.Callback(c.Context(), c.Query("code"), c.Query("state"), c.Query("error"))
	switch {
	case errors.Is(err, ebaysvc.ErrUnknownState):
		return renderCallback(c, fiber.StatusBadRequest, callbackView{
			Title:   "This sign-in link has expired",
			Message: "Start the eBay connection again from EasyFlip.",
		})
	case err != nil && rec == nil:
		log.Error().Err(err).Msg("ebay oauth: callback failed")
		return renderCallback(c, fiber.StatusInternalServerError, callbackView{
			Title:   "Something went wrong",
			Message: domain.ErrorUnknown.Remediation(),
		})
	case err != nil:
		log.Warn().Err(err).Str("reason", rec.Reason).Msg("ebay oauth: callback recorded error")
		msg := "You declined access. You can close this window and try again."
		if rec.Reason != "access_denied" {
			msg = domain.ConnectErrorClass(rec.Reason).Remediation()
		}
		return renderCallback(c, fiber.StatusOK, callbackView{
			Title:     "eBay was not connected",
			Message:   msg,
			ReturnURL: rec.ReturnURL,
		})
	}
	return renderCallback(c, fiber.StatusOK, callbackView{
		Title:     "eBay connected",
		Message:   "You can close this window and return to EasyFlip.",
		ReturnURL: rec.ReturnURL,
	})
}

func renderCallback(c *fiber.Ctx, status int, v callbackView) error {
	var buf bytes.Buffer
	if err := callbackPage.Execute(&buf, v); err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.Status(status).Send(buf.Bytes())
}

// Connection GET /api/v1/ebay/connection
func (h *Handlers) Connection(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	conn, err := h.OAuth.Connection(c.Context(), caller.ID)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "eBay connection", conn, nil)
}

// Disconnect DELETE /api/v1/ebay/connection
func (h *Handlers) Disconnect(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	if err := h.OAuth.Disconnect(c.Context(), caller.ID); err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "eBay account disconnected", fiber.Map{"connected": false}, nil)
}

// Scopes GET /api/v1/ebay/scopes
func (h *Handlers) Scopes(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	report, err := h.OAuth.Scopes(c.Context(), caller.ID)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Scope report", report, nil)
}

// Policies GET /api/v1/ebay/policies
func (h *Handlers) Policies(c *fiber.Ctx) error {
	caller := middleware.GetUser(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	p, err := h.Seller.Policies(c.Context(), caller.ID)
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Business policies", p, nil)
}

// Trending GET /api/v1/ebay/trending?q=&limit=
func (h *Handlers) Trending(c *fiber.Ctx) error {
	if middleware.GetUser(c) == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	report, err := h.Seller.Trending(c.Context(), c.Query("q"), c.QueryInt("limit", trendingLimit))
	if err != nil {
		return mapError(c, err)
	}
	return response.Success(c, "Trending items", report, nil)
}

// flowError reports a connect failure with its class so the client can pick
// the remediation. auth_config is a server-side fault and must stay 5xx.
func flowError(c *fiber.Ctx, err error) error {
	fe := ebaysvc.Classify(err)
	status := fiber.StatusInternalServerError
	switch fe.Class {
	case domain.ErrorAuthConfig:
		status = fiber.StatusServiceUnavailable
	case domain.ErrorNetwork:
		status = fiber.StatusBadGateway
	case domain.ErrorTimeout:
		status = fiber.StatusGatewayTimeout
	}
	log.Error().Err(err).Str("class", string(fe.Class)).Str("path", c.Path()).Msg("ebay connect failed")
	return response.Error(c, fe.Class.Remediation(), status, fiber.Map{"class": fe.Class})
}

func mapError(c *fiber.Ctx, err error) error {
	var apiErr *ebaysvc.APIError
	switch {
	case errors.Is(err, ebaysvc.ErrEmptyQuery):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, ebaysvc.ErrNotConnected), errors.Is(err, ebaysvc.ErrDecryptFailed):
		return response.Error(c, err.Error(), fiber.StatusConflict, fiber.Map{"action": "connect_ebay"})
	case errors.Is(err, ebaysvc.ErrMissingScope):
		return response.Error(c, err.Error(), fiber.StatusForbidden, fiber.Map{"action": "reauth_ebay"})
	case errors.As(err, &apiErr):
		log.Warn().Err(err).Str("path", c.Path()).Msg("ebay api error")
		return response.Error(c, "eBay request failed", fiber.StatusBadGateway, fiber.Map{"ebay_status": apiErr.Status})
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("ebay handler failed")
	return response.Error(c, "Internal server error", fiber.StatusInternalServerError, nil)
}
