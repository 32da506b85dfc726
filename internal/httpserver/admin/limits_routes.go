package admin

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/verdantlabs/chat-admin/internal/app"
	"github.com/verdantlabs/chat-admin/internal/httpserver/httputil"
	"github.com/verdantlabs/chat-admin/internal/services/adminlimit"
	"github.com/verdantlabs/chat-admin/internal/store"
)

type limitsHandler struct {
	service *adminlimit.Service
}

func registerLimitRoutes(router fiber.Router, container *app.Container) {
	handler := &limitsHandler{service: container.AdminLimits}

	router.Get("/limits", handler.list)
	router.Get("/limits/:userID", handler.get)
	router.Put("/limits/:userID", handler.set)
	router.Delete("/limits/:userID", handler.remove)
}

type setLimitRequest struct {
	MaxTokensPerDay int64 `json:"maxTokensPerDay"`
}

type limitResponse struct {
	UserID          string    `json:"userId"`
	MaxTokensPerDay int64     `json:"maxTokensPerDay"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func buildLimitResponse(limit store.UserLimit) limitResponse {
	return limitResponse{
		UserID:          limit.UserID.String(),
		MaxTokensPerDay: limit.MaxTokensPerDay,
		UpdatedAt:       limit.UpdatedAt,
	}
}

func (h *limitsHandler) list(c *fiber.Ctx) error {
	limitRows, err := h.service.List(userContext(c))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to list limits")
	}

	items := make([]limitResponse, 0, len(limitRows))
	for _, limit := range limitRows {
		items = append(items, buildLimitResponse(limit))
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

func (h *limitsHandler) get(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userID"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid user id")
	}

	effective, err := h.service.Get(userContext(c), userID)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to load limit")
	}
	return c.JSON(fiber.Map{"success": true, "data": effective})
}

func (h *limitsHandler) set(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userID"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req setLimitRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	limit, err := h.service.Set(userContext(c), userID, req.MaxTokensPerDay)
	if err != nil {
		switch {
		case errors.Is(err, adminlimit.ErrInvalidCap):
			return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, adminlimit.ErrUnknownUser):
			return httputil.WriteError(c, fiber.StatusNotFound, "user not found")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to save limit")
	}
	return c.JSON(fiber.Map{"success": true, "data": buildLimitResponse(limit)})
}

func (h *limitsHandler) remove(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userID"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.service.Remove(userContext(c), userID); err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to delete limit")
	}
	return c.JSON(fiber.Map{"success": true})
}
