package admin

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/verdantlabs/chat-admin/internal/app"
	"github.com/verdantlabs/chat-admin/internal/httpserver/httputil"
	usageservice "github.com/verdantlabs/chat-admin/internal/services/usage"
	"github.com/verdantlabs/chat-admin/internal/store"
	"github.com/verdantlabs/chat-admin/internal/timeutil"
)

const (
	dateParamLayout  = "2006-01-02"
	defaultRangeDays = 30
)

type statsHandler struct {
	service *usageservice.Service
}

func registerStatsRoutes(router fiber.Router, container *app.Container) {
	handler := &statsHandler{service: container.Usage}

	router.Get("/stats", handler.stats)
	router.Get("/users/:id/usage", handler.userUsage)
}

type dailyUsagePoint struct {
	Date         string `json:"date"`
	TokensUsed   int64  `json:"tokensUsed"`
	MessagesSent int64  `json:"messagesSent"`
	UniqueUsers  int64  `json:"uniqueUsers,omitempty"`
}

type statsResponse struct {
	DailyUsage []dailyUsagePoint   `json:"dailyUsage"`
	Totals     usageservice.Totals `json:"totals"`
}

// parseRangeParams resolves the optional startDate/endDate query parameters.
// The end defaults to today, the start to 30 days ending at the resolved end,
// so a query for a past month still covers that month.
func parseRangeParams(startRaw, endRaw string, now time.Time) (time.Time, time.Time, error) {
	startRaw = strings.TrimSpace(startRaw)
	endRaw = strings.TrimSpace(endRaw)

	if startRaw == "" && endRaw == "" {
		r := timeutil.LastNDays(now, defaultRangeDays)
		return r.Start(), r.End(), nil
	}

	end := timeutil.TruncateToDay(now)
	if endRaw != "" {
		t, err := time.Parse(dateParamLayout, endRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid endDate, expected YYYY-MM-DD")
		}
		end = t
	}

	start := end.AddDate(0, 0, -(defaultRangeDays - 1))
	if startRaw != "" {
		t, err := time.Parse(dateParamLayout, startRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid startDate, expected YYYY-MM-DD")
		}
		start = t
	}
	return start, end, nil
}

func (h *statsHandler) stats(c *fiber.Ctx) error {
	start, end, err := parseRangeParams(c.Query("startDate"), c.Query("endDate"), time.Now())
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	}

	days, err := h.service.TotalRange(userContext(c), start, end)
	if err != nil {
		if errors.Is(err, usageservice.ErrInvalidRange) {
			return httputil.WriteError(c, fiber.StatusBadRequest, "endDate must not precede startDate")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to load usage statistics")
	}

	points := make([]dailyUsagePoint, 0, len(days))
	for _, day := range days {
		points = append(points, dailyUsagePoint{
			Date:         day.Day.Format(dateParamLayout),
			TokensUsed:   day.TokensUsed,
			MessagesSent: day.MessagesSent,
			UniqueUsers:  day.UniqueUsers,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": statsResponse{
			DailyUsage: points,
			Totals:     usageservice.SummarizeRange(days),
		},
	})
}

func (h *statsHandler) userUsage(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid user id")
	}

	start, end, err := parseRangeParams(c.Query("startDate"), c.Query("endDate"), time.Now())
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	}

	days, err := h.service.UserRange(userContext(c), userID, start, end)
	if err != nil {
		if errors.Is(err, usageservice.ErrInvalidRange) {
			return httputil.WriteError(c, fiber.StatusBadRequest, "endDate must not precede startDate")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to load usage statistics")
	}

	points := make([]dailyUsagePoint, 0, len(days))
	for _, day := range days {
		points = append(points, dailyUsagePoint{
			Date:         day.Day.Format(dateParamLayout),
			TokensUsed:   day.TokensUsed,
			MessagesSent: day.MessagesSent,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"userId":     userID.String(),
			"dailyUsage": points,
			"totals":     summarizeUserDays(days),
		},
	})
}

func summarizeUserDays(days []store.DailyUsage) usageservice.Totals {
	var t usageservice.Totals
	for _, day := range days {
		t.TotalTokens += day.TokensUsed
		t.TotalMessages += day.MessagesSent
	}
	return t
}
