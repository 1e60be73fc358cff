package handlers

import (
	"time"

	"github.com/Ssaent/StockPulse-sub000/jobs"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AdminHandler exposes operational triggers for the sync engine.
type AdminHandler struct {
	refreshJob *jobs.MarketRefreshJob
}

func NewAdminHandler(refreshJob *jobs.MarketRefreshJob) *AdminHandler {
	return &AdminHandler{refreshJob: refreshJob}
}

// TriggerManualRefresh requests an immediate fetch cycle. The request goes
// through the same non-overlap-guarded path as scheduled ticks, so a refresh
// clicked while a cycle is in flight coalesces instead of stacking fetches.
func (h *AdminHandler) TriggerManualRefresh(c *fiber.Ctx) error {
	allowed, retryAfter := h.refreshJob.TriggerManualRefresh()
	if !allowed {
		if !h.refreshJob.IsRunning() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"success": false,
				"message": "Refresh engine is not running",
			})
		}
		c.Set("Retry-After", retryAfter.Round(time.Second).String())
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success":     false,
			"message":     "Refresh requested too soon",
			"retry_after": retryAfter.Seconds(),
		})
	}

	logrus.WithField("component", "AdminHandler").Info("Manual market refresh triggered")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "Refresh scheduled",
	})
}
