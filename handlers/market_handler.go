package handlers

import (
	"time"

	"github.com/Ssaent/StockPulse-sub000/models"
	"github.com/Ssaent/StockPulse-sub000/services"
	"github.com/Ssaent/StockPulse-sub000/shared"
	"github.com/gofiber/fiber/v2"
)

// MarketHandler serves the dashboard's market data endpoints. It only reads
// the snapshot store; all fetching happens in the refresh job.
type MarketHandler struct {
	clock   *services.MarketClock
	store   *services.SnapshotStore
	metrics *shared.EngineMetrics
}

func NewMarketHandler(clock *services.MarketClock, store *services.SnapshotStore, metrics *shared.EngineMetrics) *MarketHandler {
	return &MarketHandler{
		clock:   clock,
		store:   store,
		metrics: metrics,
	}
}

// GetLiveMarketData returns the latest snapshot with staleness metadata.
// While fetches fail the last good snapshot keeps being served with a rising
// age; only before the first-ever success does the endpoint report
// unavailable.
func (h *MarketHandler) GetLiveMarketData(c *fiber.Ctx) error {
	state := h.store.State()

	if !state.HasData() {
		payload := fiber.Map{
			"error":   "Market data unavailable",
			"message": "no successful fetch yet",
		}
		if state.LastError != "" {
			payload["message"] = state.LastError
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(payload)
	}

	snapshot := state.LastSnapshot
	return c.JSON(fiber.Map{
		"status":      snapshot.Status,
		"timestamp":   snapshot.FetchedAt.Format(time.RFC3339),
		"nifty":       renderQuote(snapshot.Indices[models.IndexNifty50]),
		"sensex":      renderQuote(snapshot.Indices[models.IndexSensex]),
		"source":      snapshot.Source,
		"age_seconds": state.AgeSeconds,
		"last_error":  state.LastError,
	})
}

// GetMarketStatus returns just the open/closed status with its reason and the
// session window.
func (h *MarketHandler) GetMarketStatus(c *fiber.Ctx) error {
	now := time.Now()
	status, reason := h.clock.StatusWithReason(now)
	openAt, closeAt := h.clock.SessionWindow()

	return c.JSON(fiber.Map{
		"status":    status,
		"reason":    reason,
		"timestamp": now.In(h.clock.Location()).Format(time.RFC3339),
		"market_hours": fiber.Map{
			"open":  openAt,
			"close": closeAt,
		},
	})
}

// GetEngineState returns scheduler diagnostics: the refresh state the
// adapters see plus cycle metrics.
func (h *MarketHandler) GetEngineState(c *fiber.Ctx) error {
	state := h.store.State()
	metrics := h.metrics.GetSnapshot()

	return c.JSON(fiber.Map{
		"refresh_state": state,
		"metrics":       metrics,
	})
}

func renderQuote(quote models.IndexQuote) fiber.Map {
	return fiber.Map{
		"value":         quote.Value.InexactFloat64(),
		"change":        quote.Change.InexactFloat64(),
		"changePercent": quote.ChangePercent.InexactFloat64(),
		"is_positive":   quote.IsPositive(),
	}
}
