package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ssaent/StockPulse-sub000/config"
	"github.com/Ssaent/StockPulse-sub000/handlers"
	"github.com/Ssaent/StockPulse-sub000/jobs"
	"github.com/Ssaent/StockPulse-sub000/services"
	"github.com/Ssaent/StockPulse-sub000/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load config
	cfg := config.LoadConfig()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	schedule := config.DefaultMarketScheduleConfig()
	refreshCfg := cfg.GetRefreshConfig()
	providerCfg := cfg.GetProviderConfig()

	logrus.Info("Market sync engine configuration:")
	logrus.Infof("  - Venue schedule: %s %s-%s",
		schedule.Timezone, formatMinutes(schedule.OpenMinute), formatMinutes(schedule.CloseMinute))
	logrus.Infof("  - Refresh cadence: fast %v (open), slow %v (closed)",
		refreshCfg.FastInterval, refreshCfg.SlowInterval)
	logrus.Infof("  - Provider timeout: %v, manual refresh gap: %v",
		refreshCfg.ProviderTimeout, refreshCfg.ManualRefreshGap)

	// Initialize engine components
	clock := services.NewMarketClock(schedule)
	metrics := shared.NewEngineMetrics()
	httpFactory := shared.NewHTTPClientFactory(refreshCfg.ProviderTimeout)

	providers := []services.QuoteProvider{
		services.NewYahooQuoteProvider(providerCfg.PrimaryURL, httpFactory, refreshCfg.ProviderTimeout),
		services.NewInternalQuoteProvider(providerCfg.SecondaryURL, httpFactory, refreshCfg.ProviderTimeout),
	}
	chain := services.NewQuoteSourceChain(providers, clock, refreshCfg.ProviderTimeout, metrics)
	store := services.NewSnapshotStore()

	refreshJob := jobs.NewMarketRefreshJob(clock, chain, store, refreshCfg, metrics)
	if err := refreshJob.Start(); err != nil {
		logrus.Fatalf("Failed to start market refresh job: %v", err)
	}

	// Initialize handlers
	marketHandler := handlers.NewMarketHandler(clock, store, metrics)
	adminHandler := handlers.NewAdminHandler(refreshJob)

	// Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	// Routes
	api := app.Group("/api/v1")

	// Market Routes
	api.Get("/market/live", marketHandler.GetLiveMarketData)
	api.Get("/market/status", marketHandler.GetMarketStatus)
	api.Get("/market/engine", marketHandler.GetEngineState)
	api.Post("/market/refresh", adminHandler.TriggerManualRefresh)

	// Stop the engine cleanly on shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logrus.Info("Shutting down market sync engine...")
		refreshJob.Stop()
		httpFactory.CleanupAllClients()
		_ = app.Shutdown()
	}()

	// Start server
	logrus.Infof("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		logrus.Fatalf("Server failed to start: %v", err)
	}
}

func formatMinutes(minuteOfDay int) string {
	return time.Date(0, 1, 1, minuteOfDay/60, minuteOfDay%60, 0, 0, time.UTC).Format("15:04")
}
