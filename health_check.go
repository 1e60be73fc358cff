//go:build ignore

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ssaent/StockPulse-sub000/config"
	"github.com/Ssaent/StockPulse-sub000/services"
	"github.com/Ssaent/StockPulse-sub000/shared"
)

func main() {
	fmt.Printf("🏥 Market Sync Engine Health Check - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println(strings.Repeat("=", 50))

	cfg := config.LoadConfig()
	refreshCfg := cfg.GetRefreshConfig()
	providerCfg := cfg.GetProviderConfig()
	factory := shared.NewHTTPClientFactory(refreshCfg.ProviderTimeout)

	healthScore := 0
	totalTests := 3

	// Test 1: Market clock
	fmt.Print("🕒 Market clock: ")
	clock := services.NewMarketClock(config.DefaultMarketScheduleConfig())
	status, reason := clock.StatusWithReason(time.Now())
	fmt.Printf("✅ OK (%s: %s)\n", status, reason)
	healthScore++

	// Test 2: Primary quote feed
	fmt.Print("📡 Primary quote feed: ")
	primary := services.NewYahooQuoteProvider(providerCfg.PrimaryURL, factory, refreshCfg.ProviderTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), refreshCfg.ProviderTimeout)
	if quotes, err := primary.FetchIndices(ctx); err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else {
		fmt.Printf("✅ OK (%d indices)\n", len(quotes))
		healthScore++
	}
	cancel()

	// Test 3: Secondary quote feed
	fmt.Print("📡 Secondary quote feed: ")
	secondary := services.NewInternalQuoteProvider(providerCfg.SecondaryURL, factory, refreshCfg.ProviderTimeout)
	ctx, cancel = context.WithTimeout(context.Background(), refreshCfg.ProviderTimeout)
	if quotes, err := secondary.FetchIndices(ctx); err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else {
		fmt.Printf("✅ OK (%d indices)\n", len(quotes))
		healthScore++
	}
	cancel()

	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Health score: %d/%d\n", healthScore, totalTests)
}
