package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort          string
	LogLevel            string
	PrimaryQuoteURL     string
	SecondaryQuoteURL   string
	ProviderTimeoutSecs string
	FastIntervalSecs    string
	SlowIntervalSecs    string
}

// MarketScheduleConfig holds the trading venue's timezone and session window.
// Times are minutes from midnight in venue-local time so the clock can compare
// them without parsing on every call.
type MarketScheduleConfig struct {
	Timezone    string `json:"timezone"`
	OpenMinute  int    `json:"open_minute"`
	CloseMinute int    `json:"close_minute"`
}

// DefaultMarketScheduleConfig returns the NSE/BSE session: 09:15-15:30 IST,
// inclusive on both bounds. No holiday calendar is consulted, so weekday
// trading holidays will still report Open.
func DefaultMarketScheduleConfig() *MarketScheduleConfig {
	return &MarketScheduleConfig{
		Timezone:    "Asia/Kolkata",
		OpenMinute:  9*60 + 15,  // 09:15 IST
		CloseMinute: 15*60 + 30, // 15:30 IST
	}
}

// RefreshConfig holds the two polling cadences and the per-provider timeout.
// Fast applies while the market is open, Slow while it is closed. The interval
// is a function of market status only, never of error state.
type RefreshConfig struct {
	FastInterval     time.Duration `json:"fast_interval"`
	SlowInterval     time.Duration `json:"slow_interval"`
	ProviderTimeout  time.Duration `json:"provider_timeout"`
	ManualRefreshGap time.Duration `json:"manual_refresh_gap"`
}

// DefaultRefreshConfig returns default refresh cadences for the dashboard.
func DefaultRefreshConfig() *RefreshConfig {
	return &RefreshConfig{
		FastInterval:     3 * time.Second,
		SlowInterval:     30 * time.Second,
		ProviderTimeout:  5 * time.Second,
		ManualRefreshGap: 2 * time.Second, // politeness gap between manual refreshes
	}
}

// ProviderConfig holds the upstream quote endpoints. The primary is the
// external third-party feed, the secondary the internal backend fallback.
type ProviderConfig struct {
	PrimaryURL   string `json:"primary_url"`
	SecondaryURL string `json:"secondary_url"`
}

// DefaultProviderConfig returns the default provider endpoints.
func DefaultProviderConfig() *ProviderConfig {
	return &ProviderConfig{
		PrimaryURL:   "https://query1.finance.yahoo.com/v7/finance/quote?symbols=%5ENSEI,%5EBSESN",
		SecondaryURL: "http://localhost:5000/api/market/live",
	}
}

// GetRefreshConfig builds a RefreshConfig from environment overrides on top
// of the defaults.
func (c *Config) GetRefreshConfig() *RefreshConfig {
	rc := DefaultRefreshConfig()
	if secs := parseSeconds(c.FastIntervalSecs); secs > 0 {
		rc.FastInterval = secs
	}
	if secs := parseSeconds(c.SlowIntervalSecs); secs > 0 {
		rc.SlowInterval = secs
	}
	if secs := parseSeconds(c.ProviderTimeoutSecs); secs > 0 {
		rc.ProviderTimeout = secs
	}
	return rc
}

// GetProviderConfig builds a ProviderConfig from environment overrides on top
// of the defaults.
func (c *Config) GetProviderConfig() *ProviderConfig {
	pc := DefaultProviderConfig()
	if c.PrimaryQuoteURL != "" {
		pc.PrimaryURL = c.PrimaryQuoteURL
	}
	if c.SecondaryQuoteURL != "" {
		pc.SecondaryURL = c.SecondaryQuoteURL
	}
	return pc
}

func parseSeconds(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		logrus.Warnf("Invalid interval value: %s, keeping default", value)
		return 0
	}
	return time.Duration(secs) * time.Second
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		PrimaryQuoteURL:     getEnv("PRIMARY_QUOTE_URL", ""),
		SecondaryQuoteURL:   getEnv("SECONDARY_QUOTE_URL", ""),
		ProviderTimeoutSecs: getEnv("PROVIDER_TIMEOUT_SECONDS", ""),
		FastIntervalSecs:    getEnv("FAST_INTERVAL_SECONDS", ""),
		SlowIntervalSecs:    getEnv("SLOW_INTERVAL_SECONDS", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
