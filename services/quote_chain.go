package services

import (
	"context"
	"time"

	"github.com/Ssaent/StockPulse-sub000/models"
	"github.com/Ssaent/StockPulse-sub000/shared"
	"github.com/sirupsen/logrus"
)

// QuoteSourceChain tries an ordered list of providers until one returns a
// complete payload. It makes a single pass per call: retrying across cycles
// is the scheduler's job. The chain owns error translation, so callers only
// ever see FetchError values.
type QuoteSourceChain struct {
	providers      []QuoteProvider
	clock          *MarketClock
	attemptTimeout time.Duration
	metrics        *shared.EngineMetrics
}

// NewQuoteSourceChain creates a chain over the given providers, in fallback
// order. Each attempt gets its own timeout budget.
func NewQuoteSourceChain(providers []QuoteProvider, clock *MarketClock, attemptTimeout time.Duration, metrics *shared.EngineMetrics) *QuoteSourceChain {
	return &QuoteSourceChain{
		providers:      providers,
		clock:          clock,
		attemptTimeout: attemptTimeout,
		metrics:        metrics,
	}
}

// FetchSnapshot walks the provider chain and builds a snapshot from the first
// complete payload. On total failure it returns an all-sources-exhausted
// error carrying the last underlying cause; it never fabricates zero-valued
// data, so callers can distinguish "no data yet" from "data is zero".
func (c *QuoteSourceChain) FetchSnapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	var lastErr *shared.FetchError

	for _, provider := range c.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		quotes, err := provider.FetchIndices(attemptCtx)
		cancel()

		if err != nil {
			lastErr = c.translate(err, provider.Name())
			if c.metrics != nil {
				c.metrics.RecordProviderFailure(provider.Name())
			}
			logrus.WithFields(logrus.Fields{
				"component":      "QuoteSourceChain",
				"provider":       provider.Name(),
				"error_category": lastErr.Category,
			}).WithError(err).Warn("Provider attempt failed, trying next source")
			continue
		}

		// Providers validate their own payloads, but the chain re-checks so a
		// misbehaving implementation can never leak a partial snapshot.
		if err := requireAllIndices(quotes, provider.Name()); err != nil {
			lastErr = err.(*shared.FetchError)
			if c.metrics != nil {
				c.metrics.RecordProviderFailure(provider.Name())
			}
			continue
		}

		now := time.Now()
		snapshot := &models.MarketSnapshot{
			Status:    c.clock.Status(now),
			Indices:   quotes,
			FetchedAt: now,
			Source:    provider.Name(),
		}
		return snapshot, nil
	}

	exhausted := shared.NewFetchError(shared.ErrorCategoryExhausted, "chain",
		"all quote sources failed", lastErr)
	exhausted.LogError()
	return nil, exhausted
}

// translate normalizes a provider error into a FetchError. Providers built in
// this package already return FetchError values; anything else is classified
// from its transport behavior so provider-specific shapes never leak upward.
func (c *QuoteSourceChain) translate(err error, provider string) *shared.FetchError {
	if fe, ok := err.(*shared.FetchError); ok {
		return fe
	}
	return shared.ClassifyTransportError(err, provider)
}
