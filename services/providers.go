package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Ssaent/StockPulse-sub000/models"
	"github.com/Ssaent/StockPulse-sub000/shared"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// QuoteProvider is one upstream source of index quotes. Implementations make
// a single attempt per call; retry policy belongs to the scheduler, fallback
// policy to the chain.
type QuoteProvider interface {
	Name() string
	FetchIndices(ctx context.Context) (map[string]models.IndexQuote, error)
}

// Provider names used for snapshot source tagging and diagnostics.
const (
	ProviderPrimary   = "primary"
	ProviderSecondary = "secondary"
)

// yahooSymbols maps the external feed's ticker symbols onto the engine's
// index identifiers.
var yahooSymbols = map[string]string{
	"^NSEI":  models.IndexNifty50,
	"^BSESN": models.IndexSensex,
}

// YahooQuoteProvider fetches index quotes from the external third-party feed.
type YahooQuoteProvider struct {
	url    string
	client *http.Client
	logger *logrus.Logger
}

// NewYahooQuoteProvider creates the primary provider against the given quote
// endpoint.
func NewYahooQuoteProvider(url string, factory *shared.HTTPClientFactory, timeout time.Duration) *YahooQuoteProvider {
	return &YahooQuoteProvider{
		url:    url,
		client: factory.CreateOptimizedHTTPClient(timeout),
		logger: logrus.StandardLogger(),
	}
}

// Name identifies this provider in snapshots and logs.
func (p *YahooQuoteProvider) Name() string {
	return ProviderPrimary
}

// yahooQuoteResponse mirrors the external feed's payload. Pointer fields
// distinguish a missing value from a zero so garbled rows are rejected
// instead of quietly becoming 0.00.
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string   `json:"symbol"`
			RegularMarketPrice         *float64 `json:"regularMarketPrice"`
			RegularMarketPreviousClose *float64 `json:"regularMarketPreviousClose"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// FetchIndices performs one GET against the feed and parses every tracked
// index. A response missing any index, or any numeric field, fails as a
// whole: no partial snapshots.
func (p *YahooQuoteProvider) FetchIndices(ctx context.Context) (map[string]models.IndexQuote, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, shared.NewFetchError(shared.ErrorCategoryNetwork, p.Name(), "failed to build request", err)
	}
	shared.SetBrowserLikeHeaders(request, "application/json")

	response, err := p.client.Do(request)
	if err != nil {
		return nil, shared.ClassifyTransportError(err, p.Name())
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, shared.NewFetchError(shared.ErrorCategoryNetwork, p.Name(),
			fmt.Sprintf("unexpected HTTP status %d", response.StatusCode), nil)
	}

	var payload yahooQuoteResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, shared.NewFetchError(shared.ErrorCategoryMalformed, p.Name(), "response is not valid JSON", err)
	}
	if payload.QuoteResponse.Error != nil {
		return nil, shared.NewFetchError(shared.ErrorCategoryMalformed, p.Name(),
			fmt.Sprintf("feed reported error: %v", payload.QuoteResponse.Error), nil)
	}

	quotes := make(map[string]models.IndexQuote, len(yahooSymbols))
	for _, row := range payload.QuoteResponse.Result {
		indexID, tracked := yahooSymbols[row.Symbol]
		if !tracked {
			continue
		}
		if row.RegularMarketPrice == nil || row.RegularMarketPreviousClose == nil {
			return nil, shared.NewFetchError(shared.ErrorCategoryMalformed, p.Name(),
				fmt.Sprintf("quote for %s is missing numeric fields", indexID), nil)
		}
		quotes[indexID] = models.NewIndexQuote(
			decimal.NewFromFloat(*row.RegularMarketPrice),
			decimal.NewFromFloat(*row.RegularMarketPreviousClose),
		)
	}

	if err := requireAllIndices(quotes, p.Name()); err != nil {
		return nil, err
	}
	return quotes, nil
}

// InternalQuoteProvider fetches index quotes from the internal backend's
// market endpoint. It is the fallback when the external feed is down.
type InternalQuoteProvider struct {
	url    string
	client *http.Client
	logger *logrus.Logger
}

// NewInternalQuoteProvider creates the secondary provider.
func NewInternalQuoteProvider(url string, factory *shared.HTTPClientFactory, timeout time.Duration) *InternalQuoteProvider {
	return &InternalQuoteProvider{
		url:    url,
		client: factory.CreateOptimizedHTTPClient(timeout),
		logger: logrus.StandardLogger(),
	}
}

// Name identifies this provider in snapshots and logs.
func (p *InternalQuoteProvider) Name() string {
	return ProviderSecondary
}

// internalQuote is one index entry in the internal backend's payload.
type internalQuote struct {
	Value  *float64 `json:"value"`
	Change *float64 `json:"change"`
}

// internalMarketResponse mirrors the internal backend's /market/live shape.
type internalMarketResponse struct {
	Nifty  *internalQuote `json:"nifty"`
	Sensex *internalQuote `json:"sensex"`
}

// FetchIndices performs one GET against the internal backend. The backend
// reports value and change; the previous reference price is recovered as
// value - change so the quote construction stays uniform across providers.
func (p *InternalQuoteProvider) FetchIndices(ctx context.Context) (map[string]models.IndexQuote, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, shared.NewFetchError(shared.ErrorCategoryNetwork, p.Name(), "failed to build request", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := p.client.Do(request)
	if err != nil {
		return nil, shared.ClassifyTransportError(err, p.Name())
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, shared.NewFetchError(shared.ErrorCategoryNetwork, p.Name(),
			fmt.Sprintf("unexpected HTTP status %d", response.StatusCode), nil)
	}

	var payload internalMarketResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, shared.NewFetchError(shared.ErrorCategoryMalformed, p.Name(), "response is not valid JSON", err)
	}

	quotes := make(map[string]models.IndexQuote, 2)
	entries := map[string]*internalQuote{
		models.IndexNifty50: payload.Nifty,
		models.IndexSensex:  payload.Sensex,
	}
	for indexID, entry := range entries {
		if entry == nil || entry.Value == nil || entry.Change == nil {
			return nil, shared.NewFetchError(shared.ErrorCategoryMalformed, p.Name(),
				fmt.Sprintf("quote for %s is missing numeric fields", indexID), nil)
		}
		value := decimal.NewFromFloat(*entry.Value)
		previousClose := value.Sub(decimal.NewFromFloat(*entry.Change))
		quotes[indexID] = models.NewIndexQuote(value, previousClose)
	}

	if err := requireAllIndices(quotes, p.Name()); err != nil {
		return nil, err
	}
	return quotes, nil
}

// requireAllIndices rejects a payload that resolved only part of the tracked
// set. One live and one frozen number is worse than a clear unavailable state.
func requireAllIndices(quotes map[string]models.IndexQuote, provider string) error {
	for _, indexID := range models.TrackedIndices() {
		if _, ok := quotes[indexID]; !ok {
			return shared.NewFetchError(shared.ErrorCategoryMalformed, provider,
				fmt.Sprintf("payload did not include %s", indexID), nil)
		}
	}
	return nil
}
