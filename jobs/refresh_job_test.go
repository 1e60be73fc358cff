package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ssaent/StockPulse-sub000/config"
	"github.com/Ssaent/StockPulse-sub000/models"
	"github.com/Ssaent/StockPulse-sub000/services"
	"github.com/Ssaent/StockPulse-sub000/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider is a scriptable provider double that tracks call counts
// and the maximum number of concurrent in-flight fetches.
type countingProvider struct {
	mu          sync.Mutex
	calls       int
	inFlight    int
	maxInFlight int
	block       time.Duration
	failFrom    int // 1-based call number from which to fail; 0 = never
}

func (p *countingProvider) Name() string { return services.ProviderPrimary }

func (p *countingProvider) FetchIndices(ctx context.Context) (map[string]models.IndexQuote, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	block := p.block
	p.mu.Unlock()

	if block > 0 {
		select {
		case <-time.After(block):
		case <-ctx.Done():
		}
	}

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()

	if p.failFrom > 0 && call >= p.failFrom {
		return nil, errors.New("provider forced failure")
	}
	return map[string]models.IndexQuote{
		models.IndexNifty50: models.NewIndexQuote(decimal.NewFromInt(21800), decimal.NewFromInt(21700)),
		models.IndexSensex:  models.NewIndexQuote(decimal.NewFromInt(71900), decimal.NewFromInt(71500)),
	}, nil
}

func (p *countingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *countingProvider) maxConcurrent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxInFlight
}

// Fixed instants in venue time: a Tuesday during and after trading hours.
func tradingTime(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return time.Date(2024, time.January, 9, 11, 0, 0, 0, loc)
}

func afterHoursTime(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return time.Date(2024, time.January, 9, 20, 0, 0, 0, loc)
}

type jobFixture struct {
	job     *MarketRefreshJob
	store   *services.SnapshotStore
	metrics *shared.EngineMetrics
	now     *atomic.Value
}

func newJobFixture(t *testing.T, provider services.QuoteProvider, refresh *config.RefreshConfig, start time.Time) *jobFixture {
	t.Helper()

	clock := services.NewMarketClock(config.DefaultMarketScheduleConfig())
	metrics := shared.NewEngineMetrics()
	chain := services.NewQuoteSourceChain([]services.QuoteProvider{provider}, clock, refresh.ProviderTimeout, metrics)
	store := services.NewSnapshotStore()
	job := NewMarketRefreshJob(clock, chain, store, refresh, metrics)

	now := &atomic.Value{}
	now.Store(start)
	job.now = func() time.Time { return now.Load().(time.Time) }

	t.Cleanup(job.Stop)
	return &jobFixture{job: job, store: store, metrics: metrics, now: now}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestIntervalFollowsMarketStatus(t *testing.T) {
	refresh := &config.RefreshConfig{
		FastInterval:     3 * time.Second,
		SlowInterval:     30 * time.Second,
		ProviderTimeout:  time.Second,
		ManualRefreshGap: time.Second,
	}
	fx := newJobFixture(t, &countingProvider{}, refresh, tradingTime(t))

	// Tuesday 11:00 local: Open, fast cadence.
	assert.Equal(t, 3*time.Second, fx.job.IntervalFor(models.MarketOpen))
	// Tuesday 20:00 local: Closed, slow cadence.
	assert.Equal(t, 30*time.Second, fx.job.IntervalFor(models.MarketClosed))
}

func TestImmediateFirstFetch(t *testing.T) {
	refresh := &config.RefreshConfig{
		FastInterval:     10 * time.Second,
		SlowInterval:     10 * time.Second,
		ProviderTimeout:  time.Second,
		ManualRefreshGap: time.Second,
	}
	provider := &countingProvider{}
	fx := newJobFixture(t, provider, refresh, tradingTime(t))

	require.NoError(t, fx.job.Start())

	// The first fetch must not wait a full interval.
	assert.True(t, waitFor(t, time.Second, func() bool {
		return provider.callCount() == 1 && fx.store.State().HasData()
	}), "expected an immediate first fetch")
}

func TestStartTwiceFails(t *testing.T) {
	refresh := config.DefaultRefreshConfig()
	fx := newJobFixture(t, &countingProvider{}, refresh, afterHoursTime(t))

	require.NoError(t, fx.job.Start())
	assert.Error(t, fx.job.Start())
}

func TestNonOverlappingCycles(t *testing.T) {
	refresh := &config.RefreshConfig{
		FastInterval:     20 * time.Millisecond,
		SlowInterval:     10 * time.Second,
		ProviderTimeout:  time.Second,
		ManualRefreshGap: time.Second,
	}
	provider := &countingProvider{block: 150 * time.Millisecond}
	fx := newJobFixture(t, provider, refresh, tradingTime(t))
	fx.job.ageTickEvery = time.Hour // keep the age ticker out of this test

	require.NoError(t, fx.job.Start())
	time.Sleep(500 * time.Millisecond)
	fx.job.Stop()

	assert.Equal(t, 1, provider.maxConcurrent(), "at most one fetch may ever be in flight")
	assert.Greater(t, fx.metrics.GetSnapshot().SkippedTicks, int64(0), "overlapping ticks must be skipped, not queued")
}

func TestStatusFlipReArmsTimerImmediately(t *testing.T) {
	refresh := &config.RefreshConfig{
		FastInterval:     50 * time.Millisecond,
		SlowInterval:     10 * time.Second,
		ProviderTimeout:  time.Second,
		ManualRefreshGap: time.Second,
	}
	provider := &countingProvider{}
	fx := newJobFixture(t, provider, refresh, afterHoursTime(t))
	fx.job.ageTickEvery = 10 * time.Millisecond

	require.NoError(t, fx.job.Start())
	require.True(t, waitFor(t, time.Second, func() bool { return provider.callCount() == 1 }))
	assert.EqualValues(t, refresh.SlowInterval.Milliseconds(), fx.store.State().IntervalMs)

	// Market opens mid-session: the very next cycle must arrive within one
	// Fast interval of the flip, not one Slow interval.
	fx.now.Store(tradingTime(t))

	assert.True(t, waitFor(t, 500*time.Millisecond, func() bool {
		return provider.callCount() >= 2
	}), "expected a fetch within one fast interval of the market opening")
	assert.EqualValues(t, refresh.FastInterval.Milliseconds(), fx.store.State().IntervalMs)
}

func TestFailedCycleKeepsLastSnapshot(t *testing.T) {
	refresh := &config.RefreshConfig{
		FastInterval:     30 * time.Millisecond,
		SlowInterval:     10 * time.Second,
		ProviderTimeout:  time.Second,
		ManualRefreshGap: time.Second,
	}
	provider := &countingProvider{failFrom: 2} // first call succeeds, rest fail
	fx := newJobFixture(t, provider, refresh, tradingTime(t))

	require.NoError(t, fx.job.Start())
	require.True(t, waitFor(t, 2*time.Second, func() bool {
		return provider.callCount() >= 3 && fx.store.State().LastError != ""
	}))

	state := fx.store.State()
	assert.True(t, state.HasData(), "stale-but-present data is preferred over blanking")
	assert.Equal(t, services.ProviderPrimary, state.LastSnapshot.Source)
	assert.NotEmpty(t, state.LastError)
	// Errors never change the cadence; it stays a function of market status.
	assert.EqualValues(t, refresh.FastInterval.Milliseconds(), state.IntervalMs)
}

func TestStopIsIdempotentAndDropsLateResults(t *testing.T) {
	refresh := &config.RefreshConfig{
		FastInterval:     10 * time.Second,
		SlowInterval:     10 * time.Second,
		ProviderTimeout:  5 * time.Second,
		ManualRefreshGap: time.Second,
	}
	provider := &countingProvider{block: 300 * time.Millisecond}
	fx := newJobFixture(t, provider, refresh, tradingTime(t))

	require.NoError(t, fx.job.Start())
	require.True(t, waitFor(t, time.Second, func() bool { return provider.callCount() == 1 }))

	// Stop while the first fetch is still in flight; stopping does not abort
	// it, but its completion must have no visible effect.
	fx.job.Stop()
	fx.job.Stop()
	assert.False(t, fx.job.IsRunning())

	time.Sleep(500 * time.Millisecond)
	assert.False(t, fx.store.State().HasData(), "late completion must not reach the store")
}

func TestManualRefreshReusesGuardedPath(t *testing.T) {
	refresh := &config.RefreshConfig{
		FastInterval:     10 * time.Second,
		SlowInterval:     10 * time.Second,
		ProviderTimeout:  time.Second,
		ManualRefreshGap: 200 * time.Millisecond,
	}
	provider := &countingProvider{}
	fx := newJobFixture(t, provider, refresh, afterHoursTime(t))

	require.NoError(t, fx.job.Start())
	require.True(t, waitFor(t, time.Second, func() bool { return provider.callCount() == 1 }))

	allowed, _ := fx.job.TriggerManualRefresh()
	assert.True(t, allowed)
	assert.True(t, waitFor(t, time.Second, func() bool { return provider.callCount() == 2 }))

	// A second refresh inside the politeness gap is denied with a retry hint.
	allowed, retryAfter := fx.job.TriggerManualRefresh()
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))

	assert.EqualValues(t, 1, fx.metrics.GetSnapshot().ManualRefreshes)
}

// panickingProvider blows up on every fetch.
type panickingProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *panickingProvider) Name() string { return services.ProviderPrimary }

func (p *panickingProvider) FetchIndices(ctx context.Context) (map[string]models.IndexQuote, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	panic("quote feed returned garbage")
}

func (p *panickingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestPanickingCycleIsContainedAsFailure(t *testing.T) {
	refresh := &config.RefreshConfig{
		FastInterval:     30 * time.Millisecond,
		SlowInterval:     10 * time.Second,
		ProviderTimeout:  time.Second,
		ManualRefreshGap: time.Second,
	}
	provider := &panickingProvider{}
	fx := newJobFixture(t, provider, refresh, tradingTime(t))

	require.NoError(t, fx.job.Start())

	// A panic inside a cycle must not kill the loop: later ticks keep firing
	// and each blown cycle lands as a recorded failure.
	require.True(t, waitFor(t, 2*time.Second, func() bool {
		return provider.callCount() >= 2 && fx.metrics.GetSnapshot().FailedCycles >= 2
	}), "expected cycles to keep being scheduled past a panic")

	assert.True(t, fx.job.IsRunning())

	state := fx.store.State()
	assert.False(t, state.HasData())
	assert.Contains(t, state.LastError, "fetch cycle panicked")
}

func TestManualRefreshDeniedWhenStopped(t *testing.T) {
	refresh := config.DefaultRefreshConfig()
	fx := newJobFixture(t, &countingProvider{}, refresh, afterHoursTime(t))

	allowed, _ := fx.job.TriggerManualRefresh()
	assert.False(t, allowed, "manual refresh requires a running scheduler")
}
