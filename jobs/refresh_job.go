package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ssaent/StockPulse-sub000/config"
	"github.com/Ssaent/StockPulse-sub000/models"
	"github.com/Ssaent/StockPulse-sub000/services"
	"github.com/Ssaent/StockPulse-sub000/shared"
	"github.com/sirupsen/logrus"
)

// MarketRefreshJob polls the quote source chain at a cadence tied to market
// status: Fast while the market is open, Slow while it is closed. A single
// goroutine owns all scheduling state, so cycles never overlap and snapshots
// reach the store in fetch-start order.
type MarketRefreshJob struct {
	clock   *services.MarketClock
	chain   *services.QuoteSourceChain
	store   *services.SnapshotStore
	refresh *config.RefreshConfig
	metrics *shared.EngineMetrics
	limiter *shared.ManualRefreshLimiter

	// now is injectable so tests can drive the clock.
	now func() time.Time
	// ageTickEvery is one second in production; tests shrink it.
	ageTickEvery time.Duration

	manualCh chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once

	mutex   sync.Mutex
	running bool
}

// NewMarketRefreshJob wires the scheduler over its collaborators. The chain
// and its timeout clock are owned exclusively by this job; no other component
// may invoke fetches on the same chain.
func NewMarketRefreshJob(clock *services.MarketClock, chain *services.QuoteSourceChain, store *services.SnapshotStore, refresh *config.RefreshConfig, metrics *shared.EngineMetrics) *MarketRefreshJob {
	return &MarketRefreshJob{
		clock:        clock,
		chain:        chain,
		store:        store,
		refresh:      refresh,
		metrics:      metrics,
		limiter:      shared.NewManualRefreshLimiter(refresh.ManualRefreshGap),
		now:          time.Now,
		ageTickEvery: time.Second,
		manualCh:     make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
}

// IntervalFor maps a market status onto the polling interval in effect.
// Interval is a function of status only, never of error state, so failures
// cannot cause runaway fast-polling.
func (j *MarketRefreshJob) IntervalFor(status models.MarketStatus) time.Duration {
	if status == models.MarketOpen {
		return j.refresh.FastInterval
	}
	return j.refresh.SlowInterval
}

// Start launches the scheduler: an immediate first fetch, then a repeating
// timer at the status-derived interval.
func (j *MarketRefreshJob) Start() error {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	if j.running {
		return fmt.Errorf("market refresh job already running")
	}
	j.running = true

	logrus.WithFields(logrus.Fields{
		"component":     "MarketRefreshJob",
		"fast_interval": j.refresh.FastInterval,
		"slow_interval": j.refresh.SlowInterval,
	}).Info("Starting market refresh job")

	go j.run()
	return nil
}

// Stop cancels all timers and detaches in-flight completions from the store.
// It does not abort an in-flight fetch; it only prevents further cycles from
// starting. Safe to call multiple times.
func (j *MarketRefreshJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopCh)
		j.store.Deactivate()

		j.mutex.Lock()
		j.running = false
		j.mutex.Unlock()

		logrus.WithField("component", "MarketRefreshJob").Info("Market refresh job stopped")
	})
}

// IsRunning reports whether the scheduler loop is active.
func (j *MarketRefreshJob) IsRunning() bool {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return j.running
}

// TriggerManualRefresh requests an immediate fetch through the same
// non-overlap-guarded path as scheduled ticks. Denied when refreshes arrive
// faster than the politeness gap; the returned duration says how long to wait.
func (j *MarketRefreshJob) TriggerManualRefresh() (bool, time.Duration) {
	if !j.IsRunning() {
		return false, 0
	}
	allowed, retryAfter := j.limiter.Allow()
	if !allowed {
		return false, retryAfter
	}

	j.metrics.RecordManualRefresh()
	select {
	case j.manualCh <- struct{}{}:
	default:
		// A manual refresh is already queued; coalesce.
	}
	return true, 0
}

// run is the scheduler loop. It is the single owner of the fetch timer, the
// age ticker and the in-flight flag.
func (j *MarketRefreshJob) run() {
	status := j.clock.Status(j.now())
	interval := j.IntervalFor(status)
	j.store.SetInterval(interval.Milliseconds())

	cycleDone := make(chan struct{}, 1)
	inFlight := false

	startCycle := func() {
		if inFlight {
			// Back-pressure: skip the tick rather than queue a second fetch.
			j.metrics.RecordSkippedTick()
			logrus.WithField("component", "MarketRefreshJob").Debug("Fetch still in flight, skipping tick")
			return
		}
		inFlight = true
		go j.runCycle(cycleDone)
	}

	// Do not wait a full interval before the first attempt.
	startCycle()

	fetchTimer := time.NewTimer(interval)
	ageTicker := time.NewTicker(j.ageTickEvery)
	defer fetchTimer.Stop()
	defer ageTicker.Stop()

	for {
		select {
		case <-j.stopCh:
			return

		case <-fetchTimer.C:
			startCycle()
			fetchTimer.Reset(interval)

		case <-ageTicker.C:
			j.store.TickAge()

			newStatus := j.clock.Status(j.now())
			if newStatus == status {
				continue
			}
			// Status flipped mid-session: cancel-then-re-arm right away so
			// the dashboard accelerates the moment the market opens instead
			// of up to one stale interval late.
			status = newStatus
			interval = j.IntervalFor(status)
			j.store.SetInterval(interval.Milliseconds())
			if !fetchTimer.Stop() {
				select {
				case <-fetchTimer.C:
				default:
				}
			}
			fetchTimer.Reset(interval)
			logrus.WithFields(logrus.Fields{
				"component": "MarketRefreshJob",
				"status":    status,
				"interval":  interval,
			}).Info("Market status changed, re-armed refresh timer")

		case <-j.manualCh:
			startCycle()

		case <-cycleDone:
			inFlight = false
		}
	}
}

// runCycle performs exactly one fetch through the chain and applies the
// result. A panic inside a cycle is treated as a fetch failure; the timer
// continues undisturbed.
func (j *MarketRefreshJob) runCycle(done chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			err := shared.NewFetchError(shared.ErrorCategoryExhausted, "chain",
				fmt.Sprintf("fetch cycle panicked: %v", r), nil)
			err.LogError()
			j.metrics.RecordCycle(false, false, 0)
			j.store.ApplyError(err)
		}
		done <- struct{}{}
	}()

	start := time.Now()
	snapshot, err := j.chain.FetchSnapshot(context.Background())
	duration := time.Since(start)

	if err != nil {
		j.metrics.RecordCycle(false, false, duration)
		j.store.ApplyError(err)
		return
	}

	j.metrics.RecordCycle(true, snapshot.Source == services.ProviderSecondary, duration)
	j.store.ApplySnapshot(snapshot)

	logrus.WithFields(logrus.Fields{
		"component": "MarketRefreshJob",
		"source":    snapshot.Source,
		"status":    snapshot.Status,
		"duration":  duration,
	}).Debug("Fetch cycle completed")
}
