package shared

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ManualRefreshLimiter enforces a minimum gap between user-triggered refreshes
// so a dashboard refresh button cannot hammer the upstream providers faster
// than the scheduler itself would. The scheduled cycles are not subject to it.
type ManualRefreshLimiter struct {
	minimumGap      time.Duration
	lastRequestTime time.Time
	mutex           sync.Mutex
	requestCount    int64
}

// NewManualRefreshLimiter creates a limiter with the specified minimum gap.
func NewManualRefreshLimiter(minimumGap time.Duration) *ManualRefreshLimiter {
	return &ManualRefreshLimiter{
		minimumGap: minimumGap,
	}
}

// Allow reports whether a manual refresh may proceed now. When it is denied,
// the second return value is how long the caller should wait before retrying.
// Unlike a blocking limiter this never sleeps: the handler turns a denial into
// an HTTP 429 instead of holding the request open.
func (limiter *ManualRefreshLimiter) Allow() (bool, time.Duration) {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	elapsed := time.Since(limiter.lastRequestTime)
	if !limiter.lastRequestTime.IsZero() && elapsed < limiter.minimumGap {
		remaining := limiter.minimumGap - elapsed

		logrus.WithFields(logrus.Fields{
			"component":     "ManualRefreshLimiter",
			"elapsed_time":  elapsed,
			"minimum_gap":   limiter.minimumGap,
			"retry_after":   remaining,
			"request_count": limiter.requestCount,
		}).Debug("Manual refresh denied by rate limit")

		return false, remaining
	}

	limiter.lastRequestTime = time.Now()
	limiter.requestCount++
	return true, 0
}

// GetRequestCount returns the total number of manual refreshes allowed.
func (limiter *ManualRefreshLimiter) GetRequestCount() int64 {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	return limiter.requestCount
}

// UpdateMinimumGap updates the minimum gap between manual refreshes.
func (limiter *ManualRefreshLimiter) UpdateMinimumGap(newGap time.Duration) {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	oldGap := limiter.minimumGap
	limiter.minimumGap = newGap

	logrus.WithFields(logrus.Fields{
		"component": "ManualRefreshLimiter",
		"old_gap":   oldGap,
		"new_gap":   newGap,
	}).Info("Updated manual refresh minimum gap")
}

// Reset resets the limiter state.
func (limiter *ManualRefreshLimiter) Reset() {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	limiter.lastRequestTime = time.Time{}
	limiter.requestCount = 0

	logrus.WithField("component", "ManualRefreshLimiter").Debug("Reset manual refresh limiter state")
}
