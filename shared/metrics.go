package shared

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EngineMetrics tracks fetch-cycle outcomes for the market sync engine.
// It is diagnostics only; the scheduler never consults it when choosing an
// interval.
type EngineMetrics struct {
	TotalCycles       int64            `json:"total_cycles"`
	SuccessfulCycles  int64            `json:"successful_cycles"`
	FailedCycles      int64            `json:"failed_cycles"`
	SkippedTicks      int64            `json:"skipped_ticks"`
	FallbackCycles    int64            `json:"fallback_cycles"`
	ManualRefreshes   int64            `json:"manual_refreshes"`
	ProviderFailures  map[string]int64 `json:"provider_failures"`
	LastCycleDuration time.Duration    `json:"last_cycle_duration"`
	LastUpdated       time.Time        `json:"last_updated"`
	mutex             sync.RWMutex
}

// NewEngineMetrics creates a new metrics tracker for the sync engine.
func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{
		ProviderFailures: make(map[string]int64),
		LastUpdated:      time.Now(),
	}
}

// RecordCycle records one completed fetch cycle. Source names the provider
// that satisfied the cycle and fallback marks cycles served by the secondary.
func (m *EngineMetrics) RecordCycle(success bool, fallback bool, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalCycles++
	m.LastCycleDuration = duration
	if success {
		m.SuccessfulCycles++
	} else {
		m.FailedCycles++
	}
	if fallback {
		m.FallbackCycles++
	}
	m.LastUpdated = time.Now()
}

// RecordSkippedTick records a tick dropped by the non-overlap guard.
func (m *EngineMetrics) RecordSkippedTick() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.SkippedTicks++
	m.LastUpdated = time.Now()
}

// RecordManualRefresh records a user-triggered refresh.
func (m *EngineMetrics) RecordManualRefresh() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.ManualRefreshes++
	m.LastUpdated = time.Now()
}

// RecordProviderFailure records a failed attempt against a named provider.
func (m *EngineMetrics) RecordProviderFailure(provider string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.ProviderFailures[provider]++
	m.LastUpdated = time.Now()
}

// GetSuccessRate returns the cycle success rate as a percentage.
func (m *EngineMetrics) GetSuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.TotalCycles == 0 {
		return 0.0
	}
	return float64(m.SuccessfulCycles) / float64(m.TotalCycles) * 100.0
}

// EngineMetricsSnapshot is a point-in-time copy of the counters. It carries
// no lock, so it can be serialized or passed around by value freely.
type EngineMetricsSnapshot struct {
	TotalCycles       int64            `json:"total_cycles"`
	SuccessfulCycles  int64            `json:"successful_cycles"`
	FailedCycles      int64            `json:"failed_cycles"`
	SkippedTicks      int64            `json:"skipped_ticks"`
	FallbackCycles    int64            `json:"fallback_cycles"`
	ManualRefreshes   int64            `json:"manual_refreshes"`
	ProviderFailures  map[string]int64 `json:"provider_failures"`
	LastCycleDuration time.Duration    `json:"last_cycle_duration"`
	LastUpdated       time.Time        `json:"last_updated"`
}

// SuccessRate returns the cycle success rate of the snapshot as a percentage.
func (s EngineMetricsSnapshot) SuccessRate() float64 {
	if s.TotalCycles == 0 {
		return 0.0
	}
	return float64(s.SuccessfulCycles) / float64(s.TotalCycles) * 100.0
}

// GetSnapshot returns a thread-safe copy of current metrics.
func (m *EngineMetrics) GetSnapshot() EngineMetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	failuresCopy := make(map[string]int64, len(m.ProviderFailures))
	for k, v := range m.ProviderFailures {
		failuresCopy[k] = v
	}

	return EngineMetricsSnapshot{
		TotalCycles:       m.TotalCycles,
		SuccessfulCycles:  m.SuccessfulCycles,
		FailedCycles:      m.FailedCycles,
		SkippedTicks:      m.SkippedTicks,
		FallbackCycles:    m.FallbackCycles,
		ManualRefreshes:   m.ManualRefreshes,
		ProviderFailures:  failuresCopy,
		LastCycleDuration: m.LastCycleDuration,
		LastUpdated:       m.LastUpdated,
	}
}

// LogSummary logs a metrics summary with structured fields.
func (m *EngineMetrics) LogSummary() {
	snapshot := m.GetSnapshot()

	logrus.WithFields(logrus.Fields{
		"total_cycles":        snapshot.TotalCycles,
		"successful_cycles":   snapshot.SuccessfulCycles,
		"failed_cycles":       snapshot.FailedCycles,
		"skipped_ticks":       snapshot.SkippedTicks,
		"fallback_cycles":     snapshot.FallbackCycles,
		"manual_refreshes":    snapshot.ManualRefreshes,
		"provider_failures":   snapshot.ProviderFailures,
		"success_rate":        snapshot.SuccessRate(),
		"last_cycle_duration": snapshot.LastCycleDuration,
		"last_updated":        snapshot.LastUpdated,
	}).Info("Engine metrics summary")
}
