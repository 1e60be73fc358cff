package services

import (
	"sync"

	"github.com/Ssaent/StockPulse-sub000/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// subscriberBuffer is the per-subscriber channel depth. A slow adapter drops
// intermediate states rather than blocking the engine.
const subscriberBuffer = 16

// SnapshotStore holds the latest successfully fetched snapshot plus error and
// staleness metadata. It is the only state the presentation layer reads.
// Writers are the scheduler and the manual refresh path; everyone else is a
// read-only subscriber.
type SnapshotStore struct {
	mutex        sync.RWMutex
	lastSnapshot *models.MarketSnapshot
	lastError    error
	ageSeconds   int64
	intervalMs   int64
	active       bool
	subscribers  map[uuid.UUID]chan models.RefreshState
}

// NewSnapshotStore creates an empty, active store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		active:      true,
		subscribers: make(map[uuid.UUID]chan models.RefreshState),
	}
}

// ApplySnapshot records a successful fetch cycle: the snapshot replaces the
// previous one, the last error is cleared and the age counter resets to zero.
// Late results arriving after Deactivate are dropped.
func (s *SnapshotStore) ApplySnapshot(snapshot *models.MarketSnapshot) {
	s.mutex.Lock()
	if !s.active {
		s.mutex.Unlock()
		logrus.WithField("component", "SnapshotStore").Debug("Dropping snapshot applied after shutdown")
		return
	}
	s.lastSnapshot = snapshot
	s.lastError = nil
	s.ageSeconds = 0
	state := s.stateLocked()
	s.mutex.Unlock()

	s.notify(state)
}

// ApplyError records a failed fetch cycle. The last good snapshot is left
// untouched so the dashboard keeps showing stale-but-present data, and the
// age counter keeps climbing. Subscribers are notified even when the same
// error repeats, so an adapter can restart a retrying animation.
func (s *SnapshotStore) ApplyError(err error) {
	s.mutex.Lock()
	if !s.active {
		s.mutex.Unlock()
		logrus.WithField("component", "SnapshotStore").Debug("Dropping error applied after shutdown")
		return
	}
	s.lastError = err
	state := s.stateLocked()
	s.mutex.Unlock()

	s.notify(state)
}

// TickAge advances the staleness counter by one second. Driven by the
// scheduler's age ticker, independent of fetch cycles.
func (s *SnapshotStore) TickAge() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.lastSnapshot != nil {
		s.ageSeconds++
	}
}

// SetInterval records the interval currently in effect, for display only.
func (s *SnapshotStore) SetInterval(intervalMs int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.intervalMs = intervalMs
}

// State returns a copy of the current refresh state.
func (s *SnapshotStore) State() models.RefreshState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.stateLocked()
}

func (s *SnapshotStore) stateLocked() models.RefreshState {
	state := models.RefreshState{
		LastSnapshot: s.lastSnapshot,
		AgeSeconds:   s.ageSeconds,
		IntervalMs:   s.intervalMs,
	}
	if s.lastError != nil {
		state.LastError = s.lastError.Error()
	}
	return state
}

// Subscribe registers a read-only consumer. Every apply call emits one state
// on the returned channel; slow consumers miss intermediate states.
func (s *SnapshotStore) Subscribe() (uuid.UUID, <-chan models.RefreshState) {
	id := uuid.New()
	ch := make(chan models.RefreshState, subscriberBuffer)

	s.mutex.Lock()
	s.subscribers[id] = ch
	s.mutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"component":     "SnapshotStore",
		"subscriber_id": id,
	}).Debug("Subscriber registered")
	return id, ch
}

// Unsubscribe removes a consumer and closes its channel.
func (s *SnapshotStore) Unsubscribe(id uuid.UUID) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		delete(s.subscribers, id)
		close(ch)
	}
}

// Deactivate detaches the store from future applies. Called when the
// scheduler stops, so an in-flight fetch completing late has no visible
// effect. Idempotent.
func (s *SnapshotStore) Deactivate() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.active {
		return
	}
	s.active = false
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

func (s *SnapshotStore) notify(state models.RefreshState) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// Subscriber buffer full, skip
		}
	}
}
