package venue

import (
	"sync"
	"sync/atomic"
	"time"
)

// latencyEWMAWeight is the weight of the newest sample in the moving average.
const latencyEWMAWeight = 0.2

// HealthTracker keeps per-venue operational state. Counters are atomic so
// concurrent aggregator rounds never serialize on unrelated venues; the map
// itself is written only at registration time.
type HealthTracker struct {
	unhealthyThreshold int32
	mu                 sync.RWMutex
	venues             map[string]*venueState
}

type venueState struct {
	consecutiveFailures atomic.Int32
	latencyMicros       atomic.Int64 // EWMA of successful call latency
}

// Health is a read-only snapshot of one venue's state.
type Health struct {
	VenueID             string        `json:"venue_id"`
	Healthy             bool          `json:"healthy"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	AvgLatency          time.Duration `json:"avg_latency"`
}

// NewHealthTracker creates a tracker that marks a venue unhealthy after
// unhealthyThreshold consecutive failures.
func NewHealthTracker(unhealthyThreshold int) *HealthTracker {
	return &HealthTracker{
		unhealthyThreshold: int32(unhealthyThreshold),
		venues:             make(map[string]*venueState),
	}
}

// Register adds a venue to the tracker. Registering twice is a no-op.
func (t *HealthTracker) Register(venueID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.venues[venueID]; !exists {
		t.venues[venueID] = &venueState{}
		VenueHealthy.WithLabelValues(venueID).Set(1)
	}
}

func (t *HealthTracker) state(venueID string) *venueState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.venues[venueID]
}

// RecordSuccess resets the failure count and folds the sample into the
// latency average. One success fully restores a venue's health.
func (t *HealthTracker) RecordSuccess(venueID string, latency time.Duration) {
	s := t.state(venueID)
	if s == nil {
		return
	}

	s.consecutiveFailures.Store(0)

	prev := s.latencyMicros.Load()
	sample := latency.Microseconds()
	if prev == 0 {
		s.latencyMicros.Store(sample)
	} else {
		next := int64(float64(prev)*(1-latencyEWMAWeight) + float64(sample)*latencyEWMAWeight)
		s.latencyMicros.Store(next)
	}

	ConsecutiveFailures.WithLabelValues(venueID).Set(0)
	VenueHealthy.WithLabelValues(venueID).Set(1)
}

// RecordFailure increments the consecutive-failure count and returns the new
// value.
func (t *HealthTracker) RecordFailure(venueID string) int {
	s := t.state(venueID)
	if s == nil {
		return 0
	}

	failures := s.consecutiveFailures.Add(1)
	ConsecutiveFailures.WithLabelValues(venueID).Set(float64(failures))
	if failures >= t.unhealthyThreshold {
		VenueHealthy.WithLabelValues(venueID).Set(0)
	}

	return int(failures)
}

// Healthy reports whether the venue is below the failure threshold.
// Unknown venues are treated as healthy so a fresh adapter gets probed.
func (t *HealthTracker) Healthy(venueID string) bool {
	s := t.state(venueID)
	if s == nil {
		return true
	}
	return s.consecutiveFailures.Load() < t.unhealthyThreshold
}

// Latency returns the venue's averaged successful-call latency.
func (t *HealthTracker) Latency(venueID string) time.Duration {
	s := t.state(venueID)
	if s == nil {
		return 0
	}
	return time.Duration(s.latencyMicros.Load()) * time.Microsecond
}

// Snapshot returns the state of every registered venue.
func (t *HealthTracker) Snapshot() []Health {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make([]Health, 0, len(t.venues))
	for id, s := range t.venues {
		failures := s.consecutiveFailures.Load()
		snapshot = append(snapshot, Health{
			VenueID:             id,
			Healthy:             failures < t.unhealthyThreshold,
			ConsecutiveFailures: int(failures),
			AvgLatency:          time.Duration(s.latencyMicros.Load()) * time.Microsecond,
		})
	}

	return snapshot
}
