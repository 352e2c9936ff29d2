package venue

import (
	"sync"
	"testing"
	"time"
)

func TestHealthTracker_ThresholdAndRecovery(t *testing.T) {
	tracker := NewHealthTracker(3)
	tracker.Register("jupiter")

	if !tracker.Healthy("jupiter") {
		t.Fatal("fresh venue must be healthy")
	}

	tracker.RecordFailure("jupiter")
	tracker.RecordFailure("jupiter")
	if !tracker.Healthy("jupiter") {
		t.Fatal("venue must stay healthy below the threshold")
	}

	tracker.RecordFailure("jupiter")
	if tracker.Healthy("jupiter") {
		t.Fatal("venue must be unhealthy at 3 consecutive failures")
	}

	// One success fully restores health.
	tracker.RecordSuccess("jupiter", 10*time.Millisecond)
	if !tracker.Healthy("jupiter") {
		t.Fatal("venue must recover after one success")
	}
}

func TestHealthTracker_SuccessResetsCount(t *testing.T) {
	tracker := NewHealthTracker(3)
	tracker.Register("raydium")

	tracker.RecordFailure("raydium")
	tracker.RecordFailure("raydium")
	tracker.RecordSuccess("raydium", time.Millisecond)
	tracker.RecordFailure("raydium")
	tracker.RecordFailure("raydium")

	if !tracker.Healthy("raydium") {
		t.Fatal("failure count must reset on success, not accumulate")
	}
}

func TestHealthTracker_UnknownVenueHealthy(t *testing.T) {
	tracker := NewHealthTracker(3)

	if !tracker.Healthy("unknown") {
		t.Fatal("unknown venues are treated as healthy")
	}
	if got := tracker.RecordFailure("unknown"); got != 0 {
		t.Fatalf("expected 0 for unregistered venue, got %d", got)
	}
}

func TestHealthTracker_LatencyEWMA(t *testing.T) {
	tracker := NewHealthTracker(3)
	tracker.Register("jupiter")

	tracker.RecordSuccess("jupiter", 100*time.Millisecond)
	if got := tracker.Latency("jupiter"); got != 100*time.Millisecond {
		t.Fatalf("first sample seeds the average, got %s", got)
	}

	tracker.RecordSuccess("jupiter", 200*time.Millisecond)
	got := tracker.Latency("jupiter")
	if got <= 100*time.Millisecond || got >= 200*time.Millisecond {
		t.Fatalf("averaged latency must land between samples, got %s", got)
	}
}

func TestHealthTracker_ConcurrentRecords(t *testing.T) {
	tracker := NewHealthTracker(3)
	tracker.Register("jupiter")
	tracker.Register("raydium")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tracker.RecordFailure("jupiter")
		}()
		go func() {
			defer wg.Done()
			tracker.RecordSuccess("raydium", time.Millisecond)
		}()
	}
	wg.Wait()

	if tracker.Healthy("jupiter") {
		t.Error("jupiter must be unhealthy after 50 failures")
	}
	if !tracker.Healthy("raydium") {
		t.Error("raydium must stay healthy")
	}

	snapshot := tracker.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 venues in snapshot, got %d", len(snapshot))
	}
}
