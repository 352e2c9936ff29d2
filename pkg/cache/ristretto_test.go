package cache

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	c, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}

	rc := c.(*RistrettoCache)
	t.Cleanup(rc.Close)
	return rc
}

func TestRistretto_SetGet(t *testing.T) {
	c := newTestCache(t)

	ok := c.Set("token:abc", "USDC", time.Minute)
	if !ok {
		t.Fatal("set rejected")
	}
	c.Wait()

	value, found := c.Get("token:abc")
	if !found {
		t.Fatal("expected a hit")
	}
	if value.(string) != "USDC" {
		t.Errorf("unexpected value %v", value)
	}
}

func TestRistretto_Miss(t *testing.T) {
	c := newTestCache(t)

	_, found := c.Get("absent")
	if found {
		t.Error("expected a miss")
	}
}

func TestRistretto_TTLExpiry(t *testing.T) {
	c := newTestCache(t)

	c.Set("short-lived", 1, 20*time.Millisecond)
	c.Wait()

	time.Sleep(50 * time.Millisecond)
	_, found := c.Get("short-lived")
	if found {
		t.Error("entry must expire after its TTL")
	}
}

func TestRistretto_Delete(t *testing.T) {
	c := newTestCache(t)

	c.Set("doomed", 1, time.Minute)
	c.Wait()
	c.Delete("doomed")

	_, found := c.Get("doomed")
	if found {
		t.Error("deleted entry must be gone")
	}
}

func TestRistretto_Clear(t *testing.T) {
	c := newTestCache(t)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Wait()
	c.Clear()

	if _, found := c.Get("a"); found {
		t.Error("clear must drop every entry")
	}
}
