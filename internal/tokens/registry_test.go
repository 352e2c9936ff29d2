package tokens

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/pkg/types"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

// mapCache is a deterministic stand-in for the ristretto cache.
type mapCache struct {
	mu    sync.Mutex
	items map[string]interface{}
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]interface{})}
}

func (c *mapCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *mapCache) Set(key string, value interface{}, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return true
}

func (c *mapCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *mapCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]interface{})
}

func (c *mapCache) Close() {}

func newTestRegistry(t *testing.T, handler http.HandlerFunc) (*Registry, *int) {
	t.Helper()

	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	logger, _ := zap.NewDevelopment()
	registry := NewRegistry(&Config{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
		Cache:   newMapCache(),
		TTL:     time.Hour,
		Logger:  logger,
	})
	return registry, &hits
}

func TestRegistry_Resolve(t *testing.T) {
	registry, hits := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token/"+usdcMint {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"address": "` + usdcMint + `", "symbol": "USDC", "decimals": 6}`))
	})

	info, err := registry.Resolve(context.Background(), usdcMint)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if info.Symbol != "USDC" || info.Decimals != 6 {
		t.Errorf("unexpected metadata %+v", info)
	}

	// Second resolve must come from the cache.
	_, err = registry.Resolve(context.Background(), usdcMint)
	if err != nil {
		t.Fatalf("cached resolve: %v", err)
	}
	if *hits != 1 {
		t.Errorf("expected exactly one upstream fetch, got %d", *hits)
	}
}

func TestRegistry_Resolve_NotFound(t *testing.T) {
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := registry.Resolve(context.Background(), "UnknownMint11111111111111111111111111111111")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_Resolve_ServerError(t *testing.T) {
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := registry.Resolve(context.Background(), usdcMint)
	if err == nil {
		t.Fatal("expected an error for an upstream failure")
	}
}

func TestRegistry_ToBaseUnits(t *testing.T) {
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"address": "` + usdcMint + `", "symbol": "USDC", "decimals": 6}`))
	})

	raw, err := registry.ToBaseUnits(context.Background(), usdcMint, 1.5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if raw != 1_500_000 {
		t.Errorf("expected 1500000 base units, got %d", raw)
	}

	_, err = registry.ToBaseUnits(context.Background(), usdcMint, -1)
	if err == nil {
		t.Error("negative amounts must be rejected")
	}
}
