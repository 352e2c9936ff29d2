// Package tokens resolves mint addresses to token metadata.
package tokens

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/pkg/cache"
	"github.com/dcastillo/soltrade/pkg/types"
)

// Registry fetches token metadata from a token-list service and caches it.
// Metadata is immutable per mint, so the TTL is long and misses are cheap.
type Registry struct {
	baseURL string
	client  *http.Client
	cache   cache.Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// Config holds registry configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Cache   cache.Cache
	TTL     time.Duration
	Logger  *zap.Logger
}

// NewRegistry creates a new token registry.
func NewRegistry(cfg *Config) *Registry {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	return &Registry{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   cfg.Cache,
		ttl:     ttl,
		logger:  cfg.Logger,
	}
}

// Resolve returns metadata for a mint, consulting the cache first.
func (r *Registry) Resolve(ctx context.Context, mint string) (*types.TokenInfo, error) {
	cacheKey := fmt.Sprintf("token:%s", mint)

	if r.cache != nil {
		if cached, ok := r.cache.Get(cacheKey); ok {
			if info, ok := cached.(*types.TokenInfo); ok {
				return info, nil
			}
		}
	}

	info, err := r.fetch(ctx, mint)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(cacheKey, info, r.ttl)
	}

	return info, nil
}

func (r *Registry) fetch(ctx context.Context, mint string) (*types.TokenInfo, error) {
	url := fmt.Sprintf("%s/token/%s", r.baseURL, mint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		LookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch token metadata for %s: %w", mint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		LookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read token metadata response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		LookupsTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("token %s: %w", mint, types.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		LookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("token metadata returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Decimals uint8  `json:"decimals"`
	}
	err = json.Unmarshal(body, &payload)
	if err != nil {
		LookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("parse token metadata: %w", err)
	}

	LookupsTotal.WithLabelValues("success").Inc()
	LookupDurationSeconds.Observe(time.Since(start).Seconds())

	r.logger.Debug("token-resolved",
		zap.String("mint", mint),
		zap.String("symbol", payload.Symbol),
		zap.Uint8("decimals", payload.Decimals))

	return &types.TokenInfo{
		Mint:     mint,
		Symbol:   payload.Symbol,
		Decimals: payload.Decimals,
	}, nil
}

// ToBaseUnits converts a UI amount to raw base units for a mint.
func (r *Registry) ToBaseUnits(ctx context.Context, mint string, uiAmount float64) (uint64, error) {
	info, err := r.Resolve(ctx, mint)
	if err != nil {
		return 0, err
	}

	scale := 1.0
	for i := uint8(0); i < info.Decimals; i++ {
		scale *= 10
	}
	if uiAmount < 0 {
		return 0, fmt.Errorf("amount must be non-negative, got %f", uiAmount)
	}

	return uint64(uiAmount * scale), nil
}
