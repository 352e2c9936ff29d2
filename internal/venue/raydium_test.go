package venue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/pkg/types"
)

func newTestRaydium(t *testing.T, handler http.HandlerFunc) *Raydium {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger, _ := zap.NewDevelopment()
	return NewRaydium(&RaydiumConfig{
		BaseURL:       server.URL,
		Timeout:       2 * time.Second,
		SlippageBps:   50,
		QuoteValidity: 10 * time.Second,
		Logger:        logger,
	})
}

func TestRaydium_Quote(t *testing.T) {
	ray := newTestRaydium(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/compute/swap-base-in" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("txVersion"); got != "V0" {
			t.Errorf("unexpected txVersion %s", got)
		}

		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {
				"outputAmount": "152500000",
				"priceImpactPct": 0.2,
				"routePlan": [
					{"poolId": "pool-x", "feeAmount": "600"},
					{"poolId": "pool-y", "feeAmount": "400"}
				]
			}
		}`))
	})

	quote, err := ray.Quote(context.Background(), testPair, 1_000_000, types.SideSell)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if quote.OutAmount != 152_500_000 {
		t.Errorf("expected out amount 152500000, got %d", quote.OutAmount)
	}
	if quote.PriceImpact != 0.002 {
		t.Errorf("expected price impact 0.002, got %f", quote.PriceImpact)
	}
	if quote.FeeAmount != 1000 {
		t.Errorf("expected summed fee 1000, got %d", quote.FeeAmount)
	}
	if len(quote.Route) != 2 || quote.Route[1] != "pool-y" {
		t.Errorf("unexpected route %v", quote.Route)
	}
	if quote.Side != types.SideSell {
		t.Errorf("side must be carried through, got %s", quote.Side)
	}
}

func TestRaydium_Quote_Failure(t *testing.T) {
	ray := newTestRaydium(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "msg": "ROUTE_NOT_FOUND"}`))
	})

	_, err := ray.Quote(context.Background(), testPair, 1_000_000, types.SideBuy)
	if !errors.Is(err, types.ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestRaydium_BuildTransaction(t *testing.T) {
	ray := newTestRaydium(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/swap-base-in" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success": true, "data": [{"transaction": "cmF5LXR4bg=="}]}`))
	})

	quote := &types.Quote{
		VenueID:   RaydiumID,
		FetchedAt: time.Now(),
		ValidFor:  10 * time.Second,
		Payload:   []byte(`{"outputAmount": "152500000"}`),
	}

	txn, err := ray.BuildTransaction(context.Background(), quote, "wallet-pubkey")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if txn.Base64 != "cmF5LXR4bg==" {
		t.Errorf("unexpected transaction payload %s", txn.Base64)
	}
}

func TestRaydium_BuildTransaction_StaleRoute(t *testing.T) {
	ray := newTestRaydium(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "msg": "swap response expired, recompute"}`))
	})

	quote := &types.Quote{
		VenueID:   RaydiumID,
		FetchedAt: time.Now(),
		ValidFor:  10 * time.Second,
		Payload:   []byte(`{}`),
	}

	_, err := ray.BuildTransaction(context.Background(), quote, "wallet-pubkey")
	if !errors.Is(err, types.ErrRouteExpired) {
		t.Fatalf("expected ErrRouteExpired, got %v", err)
	}
}
