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

func newTestJupiter(t *testing.T, handler http.HandlerFunc) (*Jupiter, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger, _ := zap.NewDevelopment()
	return NewJupiter(&JupiterConfig{
		BaseURL:       server.URL,
		Timeout:       2 * time.Second,
		SlippageBps:   50,
		QuoteValidity: 10 * time.Second,
		Logger:        logger,
	}), server
}

var testPair = types.Pair{
	InputMint:  "So11111111111111111111111111111111111111112",
	OutputMint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
}

func TestJupiter_Quote(t *testing.T) {
	jup, _ := newTestJupiter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("inputMint"); got != testPair.InputMint {
			t.Errorf("unexpected inputMint %s", got)
		}
		if got := r.URL.Query().Get("swapMode"); got != "ExactIn" {
			t.Errorf("unexpected swapMode %s", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"inAmount": "1000000",
			"outAmount": "153000000",
			"priceImpactPct": "0.12",
			"platformFee": {"amount": "1000"},
			"routePlan": [
				{"swapInfo": {"ammKey": "pool-a", "label": "Orca"}},
				{"swapInfo": {"ammKey": "pool-b", "label": "Raydium"}}
			]
		}`))
	})

	quote, err := jup.Quote(context.Background(), testPair, 1_000_000, types.SideBuy)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if quote.VenueID != JupiterID {
		t.Errorf("expected venue %s, got %s", JupiterID, quote.VenueID)
	}
	if quote.OutAmount != 153_000_000 {
		t.Errorf("expected out amount 153000000, got %d", quote.OutAmount)
	}
	if quote.PriceImpact != 0.0012 {
		t.Errorf("expected price impact 0.0012, got %f", quote.PriceImpact)
	}
	if quote.FeeAmount != 1000 {
		t.Errorf("expected fee 1000, got %d", quote.FeeAmount)
	}
	if len(quote.Route) != 2 || quote.Route[0] != "pool-a" {
		t.Errorf("unexpected route %v", quote.Route)
	}
	if len(quote.Payload) == 0 {
		t.Error("expected raw payload to be retained")
	}
	if quote.Expired(time.Now()) {
		t.Error("fresh quote must not be expired")
	}
}

func TestJupiter_Quote_NoRoute(t *testing.T) {
	jup, _ := newTestJupiter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "Could not find any route", "errorCode": "COULD_NOT_FIND_ANY_ROUTE"}`))
	})

	_, err := jup.Quote(context.Background(), testPair, 1_000_000, types.SideBuy)
	if !errors.Is(err, types.ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestJupiter_Quote_ZeroOutput(t *testing.T) {
	jup, _ := newTestJupiter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"inAmount": "1000000", "outAmount": "0", "priceImpactPct": "0"}`))
	})

	_, err := jup.Quote(context.Background(), testPair, 1_000_000, types.SideBuy)
	if !errors.Is(err, types.ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestJupiter_Quote_ServerError(t *testing.T) {
	jup, _ := newTestJupiter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := jup.Quote(context.Background(), testPair, 1_000_000, types.SideBuy)
	if !errors.Is(err, types.ErrVenueUnreachable) {
		t.Fatalf("expected ErrVenueUnreachable, got %v", err)
	}
}

func TestJupiter_Quote_Unreachable(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	jup := NewJupiter(&JupiterConfig{
		BaseURL:       "http://127.0.0.1:1",
		Timeout:       200 * time.Millisecond,
		SlippageBps:   50,
		QuoteValidity: 10 * time.Second,
		Logger:        logger,
	})

	_, err := jup.Quote(context.Background(), testPair, 1_000_000, types.SideBuy)
	if !errors.Is(err, types.ErrVenueUnreachable) {
		t.Fatalf("expected ErrVenueUnreachable, got %v", err)
	}
}

func TestJupiter_BuildTransaction(t *testing.T) {
	jup, _ := newTestJupiter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/swap" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		_, _ = w.Write([]byte(`{"swapTransaction": "AQIDBA=="}`))
	})

	quote := &types.Quote{
		VenueID:   JupiterID,
		Pair:      testPair,
		InAmount:  1_000_000,
		OutAmount: 153_000_000,
		FetchedAt: time.Now(),
		ValidFor:  10 * time.Second,
		Payload:   []byte(`{"outAmount": "153000000"}`),
	}

	txn, err := jup.BuildTransaction(context.Background(), quote, "pubkey-base64")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if txn.Base64 != "AQIDBA==" {
		t.Errorf("unexpected transaction payload %s", txn.Base64)
	}
	if txn.VenueID != JupiterID {
		t.Errorf("unexpected venue %s", txn.VenueID)
	}
}

func TestJupiter_BuildTransaction_ExpiredQuote(t *testing.T) {
	jup, _ := newTestJupiter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("expired quote must not reach the venue")
	})

	quote := &types.Quote{
		VenueID:   JupiterID,
		FetchedAt: time.Now().Add(-time.Minute),
		ValidFor:  10 * time.Second,
	}

	_, err := jup.BuildTransaction(context.Background(), quote, "pubkey")
	if !errors.Is(err, types.ErrRouteExpired) {
		t.Fatalf("expected ErrRouteExpired, got %v", err)
	}
}

func TestJupiter_BuildTransaction_RouteGone(t *testing.T) {
	jup, _ := newTestJupiter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	quote := &types.Quote{
		VenueID:   JupiterID,
		FetchedAt: time.Now(),
		ValidFor:  10 * time.Second,
		Payload:   []byte(`{}`),
	}

	_, err := jup.BuildTransaction(context.Background(), quote, "pubkey")
	if !errors.Is(err, types.ErrRouteExpired) {
		t.Fatalf("expected ErrRouteExpired, got %v", err)
	}
}

func TestJupiter_BuildTransaction_WrongVenue(t *testing.T) {
	jup, _ := newTestJupiter(t, func(w http.ResponseWriter, r *http.Request) {})

	quote := &types.Quote{
		VenueID:   RaydiumID,
		FetchedAt: time.Now(),
		ValidFor:  10 * time.Second,
	}

	_, err := jup.BuildTransaction(context.Background(), quote, "pubkey")
	if !errors.Is(err, types.ErrTransactionBuild) {
		t.Fatalf("expected ErrTransactionBuild, got %v", err)
	}
}
