package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/internal/aggregator"
	"github.com/dcastillo/soltrade/internal/orderbook"
	"github.com/dcastillo/soltrade/internal/testutil"
	"github.com/dcastillo/soltrade/internal/venue"
	"github.com/dcastillo/soltrade/pkg/healthprobe"
	"github.com/dcastillo/soltrade/pkg/types"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// fakeWatcher records which mints the handler registers with the feed.
type fakeWatcher struct {
	mu    sync.Mutex
	mints []string
}

func (f *fakeWatcher) Subscribe(ctx context.Context, mints []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mints = append(f.mints, mints...)
	return nil
}

func (f *fakeWatcher) Subscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.mints...)
}

type apiFixture struct {
	router  *chi.Mux
	book    *orderbook.Book
	watcher *fakeWatcher
}

func newAPIFixture(t *testing.T, adapters ...venue.Adapter) *apiFixture {
	t.Helper()

	logger, _ := zap.NewDevelopment()

	book := orderbook.New(&orderbook.Config{
		Logger:          logger,
		EventBufferSize: 256,
		Retention:       time.Hour,
		SweepInterval:   time.Hour,
	})
	agg := aggregator.New(&aggregator.Config{
		Adapters:          adapters,
		Health:            venue.NewHealthTracker(3),
		AggregateDeadline: 500 * time.Millisecond,
		Logger:            logger,
	})
	watcher := &fakeWatcher{}

	router := chi.NewRouter()
	oh := NewOrdersHandler(book, watcher, 24*time.Hour, logger)
	router.Post("/api/orders", oh.HandleCreate)
	router.Get("/api/orders", oh.HandleList)
	router.Get("/api/orders/{id}", oh.HandleGet)
	router.Delete("/api/orders/{id}", oh.HandleCancel)

	th := NewTradeHandler(nil, agg, logger)
	router.Get("/api/quote", th.HandleQuote)
	router.Get("/api/venues", th.HandleVenues)

	return &apiFixture{router: router, book: book, watcher: watcher}
}

func (f *apiFixture) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func createBody() CreateOrderRequest {
	return CreateOrderRequest{
		Account:      "trader-1",
		InputMint:    usdcMint,
		OutputMint:   solMint,
		Side:         "buy",
		Kind:         "limit",
		Amount:       5_000_000,
		TriggerPrice: 150,
	}
}

func TestOrders_CreateActivatesAndWatches(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/orders", createBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CreateOrderResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State != "active" {
		t.Errorf("expected active, got %s", resp.State)
	}

	order, err := f.book.Get(resp.OrderID)
	if err != nil {
		t.Fatalf("created order missing: %v", err)
	}
	if order.State != types.StateActive {
		t.Errorf("expected active in the book, got %s", order.State)
	}

	// A buy order watches the token it is buying.
	watched := f.watcher.Subscribed()
	if len(watched) != 1 || watched[0] != solMint {
		t.Errorf("expected the output mint watched, got %v", watched)
	}
}

func TestOrders_CreateLadderSplitsAmount(t *testing.T) {
	f := newAPIFixture(t)

	body := createBody()
	body.Side = "sell"
	body.Kind = "take_profit"
	body.InputMint = solMint
	body.OutputMint = usdcMint
	body.TriggerPrice = 0
	body.Ladder = []LadderRung{
		{TriggerPrice: 160, Percent: 50},
		{TriggerPrice: 180, Percent: 50},
	}

	rec := f.do(t, http.MethodPost, "/api/orders", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CreateOrderResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)

	order, _ := f.book.Get(resp.OrderID)
	if len(order.Ladder) != 2 {
		t.Fatalf("expected 2 rungs, got %d", len(order.Ladder))
	}
	if order.Ladder[0].SubAmount != 2_500_000 || order.Ladder[1].SubAmount != 2_500_000 {
		t.Errorf("expected each rung to carry half the amount, got %d and %d",
			order.Ladder[0].SubAmount, order.Ladder[1].SubAmount)
	}
}

func TestOrders_CreateLadderAssignsRoundingResidual(t *testing.T) {
	f := newAPIFixture(t)

	body := createBody()
	body.Side = "sell"
	body.Kind = "take_profit"
	body.InputMint = solMint
	body.OutputMint = usdcMint
	body.TriggerPrice = 0
	body.Amount = 105
	body.Ladder = []LadderRung{
		{TriggerPrice: 160, Percent: 30},
		{TriggerPrice: 170, Percent: 30},
		{TriggerPrice: 180, Percent: 40},
	}

	rec := f.do(t, http.MethodPost, "/api/orders", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CreateOrderResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)

	order, _ := f.book.Get(resp.OrderID)
	if len(order.Ladder) != 3 {
		t.Fatalf("expected 3 rungs, got %d", len(order.Ladder))
	}

	// 30% of 105 floors to 31, so two rungs strand 1 unit; a full ladder
	// must still spend the whole amount.
	var total uint64
	for _, rung := range order.Ladder {
		total += rung.SubAmount
	}
	if total != body.Amount {
		t.Errorf("rung amounts sum to %d, want %d", total, body.Amount)
	}
	if order.Ladder[2].SubAmount != 43 {
		t.Errorf("last rung must absorb the rounding residual, got %d", order.Ladder[2].SubAmount)
	}
}

func TestOrders_CreateRejectsBadInput(t *testing.T) {
	f := newAPIFixture(t)

	body := createBody()
	body.Side = "hold"
	if rec := f.do(t, http.MethodPost, "/api/orders", body); rec.Code != http.StatusBadRequest {
		t.Errorf("bad side: expected 400, got %d", rec.Code)
	}

	body = createBody()
	body.Kind = "market"
	if rec := f.do(t, http.MethodPost, "/api/orders", body); rec.Code != http.StatusBadRequest {
		t.Errorf("market kind: expected 400, got %d", rec.Code)
	}

	body = createBody()
	body.Amount = 0
	if rec := f.do(t, http.MethodPost, "/api/orders", body); rec.Code != http.StatusBadRequest {
		t.Errorf("zero amount: expected 400, got %d", rec.Code)
	}
}

func TestOrders_GetAndList(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/orders", createBody())
	var resp CreateOrderResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)

	rec = f.do(t, http.MethodGet, "/api/orders/"+resp.OrderID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/orders/nonexistent", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/orders?account=trader-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listed []*types.Order
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("expected 1 active order, got %d", len(listed))
	}

	rec = f.do(t, http.MethodGet, "/api/orders", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without account, got %d", rec.Code)
	}
}

func TestOrders_Cancel(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/orders", createBody())
	var resp CreateOrderResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)

	rec = f.do(t, http.MethodDelete, "/api/orders/"+resp.OrderID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	order, _ := f.book.Get(resp.OrderID)
	if order.State != types.StateCancelled {
		t.Errorf("expected cancelled, got %s", order.State)
	}

	// A second cancel finds the order already terminal.
	rec = f.do(t, http.MethodDelete, "/api/orders/"+resp.OrderID, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for a terminal order, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/orders/nonexistent", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", rec.Code)
	}
}

func TestOrders_CancelTriggeredConflicts(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/orders", createBody())
	var resp CreateOrderResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)

	err := f.book.Transition(resp.OrderID, types.StateActive, types.StateTriggered)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	rec = f.do(t, http.MethodDelete, "/api/orders/"+resp.OrderID, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("an in-flight order must not be cancellable, got %d", rec.Code)
	}
}

func TestQuote_ReturnsBestRoute(t *testing.T) {
	better := &testutil.MockAdapter{
		VenueID: "jupiter",
		QuoteFn: func(_ context.Context, pair types.Pair, in uint64, _ types.Side) (*types.Quote, error) {
			return testutil.NewQuote("jupiter", pair, in, 153_000_000, 0.001), nil
		},
	}
	worse := &testutil.MockAdapter{
		VenueID: "raydium",
		QuoteFn: func(_ context.Context, pair types.Pair, in uint64, _ types.Side) (*types.Quote, error) {
			return testutil.NewQuote("raydium", pair, in, 150_000_000, 0.001), nil
		},
	}
	f := newAPIFixture(t, better, worse)

	rec := f.do(t, http.MethodGet,
		"/api/quote?input_mint="+usdcMint+"&output_mint="+solMint+"&amount=1000000&side=buy", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var quote types.Quote
	if err := json.NewDecoder(rec.Body).Decode(&quote); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if quote.VenueID != "jupiter" {
		t.Errorf("expected the best venue, got %s", quote.VenueID)
	}
}

func TestQuote_ValidatesParams(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/quote?amount=1000000", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing mints: expected 400, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet,
		"/api/quote?input_mint="+usdcMint+"&output_mint="+solMint+"&amount=zero", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad amount: expected 400, got %d", rec.Code)
	}
}

func TestVenues_ReportsHealth(t *testing.T) {
	adapter := &testutil.MockAdapter{VenueID: "jupiter"}
	f := newAPIFixture(t, adapter)

	rec := f.do(t, http.MethodGet, "/api/venues", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snapshot []venue.Health
	if err := json.NewDecoder(rec.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0].VenueID != "jupiter" {
		t.Errorf("unexpected snapshot %+v", snapshot)
	}
	if !snapshot[0].Healthy {
		t.Error("fresh venue must report healthy")
	}
}

func TestServer_HealthEndpoints(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	checker := healthprobe.New()

	srv := New(&Config{
		Port:          "0",
		Logger:        logger,
		HealthChecker: checker,
	})
	if srv == nil {
		t.Fatal("expected a server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("shutdown before start: %v", err)
	}
}
