package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/internal/orderbook"
	"github.com/dcastillo/soltrade/pkg/types"
)

// OrdersHandler handles HTTP requests for conditional orders.
type OrdersHandler struct {
	book       *orderbook.Book
	watcher    Watcher
	defaultTTL time.Duration
	logger     *zap.Logger
}

// NewOrdersHandler creates a new orders handler.
func NewOrdersHandler(book *orderbook.Book, watcher Watcher, defaultTTL time.Duration, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		book:       book,
		watcher:    watcher,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// CreateOrderRequest is the body of POST /api/orders.
type CreateOrderRequest struct {
	Account      string        `json:"account"`
	InputMint    string        `json:"input_mint"`
	OutputMint   string        `json:"output_mint"`
	Side         string        `json:"side"`
	Kind         string        `json:"kind"`
	Amount       uint64        `json:"amount"`
	TriggerPrice float64       `json:"trigger_price,omitempty"`
	Ladder       []LadderRung  `json:"ladder,omitempty"`
	AntiMEV      bool          `json:"anti_mev"`
	TTLSeconds   int64         `json:"ttl_seconds,omitempty"`
}

// LadderRung is one rung of a laddered conditional order.
type LadderRung struct {
	TriggerPrice float64 `json:"trigger_price"`
	Percent      float64 `json:"percent"`
}

// CreateOrderResponse is the body returned for a created order.
type CreateOrderResponse struct {
	OrderID   string    `json:"order_id"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleCreate handles POST /api/orders.
func (h *OrdersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.writeError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	side := types.Side(req.Side)
	if side != types.SideBuy && side != types.SideSell {
		h.writeError(w, "side must be 'buy' or 'sell'", http.StatusBadRequest)
		return
	}

	kind := types.OrderKind(req.Kind)
	switch kind {
	case types.KindLimit, types.KindStopLoss, types.KindTakeProfit:
	default:
		h.writeError(w, "kind must be 'limit', 'stop_loss' or 'take_profit'", http.StatusBadRequest)
		return
	}

	ttl := h.defaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	order := &types.Order{
		Account:      req.Account,
		Pair:         types.Pair{InputMint: req.InputMint, OutputMint: req.OutputMint},
		Side:         side,
		Kind:         kind,
		Amount:       req.Amount,
		TriggerPrice: req.TriggerPrice,
		AntiMEV:      req.AntiMEV,
		ExpiresAt:    time.Now().Add(ttl),
	}

	if len(req.Ladder) > 0 {
		var percentSum float64
		var allocated uint64
		for _, rung := range req.Ladder {
			sub := uint64(float64(req.Amount) * rung.Percent / 100)
			percentSum += rung.Percent
			allocated += sub
			order.Ladder = append(order.Ladder, types.Rung{
				TriggerPrice: rung.TriggerPrice,
				Percent:      rung.Percent,
				SubAmount:    sub,
			})
		}
		// Flooring each rung can strand a few units that no rung would ever
		// trade. When the ladder spends the whole amount, the last rung
		// absorbs the remainder.
		if percentSum >= 100-1e-9 && allocated < req.Amount {
			order.Ladder[len(order.Ladder)-1].SubAmount += req.Amount - allocated
		}
	}

	id, err := h.book.Insert(order)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Activate immediately: Pending exists so a crash between insert and
	// watch registration never leaves a silently armed order.
	err = h.book.Transition(id, types.StatePending, types.StateActive)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if h.watcher != nil {
		err = h.watcher.Subscribe(r.Context(), []string{order.WatchMint()})
		if err != nil {
			h.logger.Warn("watch-subscribe-failed",
				zap.String("order-id", id),
				zap.String("mint", order.WatchMint()),
				zap.Error(err))
		}
	}

	h.logger.Info("order-created",
		zap.String("order-id", id),
		zap.String("account", req.Account),
		zap.String("kind", string(kind)),
		zap.Uint64("amount", req.Amount))

	h.writeJSON(w, http.StatusCreated, CreateOrderResponse{
		OrderID:   id,
		State:     string(types.StateActive),
		ExpiresAt: order.ExpiresAt,
	})
}

// HandleGet handles GET /api/orders/{id}.
func (h *OrdersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.book.Get(id)
	if err != nil {
		h.writeError(w, "order not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

// HandleList handles GET /api/orders?account=<account>.
func (h *OrdersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		h.writeError(w, "missing required query parameter: account", http.StatusBadRequest)
		return
	}

	orders := h.book.ListActiveByAccount(account)
	h.writeJSON(w, http.StatusOK, orders)
}

// HandleCancel handles DELETE /api/orders/{id}. Cancellation only wins
// against orders that are still Active; an order already claimed by the
// trigger path reports a conflict.
func (h *OrdersHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.book.Transition(id, types.StateActive, types.StateCancelled)
	switch {
	case err == nil:
		h.logger.Info("order-cancelled", zap.String("order-id", id))
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, types.ErrNotFound):
		h.writeError(w, "order not found", http.StatusNotFound)
	case errors.Is(err, types.ErrInvalidTransition):
		h.writeError(w, "order is not cancellable in its current state", http.StatusConflict)
	default:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *OrdersHandler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func (h *OrdersHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
