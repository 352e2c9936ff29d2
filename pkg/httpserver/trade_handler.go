package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/internal/aggregator"
	"github.com/dcastillo/soltrade/internal/execution"
	"github.com/dcastillo/soltrade/pkg/types"
)

// TradeHandler handles immediate trades, quote lookups and venue health.
type TradeHandler struct {
	coordinator *execution.Coordinator
	aggregator  *aggregator.Aggregator
	logger      *zap.Logger
}

// NewTradeHandler creates a new trade handler.
func NewTradeHandler(coordinator *execution.Coordinator, agg *aggregator.Aggregator, logger *zap.Logger) *TradeHandler {
	return &TradeHandler{
		coordinator: coordinator,
		aggregator:  agg,
		logger:      logger,
	}
}

// TradeBody is the body of POST /api/trade.
type TradeBody struct {
	Account    string `json:"account"`
	InputMint  string `json:"input_mint"`
	OutputMint string `json:"output_mint"`
	Side       string `json:"side"`
	Amount     uint64 `json:"amount"`
	AntiMEV    bool   `json:"anti_mev"`
}

// HandleTrade handles POST /api/trade: a market trade executed immediately
// through the submission pipeline.
func (h *TradeHandler) HandleTrade(w http.ResponseWriter, r *http.Request) {
	var body TradeBody
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		h.writeError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	side := types.Side(body.Side)
	if side != types.SideBuy && side != types.SideSell {
		h.writeError(w, "side must be 'buy' or 'sell'", http.StatusBadRequest)
		return
	}
	if body.Account == "" || body.Amount == 0 {
		h.writeError(w, "account and a positive amount are required", http.StatusBadRequest)
		return
	}

	receipt, err := h.coordinator.ExecuteManual(r.Context(), &types.TradeRequest{
		Account: body.Account,
		Pair:    types.Pair{InputMint: body.InputMint, OutputMint: body.OutputMint},
		Side:    side,
		Amount:  body.Amount,
		AntiMEV: body.AntiMEV,
	})
	if err != nil {
		h.writeTradeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, receipt)
}

func (h *TradeHandler) writeTradeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrSlippageExceeded):
		h.writeError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, types.ErrNoRouteAvailable):
		h.writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, types.ErrSignerUnavailable):
		h.writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, types.ErrUserRejected):
		h.writeError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, types.ErrSubmissionExhausted):
		h.writeError(w, err.Error(), http.StatusBadGateway)
	default:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleQuote handles GET /api/quote. It runs one aggregation round and
// returns the best route without executing.
func (h *TradeHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	inputMint := q.Get("input_mint")
	outputMint := q.Get("output_mint")
	if inputMint == "" || outputMint == "" {
		h.writeError(w, "input_mint and output_mint are required", http.StatusBadRequest)
		return
	}

	amount, err := strconv.ParseUint(q.Get("amount"), 10, 64)
	if err != nil || amount == 0 {
		h.writeError(w, "amount must be a positive integer in base units", http.StatusBadRequest)
		return
	}

	side := types.Side(q.Get("side"))
	if side == "" {
		side = types.SideBuy
	}
	if side != types.SideBuy && side != types.SideSell {
		h.writeError(w, "side must be 'buy' or 'sell'", http.StatusBadRequest)
		return
	}

	quote, err := h.aggregator.BestQuote(r.Context(),
		types.Pair{InputMint: inputMint, OutputMint: outputMint},
		amount, side, nil)
	if err != nil {
		if errors.Is(err, types.ErrNoRouteAvailable) {
			h.writeError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, quote)
}

// HandleVenues handles GET /api/venues: health state for every venue.
func (h *TradeHandler) HandleVenues(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Health().Snapshot())
}

func (h *TradeHandler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func (h *TradeHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
