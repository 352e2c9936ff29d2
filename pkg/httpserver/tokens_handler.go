package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/internal/tokens"
	"github.com/dcastillo/soltrade/pkg/types"
)

// TokensHandler resolves mint addresses to token metadata.
type TokensHandler struct {
	registry *tokens.Registry
	logger   *zap.Logger
}

// NewTokensHandler creates a new tokens handler.
func NewTokensHandler(registry *tokens.Registry, logger *zap.Logger) *TokensHandler {
	return &TokensHandler{
		registry: registry,
		logger:   logger,
	}
}

// HandleResolve handles GET /api/tokens/{mint}.
func (h *TokensHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	mint := chi.URLParam(r, "mint")

	info, err := h.registry.Resolve(r.Context(), mint)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, types.ErrNotFound) {
			status = http.StatusNotFound
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err = json.NewEncoder(w).Encode(info)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}
