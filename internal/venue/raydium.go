package venue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dcastillo/soltrade/pkg/types"
	"go.uber.org/zap"
)

// RaydiumID is the venue identifier for the Raydium trade API.
const RaydiumID = "raydium"

// Raydium is a venue adapter for the Raydium swap compute/transaction API.
type Raydium struct {
	baseURL     string
	httpClient  *http.Client
	logger      *zap.Logger
	slippageBps int
	validFor    time.Duration
}

// RaydiumConfig holds Raydium adapter configuration.
type RaydiumConfig struct {
	BaseURL       string
	Timeout       time.Duration
	SlippageBps   int
	QuoteValidity time.Duration
	Logger        *zap.Logger
}

// NewRaydium creates a Raydium adapter.
func NewRaydium(cfg *RaydiumConfig) *Raydium {
	return &Raydium{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:      cfg.Logger,
		slippageBps: cfg.SlippageBps,
		validFor:    cfg.QuoteValidity,
	}
}

// ID returns the venue identifier.
func (r *Raydium) ID() string { return RaydiumID }

type raydiumComputeResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    struct {
		OutputAmount   string  `json:"outputAmount"`
		PriceImpactPct float64 `json:"priceImpactPct"`
		RoutePlan      []struct {
			PoolID    string `json:"poolId"`
			FeeAmount string `json:"feeAmount"`
		} `json:"routePlan"`
	} `json:"data"`
}

// Quote fetches a priced route from GET /compute/swap-base-in.
func (r *Raydium) Quote(ctx context.Context, pair types.Pair, amount uint64, side types.Side) (*types.Quote, error) {
	params := url.Values{}
	params.Set("inputMint", pair.InputMint)
	params.Set("outputMint", pair.OutputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("slippageBps", strconv.Itoa(r.slippageBps))
	params.Set("txVersion", "V0")

	requestURL := fmt.Sprintf("%s/compute/swap-base-in?%s", r.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create compute request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		QuoteRequestsTotal.WithLabelValues(RaydiumID, "unreachable").Inc()
		return nil, fmt.Errorf("%w: %s: %v", types.ErrVenueUnreachable, RaydiumID, err)
	}
	defer resp.Body.Close()
	QuoteLatencySeconds.WithLabelValues(RaydiumID).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		QuoteRequestsTotal.WithLabelValues(RaydiumID, "unreachable").Inc()
		return nil, fmt.Errorf("%w: %s: read body: %v", types.ErrVenueUnreachable, RaydiumID, err)
	}

	if resp.StatusCode != http.StatusOK {
		QuoteRequestsTotal.WithLabelValues(RaydiumID, "unreachable").Inc()
		return nil, fmt.Errorf("%w: %s: status %d", types.ErrVenueUnreachable, RaydiumID, resp.StatusCode)
	}

	var computeResp raydiumComputeResponse
	err = json.Unmarshal(body, &computeResp)
	if err != nil {
		QuoteRequestsTotal.WithLabelValues(RaydiumID, "unreachable").Inc()
		return nil, fmt.Errorf("%w: %s: decode compute response: %v", types.ErrVenueUnreachable, RaydiumID, err)
	}

	if !computeResp.Success {
		QuoteRequestsTotal.WithLabelValues(RaydiumID, "no_liquidity").Inc()
		return nil, fmt.Errorf("%w: %s: %s", types.ErrInsufficientLiquidity, RaydiumID, computeResp.Msg)
	}

	outAmount, err := strconv.ParseUint(computeResp.Data.OutputAmount, 10, 64)
	if err != nil || outAmount == 0 {
		QuoteRequestsTotal.WithLabelValues(RaydiumID, "no_liquidity").Inc()
		return nil, fmt.Errorf("%w: %s returned unusable output %q", types.ErrInsufficientLiquidity, RaydiumID, computeResp.Data.OutputAmount)
	}

	var feeAmount uint64
	route := make([]string, 0, len(computeResp.Data.RoutePlan))
	for _, hop := range computeResp.Data.RoutePlan {
		route = append(route, hop.PoolID)
		hopFee, _ := strconv.ParseUint(hop.FeeAmount, 10, 64)
		feeAmount += hopFee
	}

	QuoteRequestsTotal.WithLabelValues(RaydiumID, "ok").Inc()

	return &types.Quote{
		VenueID:     RaydiumID,
		Pair:        pair,
		Side:        side,
		InAmount:    amount,
		OutAmount:   outAmount,
		PriceImpact: computeResp.Data.PriceImpactPct / 100.0,
		FeeAmount:   feeAmount,
		Route:       route,
		FetchedAt:   time.Now(),
		ValidFor:    r.validFor,
		Payload:     json.RawMessage(body),
	}, nil
}

type raydiumSwapRequest struct {
	SwapResponse json.RawMessage `json:"swapResponse"`
	Wallet       string          `json:"wallet"`
	TxVersion    string          `json:"txVersion"`
}

type raydiumSwapResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    []struct {
		Transaction string `json:"transaction"`
	} `json:"data"`
}

// BuildTransaction exchanges the stored compute payload for an unsigned swap
// transaction via POST /transaction/swap-base-in.
func (r *Raydium) BuildTransaction(ctx context.Context, quote *types.Quote, signerPublicKey string) (*types.UnsignedTransaction, error) {
	if quote.VenueID != RaydiumID {
		return nil, fmt.Errorf("%w: quote belongs to venue %q", types.ErrTransactionBuild, quote.VenueID)
	}
	if quote.Expired(time.Now()) {
		BuildRequestsTotal.WithLabelValues(RaydiumID, "expired").Inc()
		return nil, fmt.Errorf("%w: quote fetched at %s is past its validity window", types.ErrRouteExpired, quote.FetchedAt.Format(time.RFC3339))
	}

	reqBody, err := json.Marshal(&raydiumSwapRequest{
		SwapResponse: quote.Payload,
		Wallet:       signerPublicKey,
		TxVersion:    "V0",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal swap request: %v", types.ErrTransactionBuild, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/transaction/swap-base-in", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("%w: create swap request: %v", types.ErrTransactionBuild, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		BuildRequestsTotal.WithLabelValues(RaydiumID, "error").Inc()
		return nil, fmt.Errorf("%w: %v", types.ErrTransactionBuild, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		BuildRequestsTotal.WithLabelValues(RaydiumID, "error").Inc()
		return nil, fmt.Errorf("%w: read swap response: %v", types.ErrTransactionBuild, err)
	}

	if resp.StatusCode != http.StatusOK {
		BuildRequestsTotal.WithLabelValues(RaydiumID, "error").Inc()
		return nil, fmt.Errorf("%w: %s: status %d", types.ErrTransactionBuild, RaydiumID, resp.StatusCode)
	}

	var swapResp raydiumSwapResponse
	err = json.Unmarshal(body, &swapResp)
	if err != nil {
		BuildRequestsTotal.WithLabelValues(RaydiumID, "error").Inc()
		return nil, fmt.Errorf("%w: decode swap response: %v", types.ErrTransactionBuild, err)
	}

	if !swapResp.Success {
		// Raydium invalidates compute payloads when the pool state moves.
		if strings.Contains(strings.ToLower(swapResp.Msg), "expired") ||
			strings.Contains(strings.ToLower(swapResp.Msg), "stale") {
			BuildRequestsTotal.WithLabelValues(RaydiumID, "expired").Inc()
			return nil, fmt.Errorf("%w: %s: %s", types.ErrRouteExpired, RaydiumID, swapResp.Msg)
		}
		BuildRequestsTotal.WithLabelValues(RaydiumID, "error").Inc()
		return nil, fmt.Errorf("%w: %s: %s", types.ErrTransactionBuild, RaydiumID, swapResp.Msg)
	}
	if len(swapResp.Data) == 0 || swapResp.Data[0].Transaction == "" {
		BuildRequestsTotal.WithLabelValues(RaydiumID, "error").Inc()
		return nil, fmt.Errorf("%w: %s: empty transaction payload", types.ErrTransactionBuild, RaydiumID)
	}

	BuildRequestsTotal.WithLabelValues(RaydiumID, "ok").Inc()
	r.logger.Debug("swap-transaction-built",
		zap.String("venue", RaydiumID),
		zap.Int("route-hops", len(quote.Route)))

	return &types.UnsignedTransaction{
		VenueID: RaydiumID,
		Base64:  swapResp.Data[0].Transaction,
	}, nil
}

var _ Adapter = (*Raydium)(nil)
