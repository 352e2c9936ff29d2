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

// JupiterID is the venue identifier for the Jupiter aggregator.
const JupiterID = "jupiter"

// Jupiter is a venue adapter for the Jupiter v6 swap API.
type Jupiter struct {
	baseURL     string
	httpClient  *http.Client
	logger      *zap.Logger
	slippageBps int
	validFor    time.Duration
}

// JupiterConfig holds Jupiter adapter configuration.
type JupiterConfig struct {
	BaseURL       string
	Timeout       time.Duration // per-venue call timeout
	SlippageBps   int
	QuoteValidity time.Duration
	Logger        *zap.Logger
}

// NewJupiter creates a Jupiter adapter.
func NewJupiter(cfg *JupiterConfig) *Jupiter {
	return &Jupiter{
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
func (j *Jupiter) ID() string { return JupiterID }

// jupiterQuoteResponse is the subset of the v6 /quote response the engine
// reads. The full body is retained as the build payload.
type jupiterQuoteResponse struct {
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	PlatformFee    *struct {
		Amount string `json:"amount"`
	} `json:"platformFee"`
	RoutePlan []struct {
		SwapInfo struct {
			AmmKey string `json:"ammKey"`
			Label  string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

type jupiterErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// Quote fetches a priced route from GET /quote.
func (j *Jupiter) Quote(ctx context.Context, pair types.Pair, amount uint64, side types.Side) (*types.Quote, error) {
	params := url.Values{}
	params.Set("inputMint", pair.InputMint)
	params.Set("outputMint", pair.OutputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("swapMode", "ExactIn")
	params.Set("slippageBps", strconv.Itoa(j.slippageBps))

	requestURL := fmt.Sprintf("%s/quote?%s", j.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := j.httpClient.Do(req)
	if err != nil {
		QuoteRequestsTotal.WithLabelValues(JupiterID, "unreachable").Inc()
		return nil, fmt.Errorf("%w: %s: %v", types.ErrVenueUnreachable, JupiterID, err)
	}
	defer resp.Body.Close()
	QuoteLatencySeconds.WithLabelValues(JupiterID).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		QuoteRequestsTotal.WithLabelValues(JupiterID, "unreachable").Inc()
		return nil, fmt.Errorf("%w: %s: read body: %v", types.ErrVenueUnreachable, JupiterID, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, j.classifyQuoteError(resp.StatusCode, body)
	}

	var quoteResp jupiterQuoteResponse
	err = json.Unmarshal(body, &quoteResp)
	if err != nil {
		QuoteRequestsTotal.WithLabelValues(JupiterID, "unreachable").Inc()
		return nil, fmt.Errorf("%w: %s: decode quote: %v", types.ErrVenueUnreachable, JupiterID, err)
	}

	outAmount, err := strconv.ParseUint(quoteResp.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: parse outAmount %q: %v", types.ErrVenueUnreachable, JupiterID, quoteResp.OutAmount, err)
	}
	if outAmount == 0 {
		QuoteRequestsTotal.WithLabelValues(JupiterID, "no_liquidity").Inc()
		return nil, fmt.Errorf("%w: %s returned zero output", types.ErrInsufficientLiquidity, JupiterID)
	}

	// priceImpactPct arrives as a percentage string, e.g. "0.12" for 0.12%.
	impactPct, _ := strconv.ParseFloat(quoteResp.PriceImpactPct, 64)

	var feeAmount uint64
	if quoteResp.PlatformFee != nil {
		feeAmount, _ = strconv.ParseUint(quoteResp.PlatformFee.Amount, 10, 64)
	}

	route := make([]string, 0, len(quoteResp.RoutePlan))
	for _, hop := range quoteResp.RoutePlan {
		route = append(route, hop.SwapInfo.AmmKey)
	}

	QuoteRequestsTotal.WithLabelValues(JupiterID, "ok").Inc()

	return &types.Quote{
		VenueID:     JupiterID,
		Pair:        pair,
		Side:        side,
		InAmount:    amount,
		OutAmount:   outAmount,
		PriceImpact: impactPct / 100.0,
		FeeAmount:   feeAmount,
		Route:       route,
		FetchedAt:   time.Now(),
		ValidFor:    j.validFor,
		Payload:     json.RawMessage(body),
	}, nil
}

func (j *Jupiter) classifyQuoteError(status int, body []byte) error {
	var apiErr jupiterErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	if apiErr.ErrorCode == "COULD_NOT_FIND_ANY_ROUTE" ||
		strings.Contains(strings.ToLower(apiErr.Error), "no route") {
		QuoteRequestsTotal.WithLabelValues(JupiterID, "no_liquidity").Inc()
		return fmt.Errorf("%w: %s: %s", types.ErrInsufficientLiquidity, JupiterID, apiErr.Error)
	}

	QuoteRequestsTotal.WithLabelValues(JupiterID, "unreachable").Inc()
	return fmt.Errorf("%w: %s: status %d", types.ErrVenueUnreachable, JupiterID, status)
}

type jupiterSwapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

type jupiterSwapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
	Error           string `json:"error"`
}

// BuildTransaction exchanges the stored quote payload for an unsigned swap
// transaction via POST /swap.
func (j *Jupiter) BuildTransaction(ctx context.Context, quote *types.Quote, signerPublicKey string) (*types.UnsignedTransaction, error) {
	if quote.VenueID != JupiterID {
		return nil, fmt.Errorf("%w: quote belongs to venue %q", types.ErrTransactionBuild, quote.VenueID)
	}
	if quote.Expired(time.Now()) {
		BuildRequestsTotal.WithLabelValues(JupiterID, "expired").Inc()
		return nil, fmt.Errorf("%w: quote fetched at %s is past its validity window", types.ErrRouteExpired, quote.FetchedAt.Format(time.RFC3339))
	}

	reqBody, err := json.Marshal(&jupiterSwapRequest{
		QuoteResponse:    quote.Payload,
		UserPublicKey:    signerPublicKey,
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal swap request: %v", types.ErrTransactionBuild, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/swap", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("%w: create swap request: %v", types.ErrTransactionBuild, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		BuildRequestsTotal.WithLabelValues(JupiterID, "error").Inc()
		return nil, fmt.Errorf("%w: %v", types.ErrTransactionBuild, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		BuildRequestsTotal.WithLabelValues(JupiterID, "error").Inc()
		return nil, fmt.Errorf("%w: read swap response: %v", types.ErrTransactionBuild, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusConflict ||
		resp.StatusCode == http.StatusGone ||
		resp.StatusCode == http.StatusUnprocessableEntity:
		BuildRequestsTotal.WithLabelValues(JupiterID, "expired").Inc()
		return nil, fmt.Errorf("%w: %s: status %d", types.ErrRouteExpired, JupiterID, resp.StatusCode)
	default:
		BuildRequestsTotal.WithLabelValues(JupiterID, "error").Inc()
		return nil, fmt.Errorf("%w: %s: status %d", types.ErrTransactionBuild, JupiterID, resp.StatusCode)
	}

	var swapResp jupiterSwapResponse
	err = json.Unmarshal(body, &swapResp)
	if err != nil {
		BuildRequestsTotal.WithLabelValues(JupiterID, "error").Inc()
		return nil, fmt.Errorf("%w: decode swap response: %v", types.ErrTransactionBuild, err)
	}
	if swapResp.SwapTransaction == "" {
		BuildRequestsTotal.WithLabelValues(JupiterID, "error").Inc()
		return nil, fmt.Errorf("%w: %s: empty swap transaction (%s)", types.ErrTransactionBuild, JupiterID, swapResp.Error)
	}

	BuildRequestsTotal.WithLabelValues(JupiterID, "ok").Inc()
	j.logger.Debug("swap-transaction-built",
		zap.String("venue", JupiterID),
		zap.Int("route-hops", len(quote.Route)))

	return &types.UnsignedTransaction{
		VenueID: JupiterID,
		Base64:  swapResp.SwapTransaction,
	}, nil
}

var _ Adapter = (*Jupiter)(nil)
