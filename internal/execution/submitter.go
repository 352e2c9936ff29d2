package execution

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dcastillo/soltrade/pkg/types"
	"go.uber.org/zap"
)

// SubmissionStatus is the chain-side view of a submitted transaction.
type SubmissionStatus struct {
	Confirmed bool
	Slot      uint64
	ChainErr  string // non-empty when the transaction failed on-chain
}

// Submitter sends a signed transaction toward the chain and reports its
// confirmation status.
type Submitter interface {
	Name() string
	Submit(ctx context.Context, txn *types.SignedTransaction) (signature string, err error)
	Status(ctx context.Context, signature string) (*SubmissionStatus, error)
}

// RPCSubmitter submits over the public JSON-RPC endpoint. Submissions on
// this path are visible in the public mempool-equivalent queue.
type RPCSubmitter struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// RPCConfig holds RPC submitter configuration.
type RPCConfig struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewRPCSubmitter creates a public JSON-RPC submitter.
func NewRPCSubmitter(cfg *RPCConfig) *RPCSubmitter {
	return &RPCSubmitter{
		endpoint: cfg.Endpoint,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: cfg.Logger,
	}
}

// Name identifies the submission channel in logs and attempts.
func (r *RPCSubmitter) Name() string { return "rpc" }

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (r *RPCSubmitter) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqBody, err := json.Marshal(&rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read rpc response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc call %s: status %d", method, resp.StatusCode)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	err = json.Unmarshal(body, &envelope)
	if err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc call %s: %s (code %d)", method, envelope.Error.Message, envelope.Error.Code)
	}

	err = json.Unmarshal(envelope.Result, result)
	if err != nil {
		return fmt.Errorf("decode rpc result: %w", err)
	}

	return nil
}

// Submit sends the transaction via sendTransaction and returns its signature.
func (r *RPCSubmitter) Submit(ctx context.Context, txn *types.SignedTransaction) (string, error) {
	var signature string
	err := r.call(ctx, "sendTransaction",
		[]interface{}{txn.Base64, map[string]string{"encoding": "base64"}},
		&signature)
	if err != nil {
		SubmissionsTotal.WithLabelValues(r.Name(), "error").Inc()
		return "", err
	}

	SubmissionsTotal.WithLabelValues(r.Name(), "ok").Inc()
	r.logger.Debug("transaction-submitted",
		zap.String("channel", r.Name()),
		zap.String("signature", signature))

	return signature, nil
}

type signatureStatus struct {
	Slot               uint64          `json:"slot"`
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

// Status polls getSignatureStatuses for the transaction.
func (r *RPCSubmitter) Status(ctx context.Context, signature string) (*SubmissionStatus, error) {
	var result struct {
		Value []*signatureStatus `json:"value"`
	}
	err := r.call(ctx, "getSignatureStatuses",
		[]interface{}{[]string{signature}, map[string]bool{"searchTransactionHistory": false}},
		&result)
	if err != nil {
		return nil, err
	}

	if len(result.Value) == 0 || result.Value[0] == nil {
		return &SubmissionStatus{}, nil // not yet observed
	}

	status := result.Value[0]
	chainErr := ""
	if len(status.Err) > 0 && string(status.Err) != "null" {
		chainErr = string(status.Err)
	}

	return &SubmissionStatus{
		Confirmed: status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized",
		Slot:      status.Slot,
		ChainErr:  chainErr,
	}, nil
}

var _ Submitter = (*RPCSubmitter)(nil)

// RelaySubmitter submits through a private relay so the transaction never
// sits on a publicly observable queue before it commits. Confirmation still
// reads from the public RPC, which only sees the transaction once landed.
type RelaySubmitter struct {
	endpoint   string
	httpClient *http.Client
	statuser   Submitter // confirmation path
	logger     *zap.Logger
}

// RelayConfig holds private relay configuration.
type RelayConfig struct {
	Endpoint string
	Timeout  time.Duration
	Statuser Submitter
	Logger   *zap.Logger
}

// NewRelaySubmitter creates a private relay submitter.
func NewRelaySubmitter(cfg *RelayConfig) *RelaySubmitter {
	return &RelaySubmitter{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		statuser: cfg.Statuser,
		logger:   cfg.Logger,
	}
}

// Name identifies the submission channel in logs and attempts.
func (s *RelaySubmitter) Name() string { return "private-relay" }

// Submit posts the transaction to the relay.
func (s *RelaySubmitter) Submit(ctx context.Context, txn *types.SignedTransaction) (string, error) {
	reqBody, err := json.Marshal(map[string]string{"transaction": txn.Base64})
	if err != nil {
		return "", fmt.Errorf("marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/api/v1/transactions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		SubmissionsTotal.WithLabelValues(s.Name(), "error").Inc()
		return "", fmt.Errorf("relay submit: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		SubmissionsTotal.WithLabelValues(s.Name(), "error").Inc()
		return "", fmt.Errorf("read relay response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		SubmissionsTotal.WithLabelValues(s.Name(), "error").Inc()
		return "", fmt.Errorf("relay submit: status %d", resp.StatusCode)
	}

	var relayResp struct {
		Signature string `json:"signature"`
	}
	err = json.Unmarshal(body, &relayResp)
	if err != nil || relayResp.Signature == "" {
		SubmissionsTotal.WithLabelValues(s.Name(), "error").Inc()
		return "", fmt.Errorf("relay submit: unusable response")
	}

	SubmissionsTotal.WithLabelValues(s.Name(), "ok").Inc()
	s.logger.Debug("transaction-submitted",
		zap.String("channel", s.Name()),
		zap.String("signature", relayResp.Signature))

	return relayResp.Signature, nil
}

// Status reads confirmation through the public RPC path.
func (s *RelaySubmitter) Status(ctx context.Context, signature string) (*SubmissionStatus, error) {
	return s.statuser.Status(ctx, signature)
}

var _ Submitter = (*RelaySubmitter)(nil)
