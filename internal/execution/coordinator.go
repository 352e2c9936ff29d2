// Package execution owns the order-to-submission pipeline: quote, slippage
// guard, transaction build, anti-front-running shaping, signing, submission
// and confirmation.
package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/internal/aggregator"
	"github.com/dcastillo/soltrade/internal/orderbook"
	"github.com/dcastillo/soltrade/internal/scheduler"
	"github.com/dcastillo/soltrade/internal/signer"
	"github.com/dcastillo/soltrade/internal/storage"
	"github.com/dcastillo/soltrade/pkg/types"
)

// Coordinator runs one independent execution pipeline per fired order or
// manual request. Order-level exclusivity comes from the order book's
// conditional transitions, so pipelines for different orders never block
// each other.
type Coordinator struct {
	agg      *aggregator.Aggregator
	book     *orderbook.Book
	signer   signer.Signer
	public   Submitter
	private  Submitter // optional, used for anti-MEV submissions
	recorder storage.Storage
	fireChan <-chan *scheduler.FireEvent
	logger   *zap.Logger

	slippageTolerance float64
	jitterMin         time.Duration
	jitterMax         time.Duration
	retryCap          int
	confirmAttempts   int
	confirmBackoff    time.Duration

	ctx context.Context
	wg  sync.WaitGroup
}

// Config holds coordinator configuration.
type Config struct {
	Aggregator        *aggregator.Aggregator
	Book              *orderbook.Book
	Signer            signer.Signer
	PublicSubmitter   Submitter
	PrivateSubmitter  Submitter // nil disables the private channel
	Recorder          storage.Storage
	FireChannel       <-chan *scheduler.FireEvent
	SlippageTolerance float64 // max acceptable price impact, as a fraction
	JitterMin         time.Duration
	JitterMax         time.Duration
	RetryCap          int // max pipeline rounds per execution
	ConfirmAttempts   int
	ConfirmBackoff    time.Duration // initial confirmation poll delay, doubled per poll
	Logger            *zap.Logger
}

// New creates an execution coordinator.
func New(cfg *Config) *Coordinator {
	return &Coordinator{
		agg:               cfg.Aggregator,
		book:              cfg.Book,
		signer:            cfg.Signer,
		public:            cfg.PublicSubmitter,
		private:           cfg.PrivateSubmitter,
		recorder:          cfg.Recorder,
		fireChan:          cfg.FireChannel,
		logger:            cfg.Logger,
		slippageTolerance: cfg.SlippageTolerance,
		jitterMin:         cfg.JitterMin,
		jitterMax:         cfg.JitterMax,
		retryCap:          cfg.RetryCap,
		confirmAttempts:   cfg.ConfirmAttempts,
		confirmBackoff:    cfg.ConfirmBackoff,
	}
}

// Start launches the fire-event consumer.
func (c *Coordinator) Start(ctx context.Context) error {
	c.ctx = ctx
	c.logger.Info("coordinator-starting",
		zap.Float64("slippage-tolerance", c.slippageTolerance),
		zap.Int("retry-cap", c.retryCap),
		zap.Bool("private-channel", c.private != nil))

	c.wg.Add(1)
	go c.fireLoop()

	return nil
}

// fireLoop dispatches each fire event to its own pipeline goroutine.
func (c *Coordinator) fireLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("coordinator-stopping")
			return
		case ev, ok := <-c.fireChan:
			if !ok {
				c.logger.Info("fire-channel-closed")
				return
			}
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.onFire(ev)
			}()
		}
	}
}

// onFire executes one fired order (or rung) and settles its state.
func (c *Coordinator) onFire(ev *scheduler.FireEvent) {
	order, err := c.book.Get(ev.OrderID)
	if err != nil {
		c.logger.Error("fired-order-missing",
			zap.String("order-id", ev.OrderID),
			zap.Error(err))
		return
	}

	start := time.Now()
	receipt, err := c.run(c.ctx, &request{
		OrderID: ev.OrderID,
		Account: order.Account,
		Pair:    order.Pair,
		Side:    order.Side,
		Amount:  ev.SubAmount,
		AntiMEV: order.AntiMEV,
	})
	ExecutionDurationSeconds.Observe(time.Since(start).Seconds())

	if err == nil {
		ExecutionsTotal.WithLabelValues("fire", "success").Inc()
		c.record(receipt)
		if ev.Final {
			c.settle(ev.OrderID, types.StateFilled)
		}
		return
	}

	ExecutionsTotal.WithLabelValues("fire", "failure").Inc()
	c.logger.Error("fired-execution-failed",
		zap.String("order-id", ev.OrderID),
		zap.Int("rung", ev.RungIndex),
		zap.Bool("final", ev.Final),
		zap.Error(err))

	if !ev.Final {
		// Intermediate rung: the order is still Active; the rung's amount
		// is forfeited from Remaining and requires a fresh order to retry.
		return
	}

	if transient(err) {
		c.settle(ev.OrderID, types.StateActive) // re-arm for the next evaluation
		return
	}
	c.settle(ev.OrderID, types.StateFailed)
}

// transient reports whether a failed execution should re-arm the order
// instead of failing it permanently.
func transient(err error) bool {
	return errors.Is(err, types.ErrNoRouteAvailable) ||
		errors.Is(err, types.ErrSignerUnavailable)
}

func (c *Coordinator) settle(orderID string, to types.OrderState) {
	err := c.book.Transition(orderID, types.StateTriggered, to)
	if err != nil {
		c.logger.Error("settle-transition-failed",
			zap.String("order-id", orderID),
			zap.String("to", string(to)),
			zap.Error(err))
	}
}

// ExecuteManual runs the pipeline for an immediate trade request from the
// command layer.
func (c *Coordinator) ExecuteManual(ctx context.Context, req *types.TradeRequest) (*types.Receipt, error) {
	if req.Account == "" || req.Amount == 0 {
		return nil, fmt.Errorf("trade request requires an account and a positive amount")
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	start := time.Now()
	receipt, err := c.run(ctx, &request{
		Account: req.Account,
		Pair:    req.Pair,
		Side:    req.Side,
		Amount:  req.Amount,
		AntiMEV: req.AntiMEV,
	})
	ExecutionDurationSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		ExecutionsTotal.WithLabelValues("manual", "failure").Inc()
		return nil, err
	}

	ExecutionsTotal.WithLabelValues("manual", "success").Inc()
	c.record(receipt)
	return receipt, nil
}

func (c *Coordinator) record(receipt *types.Receipt) {
	err := c.recorder.RecordReceipt(c.ctx, receipt)
	if err != nil {
		c.logger.Error("receipt-record-failed",
			zap.String("receipt-id", receipt.ID),
			zap.Error(err))
	}
}

// request is one execution pipeline's input.
type request struct {
	OrderID string // empty for manual trades
	Account string
	Pair    types.Pair
	Side    types.Side
	Amount  uint64
	AntiMEV bool
}

// run is the submission pipeline: fresh quote, slippage guard, build,
// shaping, sign, submit, confirm. Venue-level failures exclude the venue and
// retry up to the cap; signer failures and slippage always surface.
func (c *Coordinator) run(ctx context.Context, req *request) (*types.Receipt, error) {
	excluded := make(map[string]bool)
	var attempts []*types.SubmissionAttempt
	var lastErr error

	for round := 0; round < c.retryCap; round++ {
		quote, err := c.agg.BestQuote(ctx, req.Pair, req.Amount, req.Side, excluded)
		if err != nil {
			if len(attempts) == 0 && round == 0 {
				return nil, err // nothing to try: NoRouteAvailable surfaces as-is
			}
			lastErr = err
			break
		}

		if quote.PriceImpact > c.slippageTolerance {
			SlippageAbortsTotal.Inc()
			return nil, fmt.Errorf("%w: price impact %.4f above tolerance %.4f",
				types.ErrSlippageExceeded, quote.PriceImpact, c.slippageTolerance)
		}

		adapter, ok := c.agg.Adapter(quote.VenueID)
		if !ok {
			excluded[quote.VenueID] = true
			continue
		}

		publicKey, err := c.signer.PublicKey(ctx, req.Account)
		if err != nil {
			return nil, err
		}

		unsigned, err := adapter.BuildTransaction(ctx, quote, publicKey)
		if err != nil {
			c.logger.Warn("transaction-build-failed",
				zap.String("venue", quote.VenueID),
				zap.Error(err))
			excluded[quote.VenueID] = true
			lastErr = err
			continue
		}

		if req.AntiMEV {
			err = c.jitter(ctx)
			if err != nil {
				return nil, err
			}
		}

		signed, err := c.signer.Sign(ctx, req.Account, unsigned)
		if err != nil {
			return nil, err
		}

		// The jitter window and signing can outlive the quote. A quote is
		// never submitted past its validity; go back for a fresh one.
		if quote.Expired(time.Now()) {
			QuoteRefreshesTotal.Inc()
			c.logger.Warn("quote-expired-before-submit",
				zap.String("venue", quote.VenueID),
				zap.Duration("valid-for", quote.ValidFor))
			lastErr = types.ErrRouteExpired
			continue
		}

		submitter := c.submitter(req.AntiMEV)
		attempt := &types.SubmissionAttempt{
			ID:          uuid.New().String(),
			OrderID:     req.OrderID,
			VenueID:     quote.VenueID,
			Outcome:     types.AttemptPending,
			SubmittedAt: time.Now(),
		}
		attempts = append(attempts, attempt)

		signature, err := submitter.Submit(ctx, signed)
		if err != nil {
			attempt.Outcome = types.AttemptRejected
			AttemptsTotal.WithLabelValues(submitter.Name(), string(attempt.Outcome)).Inc()
			excluded[quote.VenueID] = true
			lastErr = err
			continue
		}
		attempt.Signature = signature

		status, err := c.awaitConfirmation(ctx, submitter, signature)
		if err != nil {
			attempt.Outcome = types.AttemptTimedOut
			AttemptsTotal.WithLabelValues(submitter.Name(), string(attempt.Outcome)).Inc()
			excluded[quote.VenueID] = true
			lastErr = err
			continue
		}

		if status.ChainErr != "" {
			attempt.Outcome = types.AttemptRejected
			attempt.Slot = status.Slot
			AttemptsTotal.WithLabelValues(submitter.Name(), string(attempt.Outcome)).Inc()
			if permanentChainError(status.ChainErr) {
				return nil, fmt.Errorf("transaction failed on-chain: %s", status.ChainErr)
			}
			excluded[quote.VenueID] = true
			lastErr = fmt.Errorf("transaction rejected on-chain: %s", status.ChainErr)
			continue
		}

		attempt.Outcome = types.AttemptConfirmed
		attempt.Slot = status.Slot
		AttemptsTotal.WithLabelValues(submitter.Name(), string(attempt.Outcome)).Inc()

		receipt := &types.Receipt{
			ID:          uuid.New().String(),
			OrderID:     req.OrderID,
			Account:     req.Account,
			VenueID:     quote.VenueID,
			Signature:   signature,
			Pair:        req.Pair,
			Side:        req.Side,
			InAmount:    quote.InAmount,
			OutAmount:   quote.OutAmount,
			Slot:        status.Slot,
			Attempts:    len(attempts),
			ConfirmedAt: time.Now(),
		}

		c.logger.Info("execution-confirmed",
			zap.String("order-id", req.OrderID),
			zap.String("venue", quote.VenueID),
			zap.String("signature", signature),
			zap.Uint64("slot", status.Slot),
			zap.Int("attempts", len(attempts)))

		return receipt, nil
	}

	return nil, fmt.Errorf("%w: %d submission attempts: %v",
		types.ErrSubmissionExhausted, len(attempts), lastErr)
}

// permanentChainError reports whether an on-chain failure cannot succeed on
// a different venue either.
func permanentChainError(chainErr string) bool {
	lower := strings.ToLower(chainErr)
	return strings.Contains(lower, "insufficientfunds") ||
		strings.Contains(lower, "insufficient funds") ||
		strings.Contains(lower, "insufficient lamports")
}

// submitter picks the submission channel: the private relay for anti-MEV
// executions when configured, the public RPC otherwise.
func (c *Coordinator) submitter(antiMEV bool) Submitter {
	if antiMEV && c.private != nil {
		return c.private
	}
	return c.public
}

// awaitConfirmation polls the submitter with exponential backoff, bounded by
// the configured attempt cap.
func (c *Coordinator) awaitConfirmation(ctx context.Context, submitter Submitter, signature string) (*SubmissionStatus, error) {
	delay := c.confirmBackoff

	for poll := 0; poll < c.confirmAttempts; poll++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2

		status, err := submitter.Status(ctx, signature)
		if err != nil {
			c.logger.Debug("confirmation-poll-failed",
				zap.String("signature", signature),
				zap.Error(err))
			continue
		}
		if status.Confirmed || status.ChainErr != "" {
			return status, nil
		}
	}

	return nil, fmt.Errorf("confirmation not observed after %d polls for %s", c.confirmAttempts, signature)
}

// Close waits for in-flight pipelines to finish.
func (c *Coordinator) Close() error {
	c.logger.Info("closing-coordinator")
	c.wg.Wait()
	return nil
}
