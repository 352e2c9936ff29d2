// Package aggregator fans quote requests out to every healthy venue and
// ranks the executable quotes that come back.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dcastillo/soltrade/internal/venue"
	"github.com/dcastillo/soltrade/pkg/types"
)

// Aggregator queries all configured venue adapters concurrently and picks the
// quote with the best net output. Venue failures feed the shared health
// tracker; unhealthy venues are skipped until a background probe succeeds.
type Aggregator struct {
	adapters          []venue.Adapter
	byID              map[string]venue.Adapter
	health            *venue.HealthTracker
	logger            *zap.Logger
	aggregateDeadline time.Duration
	probeInterval     time.Duration
	probePair         types.Pair
	probeAmount       uint64
	ctx               context.Context
	wg                sync.WaitGroup
}

// Config holds aggregator configuration.
type Config struct {
	Adapters          []venue.Adapter
	Health            *venue.HealthTracker
	AggregateDeadline time.Duration
	ProbeInterval     time.Duration
	ProbePair         types.Pair // small canonical pair used to probe unhealthy venues
	ProbeAmount       uint64
	Logger            *zap.Logger
}

// New creates an aggregator and registers every adapter with the health
// tracker.
func New(cfg *Config) *Aggregator {
	byID := make(map[string]venue.Adapter, len(cfg.Adapters))
	for _, adapter := range cfg.Adapters {
		byID[adapter.ID()] = adapter
		cfg.Health.Register(adapter.ID())
	}

	return &Aggregator{
		adapters:          cfg.Adapters,
		byID:              byID,
		health:            cfg.Health,
		logger:            cfg.Logger,
		aggregateDeadline: cfg.AggregateDeadline,
		probeInterval:     cfg.ProbeInterval,
		probePair:         cfg.ProbePair,
		probeAmount:       cfg.ProbeAmount,
	}
}

// Adapter returns the adapter for a venue id, used by the execution pipeline
// to build the winning venue's transaction.
func (a *Aggregator) Adapter(venueID string) (venue.Adapter, bool) {
	adapter, ok := a.byID[venueID]
	return adapter, ok
}

// Health returns the shared venue health tracker.
func (a *Aggregator) Health() *venue.HealthTracker {
	return a.health
}

// BestQuote issues quote calls to all healthy, non-excluded venues
// concurrently, waits for all of them or the aggregate deadline, and returns
// the best-ranked quote. Fails with types.ErrNoRouteAvailable when nothing
// executable comes back; retrying is the caller's decision.
func (a *Aggregator) BestQuote(ctx context.Context, pair types.Pair, amount uint64, side types.Side, excludeVenues map[string]bool) (*types.Quote, error) {
	RoundsTotal.Inc()
	start := time.Now()
	defer func() {
		RoundDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	eligible := make([]venue.Adapter, 0, len(a.adapters))
	for _, adapter := range a.adapters {
		if excludeVenues[adapter.ID()] {
			continue
		}
		if !a.health.Healthy(adapter.ID()) {
			VenuesSkippedTotal.WithLabelValues(adapter.ID()).Inc()
			continue
		}
		eligible = append(eligible, adapter)
	}

	if len(eligible) == 0 {
		NoRouteTotal.Inc()
		return nil, fmt.Errorf("%w: no eligible venues", types.ErrNoRouteAvailable)
	}

	roundCtx, cancel := context.WithTimeout(ctx, a.aggregateDeadline)
	defer cancel()

	quotes := make([]*types.Quote, len(eligible))
	errs := make([]error, len(eligible))

	g, gctx := errgroup.WithContext(roundCtx)
	for i, adapter := range eligible {
		g.Go(func() error {
			callStart := time.Now()
			quote, err := adapter.Quote(gctx, pair, amount, side)
			if err != nil {
				failures := a.health.RecordFailure(adapter.ID())
				a.logger.Debug("venue-quote-failed",
					zap.String("venue", adapter.ID()),
					zap.Int("consecutive-failures", failures),
					zap.Error(err))
				errs[i] = err
				return nil
			}

			a.health.RecordSuccess(adapter.ID(), time.Since(callStart))
			quotes[i] = quote
			return nil
		})
	}
	_ = g.Wait()

	best := a.rank(quotes)
	if best == nil {
		NoRouteTotal.Inc()
		var venueErrs error
		for _, err := range errs {
			venueErrs = multierr.Append(venueErrs, err)
		}
		return nil, fmt.Errorf("%w: %v", types.ErrNoRouteAvailable, venueErrs)
	}

	a.logger.Debug("best-quote-selected",
		zap.String("venue", best.VenueID),
		zap.Uint64("in-amount", best.InAmount),
		zap.Uint64("out-amount", best.OutAmount),
		zap.Float64("price-impact", best.PriceImpact))

	return best, nil
}

// rank picks the quote with the highest net output after fee and impact
// penalty; ties fall to lower price impact, then lower venue latency. Quotes
// already past their validity window are discarded.
func (a *Aggregator) rank(quotes []*types.Quote) *types.Quote {
	now := time.Now()

	var best *types.Quote
	for _, quote := range quotes {
		if quote == nil {
			continue
		}
		if quote.Expired(now) {
			ExpiredQuotesTotal.WithLabelValues(quote.VenueID).Inc()
			continue
		}
		if best == nil || a.better(quote, best) {
			best = quote
		}
	}

	return best
}

func (a *Aggregator) better(candidate, incumbent *types.Quote) bool {
	candNet, incNet := candidate.NetOutput(), incumbent.NetOutput()
	if candNet != incNet {
		return candNet > incNet
	}
	if candidate.PriceImpact != incumbent.PriceImpact {
		return candidate.PriceImpact < incumbent.PriceImpact
	}
	return a.health.Latency(candidate.VenueID) < a.health.Latency(incumbent.VenueID)
}

// Start launches the background probe loop that re-tests unhealthy venues.
func (a *Aggregator) Start(ctx context.Context) error {
	a.ctx = ctx
	a.logger.Info("aggregator-starting",
		zap.Int("venues", len(a.adapters)),
		zap.Duration("aggregate-deadline", a.aggregateDeadline),
		zap.Duration("probe-interval", a.probeInterval))

	a.wg.Add(1)
	go a.probeLoop()

	return nil
}

// probeLoop periodically issues a small quote to each unhealthy venue. One
// successful probe restores the venue for subsequent rounds.
func (a *Aggregator) probeLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			a.logger.Info("aggregator-probe-loop-stopping")
			return
		case <-ticker.C:
			for _, adapter := range a.adapters {
				if a.health.Healthy(adapter.ID()) {
					continue
				}
				a.probe(adapter)
			}
		}
	}
}

func (a *Aggregator) probe(adapter venue.Adapter) {
	start := time.Now()
	_, err := adapter.Quote(a.ctx, a.probePair, a.probeAmount, types.SideBuy)
	if err != nil {
		ProbesTotal.WithLabelValues(adapter.ID(), "failure").Inc()
		a.logger.Debug("venue-probe-failed",
			zap.String("venue", adapter.ID()),
			zap.Error(err))
		return
	}

	a.health.RecordSuccess(adapter.ID(), time.Since(start))
	ProbesTotal.WithLabelValues(adapter.ID(), "success").Inc()
	a.logger.Info("venue-recovered", zap.String("venue", adapter.ID()))
}

// Close waits for the probe loop to stop.
func (a *Aggregator) Close() error {
	a.logger.Info("closing-aggregator")
	a.wg.Wait()
	return nil
}
