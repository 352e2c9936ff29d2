package app

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/internal/aggregator"
	"github.com/dcastillo/soltrade/internal/execution"
	"github.com/dcastillo/soltrade/internal/orderbook"
	"github.com/dcastillo/soltrade/internal/scheduler"
	"github.com/dcastillo/soltrade/internal/signer"
	"github.com/dcastillo/soltrade/internal/storage"
	"github.com/dcastillo/soltrade/internal/tokens"
	"github.com/dcastillo/soltrade/internal/venue"
	"github.com/dcastillo/soltrade/pkg/cache"
	"github.com/dcastillo/soltrade/pkg/config"
	"github.com/dcastillo/soltrade/pkg/healthprobe"
	"github.com/dcastillo/soltrade/pkg/httpserver"
	"github.com/dcastillo/soltrade/pkg/pricefeed"
	"github.com/dcastillo/soltrade/pkg/types"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	appCache, err := setupCache(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	tokenRegistry := setupTokenRegistry(cfg, logger, appCache)

	agg := setupAggregator(cfg, logger)
	book := setupBook(cfg, logger)
	feed := setupPriceFeed(cfg, logger)
	sched := setupScheduler(cfg, logger, book, feed)

	localSigner, err := setupSigner(logger, opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup signer: %w", err)
	}

	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	coordinator := setupCoordinator(cfg, logger, agg, book, localSigner, store, sched)

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Book:          book,
		Coordinator:   coordinator,
		Aggregator:    agg,
		Watcher:       feed,
		DefaultTTL:    cfg.DefaultOrderTTL,
		TokenRegistry: tokenRegistry,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		appCache:      appCache,
		tokenRegistry: tokenRegistry,
		aggregator:    agg,
		book:          book,
		priceFeed:     feed,
		scheduler:     sched,
		signer:        localSigner,
		coordinator:   coordinator,
		storage:       store,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: cfg.CacheNumCounters,
		MaxCost:     cfg.CacheMaxCost,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupTokenRegistry(cfg *config.Config, logger *zap.Logger, appCache cache.Cache) *tokens.Registry {
	return tokens.NewRegistry(&tokens.Config{
		BaseURL: cfg.TokenListURL,
		Timeout: cfg.VenueTimeout,
		Cache:   appCache,
		TTL:     cfg.TokenCacheTTL,
		Logger:  logger,
	})
}

func setupAggregator(cfg *config.Config, logger *zap.Logger) *aggregator.Aggregator {
	adapters := []venue.Adapter{
		venue.NewJupiter(&venue.JupiterConfig{
			BaseURL:       cfg.JupiterBaseURL,
			Timeout:       cfg.VenueTimeout,
			SlippageBps:   cfg.SlippageBps,
			QuoteValidity: cfg.QuoteValidity,
			Logger:        logger,
		}),
		venue.NewRaydium(&venue.RaydiumConfig{
			BaseURL:       cfg.RaydiumBaseURL,
			Timeout:       cfg.VenueTimeout,
			SlippageBps:   cfg.SlippageBps,
			QuoteValidity: cfg.QuoteValidity,
			Logger:        logger,
		}),
	}

	return aggregator.New(&aggregator.Config{
		Adapters:          adapters,
		Health:            venue.NewHealthTracker(cfg.UnhealthyAfter),
		AggregateDeadline: cfg.AggregateDeadline,
		ProbeInterval:     cfg.ProbeInterval,
		ProbePair: types.Pair{
			InputMint:  cfg.ProbeInputMint,
			OutputMint: cfg.ProbeOutputMint,
		},
		ProbeAmount: cfg.ProbeAmount,
		Logger:      logger,
	})
}

func setupBook(cfg *config.Config, logger *zap.Logger) *orderbook.Book {
	return orderbook.New(&orderbook.Config{
		Logger:          logger,
		EventBufferSize: 1024,
		Retention:       cfg.TerminalRetention,
		SweepInterval:   cfg.OrderSweepTick,
	})
}

func setupPriceFeed(cfg *config.Config, logger *zap.Logger) *pricefeed.Manager {
	return pricefeed.New(pricefeed.Config{
		URL:                   cfg.PriceFeedURL,
		DialTimeout:           cfg.WSDialTimeout,
		PongTimeout:           cfg.WSPongTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		Logger:                logger,
	})
}

func setupScheduler(cfg *config.Config, logger *zap.Logger, book *orderbook.Book, feed *pricefeed.Manager) *scheduler.Scheduler {
	return scheduler.New(&scheduler.Config{
		Book:           book,
		PriceChannel:   feed.UpdateChan(),
		FireBufferSize: 256,
		SweepInterval:  cfg.OrderSweepTick,
		Logger:         logger,
	})
}

func setupSigner(logger *zap.Logger, opts *Options) (*signer.Local, error) {
	localSigner := signer.NewLocal()

	account := opts.SignerAccount
	keyB64 := opts.SignerKey
	if account == "" {
		account = os.Getenv("SIGNER_ACCOUNT")
	}
	if keyB64 == "" {
		keyB64 = os.Getenv("SIGNER_KEY")
	}

	if account == "" || keyB64 == "" {
		logger.Warn("signer-keyless",
			zap.String("note", "no signing key configured, executions will fail until one is provided"))
		return localSigner, nil
	}

	keyBytes, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("decode signer key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signer key must be %d bytes, got %d", ed25519.PrivateKeySize, len(keyBytes))
	}

	localSigner.AddKey(account, ed25519.PrivateKey(keyBytes))
	logger.Info("signer-key-loaded", zap.String("account", account))

	return localSigner, nil
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupCoordinator(
	cfg *config.Config,
	logger *zap.Logger,
	agg *aggregator.Aggregator,
	book *orderbook.Book,
	localSigner *signer.Local,
	store storage.Storage,
	sched *scheduler.Scheduler,
) *execution.Coordinator {
	rpc := execution.NewRPCSubmitter(&execution.RPCConfig{
		Endpoint: cfg.RPCEndpoint,
		Timeout:  cfg.VenueTimeout,
		Logger:   logger,
	})

	var relay execution.Submitter
	if cfg.RelayEndpoint != "" {
		relay = execution.NewRelaySubmitter(&execution.RelayConfig{
			Endpoint: cfg.RelayEndpoint,
			Timeout:  cfg.VenueTimeout,
			Statuser: rpc,
			Logger:   logger,
		})
	}

	return execution.New(&execution.Config{
		Aggregator:        agg,
		Book:              book,
		Signer:            localSigner,
		PublicSubmitter:   rpc,
		PrivateSubmitter:  relay,
		Recorder:          store,
		FireChannel:       sched.FireChan(),
		SlippageTolerance: cfg.SlippageTolerance,
		JitterMin:         cfg.JitterMin,
		JitterMax:         cfg.JitterMax,
		RetryCap:          cfg.RetryCap,
		ConfirmAttempts:   cfg.ConfirmAttempts,
		ConfirmBackoff:    cfg.ConfirmBackoff,
		Logger:            logger,
	})
}
