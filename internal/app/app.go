// Package app wires the trading engine together and owns its lifecycle.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/internal/aggregator"
	"github.com/dcastillo/soltrade/internal/execution"
	"github.com/dcastillo/soltrade/internal/orderbook"
	"github.com/dcastillo/soltrade/internal/scheduler"
	"github.com/dcastillo/soltrade/internal/signer"
	"github.com/dcastillo/soltrade/internal/storage"
	"github.com/dcastillo/soltrade/internal/tokens"
	"github.com/dcastillo/soltrade/pkg/cache"
	"github.com/dcastillo/soltrade/pkg/config"
	"github.com/dcastillo/soltrade/pkg/healthprobe"
	"github.com/dcastillo/soltrade/pkg/httpserver"
	"github.com/dcastillo/soltrade/pkg/pricefeed"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	appCache      cache.Cache
	tokenRegistry *tokens.Registry
	aggregator    *aggregator.Aggregator
	book          *orderbook.Book
	priceFeed     *pricefeed.Manager
	scheduler     *scheduler.Scheduler
	signer        *signer.Local
	coordinator   *execution.Coordinator
	storage       storage.Storage
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds application options.
type Options struct {
	SignerAccount string // account label for the local signing key
	SignerKey     string // base64 ed25519 private key; empty leaves the signer keyless
}
