package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("storage-mode", a.cfg.StorageMode),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("pricefeed-url", a.cfg.PriceFeedURL))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give the HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	err := a.book.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start order book: %w", err)
	}

	// Persist every order transition the book emits.
	a.wg.Add(1)
	go a.recordOrderEvents()

	err = a.priceFeed.Start()
	if err != nil {
		return fmt.Errorf("start price feed: %w", err)
	}

	err = a.scheduler.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	err = a.aggregator.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start aggregator: %w", err)
	}

	err = a.coordinator.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// recordOrderEvents drains the book's event channel into storage.
func (a *App) recordOrderEvents() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case ev, ok := <-a.book.Events():
			if !ok {
				return
			}
			err := a.storage.RecordOrderEvent(a.ctx, ev)
			if err != nil {
				a.logger.Error("order-event-record-failed",
					zap.String("order-id", ev.OrderID),
					zap.Error(err))
			}
		}
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
