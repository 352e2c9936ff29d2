package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application. Inbound traffic stops
// first, then the pipeline drains from producer to consumer.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	err = a.priceFeed.Close()
	if err != nil {
		a.logger.Error("pricefeed-close-error", zap.Error(err))
	}

	err = a.scheduler.Close()
	if err != nil {
		a.logger.Error("scheduler-close-error", zap.Error(err))
	}

	err = a.coordinator.Close()
	if err != nil {
		a.logger.Error("coordinator-close-error", zap.Error(err))
	}

	err = a.aggregator.Close()
	if err != nil {
		a.logger.Error("aggregator-close-error", zap.Error(err))
	}

	err = a.book.Close()
	if err != nil {
		a.logger.Error("order-book-close-error", zap.Error(err))
	}

	err = a.storage.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.appCache.Close()

	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}
