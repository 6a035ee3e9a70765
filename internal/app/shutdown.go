package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application. The feed closes first so
// no new events arrive, then the orchestrator drains before storage goes
// away.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server so no new commands arrive
	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Close feed so no new events arrive
	err = a.scoreFeed.Close()
	if err != nil {
		a.logger.Error("feed-close-error", zap.Error(err))
	}

	// Cancel context to signal remaining goroutines
	a.cancel()

	// Close orchestrator, draining in-flight work
	err = a.orch.Close()
	if err != nil {
		a.logger.Error("orchestrator-close-error", zap.Error(err))
	}

	// Close storage
	err = a.storage.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.userCache.Close()

	// Wait for all goroutines
	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}
