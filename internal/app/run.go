package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaedolph/scct-predictions/internal/twitch"
	"github.com/jaedolph/scct-predictions/pkg/types"
	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("broadcaster", a.cfg.BroadcasterName),
		zap.Int("prediction-window", a.cfg.PredictionWindow),
		zap.Bool("auto-create", a.cfg.AutoCreate),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		return err
	}

	// Mark as ready
	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("feed-url", a.cfg.SCCTWSURL))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	// Start HTTP server
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	// Adopt any prediction left open on Twitch before events can race it
	err := a.resyncRemoteState()
	if err != nil {
		return fmt.Errorf("resync remote state: %w", err)
	}

	// Start orchestrator before the feed so no event is dropped
	err = a.orch.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}

	err = a.scoreFeed.Start()
	if err != nil {
		return fmt.Errorf("start score feed: %w", err)
	}

	a.wg.Add(1)
	go a.watchFeedConnectivity()

	return nil
}

// resyncRemoteState queries Twitch for a prediction left unterminated by a
// previous run and adopts it so the state machine resumes where it stopped.
func (a *App) resyncRemoteState() error {
	ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
	defer cancel()

	remote, err := a.twitchClient.Current(ctx)
	if err != nil {
		return fmt.Errorf("fetch current prediction: %w", err)
	}

	if remote == nil {
		a.logger.Info("resync-no-remote-prediction")
		return nil
	}

	var state types.State
	switch remote.Status {
	case twitch.StatusActive:
		state = types.StateCreated
	case twitch.StatusLocked:
		state = types.StateLocked
	default:
		// Terminal on the remote side, nothing to adopt.
		a.logger.Info("resync-remote-prediction-terminal",
			zap.String("prediction-id", remote.ID),
			zap.String("status", remote.Status))
		return nil
	}

	// An ACTIVE prediction still has an open wager window; re-arm the
	// auto-lock from the remote creation time so it locks on schedule.
	var lockDeadline time.Time
	if state == types.StateCreated && remote.WindowSeconds > 0 && !remote.CreatedAt.IsZero() {
		lockDeadline = remote.CreatedAt.Add(time.Duration(remote.WindowSeconds) * time.Second)
	}

	a.orch.Adopt(remote.ID, remote.Title, remote.OutcomeLabels, state, remote.WinningOutcome, lockDeadline)

	a.logger.Info("resync-adopted-remote-prediction",
		zap.String("prediction-id", remote.ID),
		zap.String("title", remote.Title),
		zap.String("state", string(state)))

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// watchFeedConnectivity mirrors the feed connection state into the health
// probe so operators can see a down feed without reading logs.
func (a *App) watchFeedConnectivity() {
	defer a.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.healthChecker.SetFeedConnected(a.scoreFeed.Connected())
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
