package app

import (
	"context"
	"fmt"

	"github.com/jaedolph/scct-predictions/internal/feed"
	"github.com/jaedolph/scct-predictions/internal/gateway"
	"github.com/jaedolph/scct-predictions/internal/orchestrator"
	"github.com/jaedolph/scct-predictions/internal/storage"
	"github.com/jaedolph/scct-predictions/internal/twitch"
	"github.com/jaedolph/scct-predictions/pkg/cache"
	"github.com/jaedolph/scct-predictions/pkg/config"
	"github.com/jaedolph/scct-predictions/pkg/healthprobe"
	"github.com/jaedolph/scct-predictions/pkg/httpserver"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	userCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	twitchClient, err := setupTwitchClient(cfg, logger, userCache)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup twitch client: %w", err)
	}

	scoreFeed := setupFeed(cfg, logger)

	predStorage, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	orch, err := setupOrchestrator(cfg, logger, twitchClient, predStorage, scoreFeed)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup orchestrator: %w", err)
	}

	cmdGateway, err := gateway.New(&gateway.Config{
		Orchestrator: orch,
		Timeout:      cfg.CommandTimeout,
		Logger:       logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup gateway: %w", err)
	}

	httpServer := setupHTTPServer(cfg, logger, healthChecker, cmdGateway, orch)

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		scoreFeed:     scoreFeed,
		twitchClient:  twitchClient,
		orch:          orch,
		cmdGateway:    cmdGateway,
		storage:       predStorage,
		userCache:     userCache,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	// Only broadcaster identity lookups live here, the cache stays tiny.
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100,
		MaxCost:     10,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupTwitchClient(cfg *config.Config, logger *zap.Logger, userCache cache.Cache) (*twitch.Client, error) {
	return twitch.New(&twitch.Config{
		APIURL:           cfg.TwitchAPIURL,
		AuthURL:          cfg.TwitchAuthURL,
		ClientID:         cfg.TwitchClientID,
		ClientSecret:     cfg.TwitchClientSecret,
		BroadcasterLogin: cfg.BroadcasterName,
		AuthToken:        cfg.AuthToken,
		RefreshToken:     cfg.RefreshToken,
		CallTimeout:      cfg.RemoteCallTimeout,
		MaxAttempts:      cfg.RemoteMaxAttempts,
		RetryBaseDelay:   cfg.RemoteRetryBaseDelay,
		RetryMaxDelay:    cfg.RemoteRetryMaxDelay,
		MaxRateWait:      cfg.RemoteMaxRateWait,
		UserCache:        userCache,
		Logger:           logger,
	})
}

func setupFeed(cfg *config.Config, logger *zap.Logger) *feed.Feed {
	return feed.New(feed.Config{
		URL:                   cfg.SCCTWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		EventBufferSize:       cfg.EventBufferSize,
		Logger:                logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (orchestrator.Storage, error) {
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

func setupOrchestrator(
	cfg *config.Config,
	logger *zap.Logger,
	twitchClient *twitch.Client,
	predStorage orchestrator.Storage,
	scoreFeed *feed.Feed,
) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(&orchestrator.Config{
		Remote:        twitchClient,
		Storage:       predStorage,
		Events:        scoreFeed.EventChan(),
		WindowSeconds: cfg.PredictionWindow,
		AutoCreate:    cfg.AutoCreate,
		QueueSize:     cfg.EventBufferSize,
		Logger:        logger,
	})
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	cmdGateway *gateway.Gateway,
	orch *orchestrator.Orchestrator,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Commands:      cmdGateway,
		Snapshots:     orch,
	})
}
