package app

import (
	"context"
	"sync"

	"github.com/jaedolph/scct-predictions/internal/feed"
	"github.com/jaedolph/scct-predictions/internal/gateway"
	"github.com/jaedolph/scct-predictions/internal/orchestrator"
	"github.com/jaedolph/scct-predictions/internal/twitch"
	"github.com/jaedolph/scct-predictions/pkg/cache"
	"github.com/jaedolph/scct-predictions/pkg/config"
	"github.com/jaedolph/scct-predictions/pkg/healthprobe"
	"github.com/jaedolph/scct-predictions/pkg/httpserver"
	"go.uber.org/zap"
)

// App wires the score feed, the prediction orchestrator, the Twitch client
// and the control surface together.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	scoreFeed     *feed.Feed
	twitchClient  *twitch.Client
	orch          *orchestrator.Orchestrator
	cmdGateway    *gateway.Gateway
	storage       orchestrator.Storage
	userCache     cache.Cache
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}
