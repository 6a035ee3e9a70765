package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jaedolph/scct-predictions/pkg/types"
	"go.uber.org/zap"
)

// Submitter is the orchestrator surface the gateway forwards into.
type Submitter interface {
	Submit(ctx context.Context, cmd types.Command) (types.CommandResult, error)
}

// Gateway admits manual trigger commands from the control surface. It
// validates the declared shape before anything reaches the orchestrator
// queue, and blocks the caller until the processing result is known so a
// physical button press gets a definitive success/failure indication.
type Gateway struct {
	orchestrator Submitter
	timeout      time.Duration
	logger       *zap.Logger
}

// Config holds gateway configuration.
type Config struct {
	Orchestrator Submitter
	Timeout      time.Duration
	Logger       *zap.Logger
}

// New creates a new manual trigger gateway.
func New(cfg *Config) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Gateway{
		orchestrator: cfg.Orchestrator,
		timeout:      timeout,
		logger:       cfg.Logger,
	}, nil
}

// Execute validates and runs one manual command, returning the synchronous
// processing result.
func (g *Gateway) Execute(ctx context.Context, cmd types.Command) types.CommandResult {
	if reason, ok := validate(cmd); !ok {
		g.logger.Warn("command-rejected-invalid",
			zap.String("kind", string(cmd.Kind)),
			zap.String("reason", reason))
		CommandsTotal.WithLabelValues(string(cmd.Kind), "invalid").Inc()

		return types.CommandResult{Status: types.StatusRejected, Reason: reason}
	}

	execCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.orchestrator.Submit(execCtx, cmd)
	if err != nil {
		g.logger.Error("command-submit-failed",
			zap.String("kind", string(cmd.Kind)),
			zap.Error(err))
		CommandsTotal.WithLabelValues(string(cmd.Kind), "timeout").Inc()

		return types.CommandResult{
			Status: types.StatusFailed,
			Reason: fmt.Sprintf("command not processed: %v", err),
		}
	}

	CommandsTotal.WithLabelValues(string(cmd.Kind), string(result.Status)).Inc()
	g.logger.Info("command-processed",
		zap.String("kind", string(cmd.Kind)),
		zap.String("status", string(result.Status)),
		zap.String("reason", result.Reason))

	return result
}

// validate checks the declared command shape. State-dependent checks belong
// to the orchestrator; only structural problems are rejected here.
func validate(cmd types.Command) (reason string, ok bool) {
	if !cmd.Kind.Valid() {
		return fmt.Sprintf("unknown command %q", cmd.Kind), false
	}

	override := strings.TrimSpace(cmd.OutcomeOverride)
	if override != cmd.OutcomeOverride {
		return "outcome override has leading or trailing whitespace", false
	}

	if override != "" && cmd.Kind != types.CommandPayout {
		return fmt.Sprintf("outcome override is only valid for payout, not %q", cmd.Kind), false
	}

	return "", true
}
