package storage

import (
	"context"

	"github.com/jaedolph/scct-predictions/internal/orchestrator"
	"go.uber.org/zap"
)

// ConsoleStorage implements orchestrator.Storage by logging finished
// predictions instead of persisting them.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
	}
}

// StoreRecord logs a finished prediction.
func (c *ConsoleStorage) StoreRecord(ctx context.Context, rec *orchestrator.Record) error {
	c.logger.Info("prediction-finished",
		zap.String("record-id", rec.ID),
		zap.String("prediction-id", rec.PredictionID),
		zap.String("title", rec.Title),
		zap.Strings("outcomes", rec.OutcomeLabels),
		zap.String("final-state", string(rec.FinalState)),
		zap.String("winning-outcome", rec.WinningOutcome),
		zap.Time("created-at", rec.CreatedAt),
		zap.Time("ended-at", rec.EndedAt))

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
