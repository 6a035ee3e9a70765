package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jaedolph/scct-predictions/internal/orchestrator"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStorage implements orchestrator.Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreRecord inserts a finished prediction into the history table.
func (p *PostgresStorage) StoreRecord(ctx context.Context, rec *orchestrator.Record) error {
	query := `
		INSERT INTO prediction_history (
			id, prediction_id, title, outcomes, final_state,
			winning_outcome, created_at, ended_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.ID,
		rec.PredictionID,
		rec.Title,
		strings.Join(rec.OutcomeLabels, "|"),
		string(rec.FinalState),
		rec.WinningOutcome,
		rec.CreatedAt,
		rec.EndedAt,
	)

	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	p.logger.Debug("record-stored",
		zap.String("record-id", rec.ID),
		zap.String("prediction-id", rec.PredictionID),
		zap.String("final-state", string(rec.FinalState)))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
