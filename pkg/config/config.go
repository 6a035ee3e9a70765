package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Twitch API
	TwitchAPIURL       string
	TwitchAuthURL      string
	TwitchClientID     string
	TwitchClientSecret string
	BroadcasterName    string
	AuthToken          string
	RefreshToken       string

	// PredictionWindow is the auto-lock window in seconds (1..999).
	PredictionWindow int

	// AutoCreate opens a prediction as soon as a match starts. When false,
	// predictions are only opened by a manual create command.
	AutoCreate bool

	// SCCT feed
	SCCTWSURL               string
	WSDialTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	EventBufferSize         int

	// Remote call discipline
	RemoteCallTimeout    time.Duration
	RemoteMaxAttempts    int
	RemoteRetryBaseDelay time.Duration
	RemoteRetryMaxDelay  time.Duration
	RemoteMaxRateWait    time.Duration
	CommandTimeout       time.Duration

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "5123"),

		// Twitch API
		TwitchAPIURL:       getEnvOrDefault("TWITCH_API_URL", "https://api.twitch.tv/helix"),
		TwitchAuthURL:      getEnvOrDefault("TWITCH_AUTH_URL", "https://id.twitch.tv/oauth2/token"),
		TwitchClientID:     os.Getenv("TWITCH_CLIENT_ID"),
		TwitchClientSecret: os.Getenv("TWITCH_CLIENT_SECRET"),
		BroadcasterName:    os.Getenv("TWITCH_BROADCASTER_NAME"),
		AuthToken:          os.Getenv("TWITCH_AUTH_TOKEN"),
		RefreshToken:       os.Getenv("TWITCH_REFRESH_TOKEN"),

		PredictionWindow: getIntOrDefault("PREDICTION_WINDOW", 120),
		AutoCreate:       getBoolOrDefault("AUTO_CREATE", true),

		// SCCT feed defaults
		SCCTWSURL:               getEnvOrDefault("SCCT_WS_URL", "ws://localhost:62345/score"),
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		EventBufferSize:         getIntOrDefault("EVENT_BUFFER_SIZE", 64),

		// Remote call defaults
		RemoteCallTimeout:    getDurationOrDefault("REMOTE_CALL_TIMEOUT", 10*time.Second),
		RemoteMaxAttempts:    getIntOrDefault("REMOTE_MAX_ATTEMPTS", 4),
		RemoteRetryBaseDelay: getDurationOrDefault("REMOTE_RETRY_BASE_DELAY", 500*time.Millisecond),
		RemoteRetryMaxDelay:  getDurationOrDefault("REMOTE_RETRY_MAX_DELAY", 8*time.Second),
		RemoteMaxRateWait:    getDurationOrDefault("REMOTE_MAX_RATE_WAIT", 15*time.Second),
		CommandTimeout:       getDurationOrDefault("COMMAND_TIMEOUT", 30*time.Second),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "predictions"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "predictions"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "scct_predictions"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.SCCTWSURL == "" {
		return fmt.Errorf("SCCT_WS_URL cannot be empty")
	}

	if c.TwitchClientID == "" {
		return fmt.Errorf("TWITCH_CLIENT_ID cannot be empty")
	}

	if c.BroadcasterName == "" {
		return fmt.Errorf("TWITCH_BROADCASTER_NAME cannot be empty")
	}

	if c.AuthToken == "" {
		return fmt.Errorf("TWITCH_AUTH_TOKEN cannot be empty")
	}

	if c.PredictionWindow < 1 || c.PredictionWindow > 999 {
		return fmt.Errorf("PREDICTION_WINDOW must be between 1 and 999, got %d", c.PredictionWindow)
	}

	if c.RemoteMaxAttempts < 1 {
		return fmt.Errorf("REMOTE_MAX_ATTEMPTS must be at least 1, got %d", c.RemoteMaxAttempts)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
