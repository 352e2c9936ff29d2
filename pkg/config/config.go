// Package config loads application configuration from the environment.
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

	// Venues
	JupiterBaseURL string
	RaydiumBaseURL string
	VenueTimeout   time.Duration
	SlippageBps    int
	QuoteValidity  time.Duration

	// Aggregation
	AggregateDeadline time.Duration
	UnhealthyAfter    int
	ProbeInterval     time.Duration
	ProbeInputMint    string
	ProbeOutputMint   string
	ProbeAmount       uint64

	// Price feed
	PriceFeedURL            string
	WSDialTimeout           time.Duration
	WSPongTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSMessageBufferSize     int

	// Order book
	DefaultOrderTTL   time.Duration
	OrderSweepTick    time.Duration
	TerminalRetention time.Duration

	// Execution
	SlippageTolerance float64
	JitterMin         time.Duration
	JitterMax         time.Duration
	RetryCap          int
	ConfirmAttempts   int
	ConfirmBackoff    time.Duration
	RPCEndpoint       string
	RelayEndpoint     string // empty disables the private channel

	// Tokens
	TokenListURL  string
	TokenCacheTTL time.Duration

	// Cache
	CacheNumCounters int64
	CacheMaxCost     int64

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
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Venue defaults
		JupiterBaseURL: getEnvOrDefault("JUPITER_BASE_URL", "https://quote-api.jup.ag/v6"),
		RaydiumBaseURL: getEnvOrDefault("RAYDIUM_BASE_URL", "https://transaction-v1.raydium.io"),
		VenueTimeout:   getDurationOrDefault("VENUE_TIMEOUT", 2*time.Second),
		SlippageBps:    getIntOrDefault("SLIPPAGE_BPS", 50),
		QuoteValidity:  getDurationOrDefault("QUOTE_VALIDITY", 10*time.Second),

		// Aggregation defaults
		AggregateDeadline: getDurationOrDefault("AGGREGATE_DEADLINE", 4*time.Second),
		UnhealthyAfter:    getIntOrDefault("VENUE_UNHEALTHY_AFTER", 3),
		ProbeInterval:     getDurationOrDefault("VENUE_PROBE_INTERVAL", 30*time.Second),
		ProbeInputMint:    getEnvOrDefault("VENUE_PROBE_INPUT_MINT", "So11111111111111111111111111111111111111112"),
		ProbeOutputMint:   getEnvOrDefault("VENUE_PROBE_OUTPUT_MINT", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
		ProbeAmount:       getUint64OrDefault("VENUE_PROBE_AMOUNT", 1_000_000),

		// Price feed defaults
		PriceFeedURL:            getEnvOrDefault("PRICE_FEED_WS_URL", "wss://price-feed.soltrade.local/ws"),
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPongTimeout:           getDurationOrDefault("WS_PONG_TIMEOUT", 15*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSMessageBufferSize:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 1000),

		// Order book defaults
		DefaultOrderTTL:   getDurationOrDefault("ORDER_DEFAULT_TTL", 24*time.Hour),
		OrderSweepTick:    getDurationOrDefault("ORDER_SWEEP_TICK", 5*time.Second),
		TerminalRetention: getDurationOrDefault("ORDER_TERMINAL_RETENTION", 1*time.Hour),

		// Execution defaults
		SlippageTolerance: getFloat64OrDefault("SLIPPAGE_TOLERANCE", 0.01),
		JitterMin:         getDurationOrDefault("ANTIMEV_JITTER_MIN", 100*time.Millisecond),
		JitterMax:         getDurationOrDefault("ANTIMEV_JITTER_MAX", 800*time.Millisecond),
		RetryCap:          getIntOrDefault("EXECUTION_RETRY_CAP", 3),
		ConfirmAttempts:   getIntOrDefault("CONFIRM_ATTEMPTS", 10),
		ConfirmBackoff:    getDurationOrDefault("CONFIRM_INITIAL_BACKOFF", 500*time.Millisecond),
		RPCEndpoint:       getEnvOrDefault("RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
		RelayEndpoint:     os.Getenv("RELAY_ENDPOINT"),

		// Token defaults
		TokenListURL:  getEnvOrDefault("TOKEN_LIST_URL", "https://tokens.jup.ag"),
		TokenCacheTTL: getDurationOrDefault("TOKEN_CACHE_TTL", 24*time.Hour),

		// Cache defaults
		CacheNumCounters: getInt64OrDefault("CACHE_NUM_COUNTERS", 100_000),
		CacheMaxCost:     getInt64OrDefault("CACHE_MAX_COST", 10_000),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "soltrade"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "soltrade123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "soltrade"),
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

	if c.JupiterBaseURL == "" {
		return fmt.Errorf("JUPITER_BASE_URL cannot be empty")
	}

	if c.VenueTimeout <= 0 {
		return fmt.Errorf("VENUE_TIMEOUT must be positive, got %s", c.VenueTimeout)
	}

	if c.AggregateDeadline < c.VenueTimeout {
		return fmt.Errorf("AGGREGATE_DEADLINE %s must be at least VENUE_TIMEOUT %s",
			c.AggregateDeadline, c.VenueTimeout)
	}

	if c.UnhealthyAfter <= 0 {
		return fmt.Errorf("VENUE_UNHEALTHY_AFTER must be positive, got %d", c.UnhealthyAfter)
	}

	if c.SlippageTolerance <= 0 || c.SlippageTolerance >= 1.0 {
		return fmt.Errorf("SLIPPAGE_TOLERANCE must be between 0 and 1.0, got %f", c.SlippageTolerance)
	}

	if c.JitterMax < c.JitterMin {
		return fmt.Errorf("ANTIMEV_JITTER_MAX %s must be at least ANTIMEV_JITTER_MIN %s",
			c.JitterMax, c.JitterMin)
	}

	if c.RetryCap <= 0 {
		return fmt.Errorf("EXECUTION_RETRY_CAP must be positive, got %d", c.RetryCap)
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

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getUint64OrDefault(key string, defaultValue uint64) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseUint(value, 10, 64)
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
