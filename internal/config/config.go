package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the matching engine.
type Config struct {
	Port     int
	LogLevel string
	DBPath   string

	// settlement
	RPCURL             string
	PrivateKey         string
	SettlementContract string
	VerifySignatures   bool

	// market data
	SampleInterval time.Duration
	CandleInterval time.Duration

	// persistence retry
	PersistAttempts int
	PersistBackoff  time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment, applies defaults, and
// validates values. A .env file in the working directory is merged in
// first; missing files are ignored.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	verifySignatures, err := getBool("VERIFY_SIGNATURES", false)
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFY_SIGNATURES: %w", err)
	}

	sampleInterval, err := getDuration("SAMPLE_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SAMPLE_INTERVAL: %w", err)
	}
	if sampleInterval <= 0 {
		return nil, fmt.Errorf("SAMPLE_INTERVAL must be positive")
	}

	candleInterval, err := getDuration("CANDLE_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid CANDLE_INTERVAL: %w", err)
	}
	if candleInterval <= 0 {
		return nil, fmt.Errorf("CANDLE_INTERVAL must be positive")
	}

	persistAttempts, err := getInt("PERSIST_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid PERSIST_ATTEMPTS: %w", err)
	}
	if persistAttempts < 1 {
		return nil, fmt.Errorf("PERSIST_ATTEMPTS must be at least 1")
	}

	persistBackoff, err := getDuration("PERSIST_BACKOFF", 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid PERSIST_BACKOFF: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:               port,
		LogLevel:           logLevel,
		DBPath:             getStr("DB_PATH", "matchbook.db"),
		RPCURL:             getStr("RPC_URL", ""),
		PrivateKey:         getStr("PRIVATE_KEY", ""),
		SettlementContract: getStr("SETTLEMENT_CONTRACT", ""),
		VerifySignatures:   verifySignatures,
		SampleInterval:     sampleInterval,
		CandleInterval:     candleInterval,
		PersistAttempts:    persistAttempts,
		PersistBackoff:     persistBackoff,
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		IdleTimeout:        idleTimeout,
		ShutdownTimeout:    shutdownTimeout,
	}, nil
}

// SettlementConfigured reports whether the chain-facing settings are
// all present. Without them the engine runs with settlement disabled.
func (c *Config) SettlementConfigured() bool {
	return c.RPCURL != "" && c.PrivateKey != "" && c.SettlementContract != ""
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
