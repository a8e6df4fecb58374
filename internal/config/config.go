package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort        string
	APIBaseURL      string
	PublicURL       string
	DefaultBranchID string
	LogLevel        string

	RedisAddr     string
	RedisPassword string
	DraftTTL      time.Duration
	CatalogTTL    time.Duration

	LedgerDriver   string
	LedgerDSN      string
	MigrationsPath string

	KafkaBrokers []string
	EventsTopic  string

	RequestTimeout     time.Duration
	VerifyTimeout      time.Duration
	ShutdownTimeout    time.Duration
	APIRateLimit       float64
	HealthInterval     time.Duration
	MaxRequestBodySize int64
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		APIBaseURL:         strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000/api/v1"), "/"),
		PublicURL:          strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:5173"), "/"),
		DefaultBranchID:    getEnv("DEFAULT_BRANCH_ID", "default-branch-id"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		LedgerDriver:       getEnv("LEDGER_DRIVER", "postgres"),
		LedgerDSN:          getEnv("LEDGER_DSN", ""),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", "./internal/ledger/migrations"),
		EventsTopic:        getEnv("EVENTS_TOPIC", "laundry-events"),
		MaxRequestBodySize: 1 << 20, // 1MB
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"DRAFT_TTL", "2h", &cfg.DraftTTL},
		{"CATALOG_TTL", "5m", &cfg.CatalogTTL},
		{"REQUEST_TIMEOUT", "10s", &cfg.RequestTimeout},
		{"VERIFY_TIMEOUT", "6s", &cfg.VerifyTimeout},
		{"SHUTDOWN_TIMEOUT", "10s", &cfg.ShutdownTimeout},
		{"HEALTH_INTERVAL", "15s", &cfg.HealthInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	rateLimit, err := strconv.ParseFloat(getEnv("API_RATE_LIMIT", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid API_RATE_LIMIT: %w", err)
	}
	cfg.APIRateLimit = rateLimit

	// A verification has to report before the order-detail request gives up.
	if cfg.VerifyTimeout >= cfg.RequestTimeout {
		return nil, fmt.Errorf("VERIFY_TIMEOUT (%s) must be shorter than REQUEST_TIMEOUT (%s)", cfg.VerifyTimeout, cfg.RequestTimeout)
	}

	switch cfg.LedgerDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported LEDGER_DRIVER %q", cfg.LedgerDriver)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
