package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr string
	Storage  string // "mysql" or "memory"

	DBHost string
	DBPort string
	DBUser string
	DBPass string
	DBName string

	RedisAddr      string
	ItemCacheTTL   time.Duration
	IdempotencyTTL time.Duration

	KafkaBrokers []string
	OrderTopic   string
	StockGroupID string

	JWTSecret string
	TokenTTL  time.Duration

	DeliverySchedule string
	DeliveryTimeout  time.Duration

	RateLimit float64
	RateBurst int
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8082"),
		Storage:          getEnv("STORAGE", "mysql"),
		DBHost:           getEnv("DB_HOST", "127.0.0.1"),
		DBPort:           getEnv("DB_PORT", "3306"),
		DBUser:           getEnv("DB_USER", "root"),
		DBPass:           os.Getenv("DB_PASS"),
		DBName:           getEnv("DB_NAME", "storefront"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		KafkaBrokers:     getKafkaBrokerURLs(),
		OrderTopic:       getEnv("ORDER_TOPIC", "order-topic"),
		StockGroupID:     getEnv("STOCK_GROUP_ID", "catalog-stock"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		DeliverySchedule: getEnv("DELIVERY_SCHEDULE", "@daily"),
	}

	var err error
	if cfg.ItemCacheTTL, err = getDuration("ITEM_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DeliveryTimeout, err = getDuration("DELIVERY_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}

	if cfg.RateLimit, err = strconv.ParseFloat(getEnv("RATE_LIMIT", "10"), 64); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT: %w", err)
	}
	if cfg.RateBurst, err = strconv.Atoi(getEnv("RATE_BURST", "30")); err != nil {
		return nil, fmt.Errorf("RATE_BURST: %w", err)
	}

	if cfg.Storage != "mysql" && cfg.Storage != "memory" {
		return nil, fmt.Errorf("STORAGE must be mysql or memory, got %q", cfg.Storage)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// DSN is the go-sql-driver/mysql data source name. parseTime is needed to
// scan DATETIME columns into time.Time.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
