package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds process-level configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimit RateLimitConfig
	Sweep     SweepConfig

	// CustomerCacheTTL bounds how long an account to gateway customer mapping
	// is served from cache.
	CustomerCacheTTL time.Duration

	// GatewayConfigSecret encrypts per-tenant gateway credentials at rest.
	GatewayConfigSecret string
	SnowflakeNode       int64
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewGatewayConfigHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:             getenv("APP_SERVICE", "railzway-braintree"),
		AppVersion:          getenv("APP_VERSION", "0.1.0"),
		Environment:         getenv("ENVIRONMENT", "development"),
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:        getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:              getenv("DATABASE_TYPE", "postgres"),
		DBHost:              getenv("DATABASE_HOST", "localhost"),
		DBPort:              getenv("DATABASE_PORT", "5432"),
		DBName:              getenv("DATABASE_NAME", "postgres"),
		DBUser:              getenv("DATABASE_USER", "postgres"),
		DBPassword:          getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:           getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:       int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:       int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime:   int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime:   int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
		RedisAddr:           strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:       getenv("REDIS_PASSWORD", ""),
		RedisDB:             int(getenvInt64("REDIS_DB", 0)),
		CustomerCacheTTL:    time.Duration(getenvInt64("CUSTOMER_CACHE_TTL_SECONDS", 300)) * time.Second,
		GatewayConfigSecret: strings.TrimSpace(getenv("GATEWAY_CONFIG_SECRET", "")),
		SnowflakeNode:       getenvInt64("SNOWFLAKE_NODE", 1),
		RateLimit: RateLimitConfig{
			Enabled:            getenvBool("RATE_LIMIT_ENABLED", false),
			GatewayRate:        getenvFloat("RATE_LIMIT_GATEWAY_RATE", 20),
			GatewayBurst:       int(getenvInt64("RATE_LIMIT_GATEWAY_BURST", 40)),
			TransactionLockTTL: time.Duration(getenvInt64("TRANSACTION_LOCK_TTL_SECONDS", 120)) * time.Second,
		},
		Sweep: SweepConfig{
			Enabled:   getenvBool("SWEEP_ENABLED", true),
			Interval:  time.Duration(getenvInt64("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
			MinAge:    time.Duration(getenvInt64("SWEEP_MIN_AGE_SECONDS", 300)) * time.Second,
			Lookback:  time.Duration(getenvInt64("SWEEP_LOOKBACK_HOURS", 72)) * time.Hour,
			BatchSize: int(getenvInt64("SWEEP_BATCH_SIZE", 50)),
		},
	}
}

// RateLimitConfig bounds gateway traffic per tenant. Requires Redis.
type RateLimitConfig struct {
	Enabled            bool
	GatewayRate        float64
	GatewayBurst       int
	TransactionLockTTL time.Duration
}

// SweepConfig drives the background reconciliation of pending payments.
type SweepConfig struct {
	Enabled   bool
	Interval  time.Duration
	MinAge    time.Duration
	Lookback  time.Duration
	BatchSize int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
