package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string
	CRDBDSN        string
	MongoURI       string
	MongoDB        string
	RedisAddr      string
	RabbitURL      string
	ConfirmQueue   string
	JWTSecret      string
	HoldTTL        time.Duration
	HoldTTLMin     time.Duration
	HoldTTLMax     time.Duration
	SweepInterval  time.Duration
	RateLimit      int
	IdempotencyTTL time.Duration
	ConfirmRetry   time.Duration
	OTLPEndpoint   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		CRDBDSN:      os.Getenv("CRDB_DSN"),
		MongoURI:     getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getenv("MONGO_DB", "tro"),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		ConfirmQueue: getenv("CONFIRM_QUEUE", "seats.confirm"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	if cfg.HoldTTL, err = durationEnv("HOLD_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.HoldTTLMin, err = durationEnv("HOLD_TTL_MIN", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.HoldTTLMax, err = durationEnv("HOLD_TTL_MAX", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = durationEnv("SWEEP_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.ConfirmRetry, err = durationEnv("CONFIRM_RETRY_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = intEnv("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return nil, err
	}

	if cfg.HoldTTLMin > cfg.HoldTTLMax {
		return nil, errors.Newf("HOLD_TTL_MIN (%s) exceeds HOLD_TTL_MAX (%s)", cfg.HoldTTLMin, cfg.HoldTTLMax)
	}
	if cfg.SweepInterval <= 0 {
		return nil, errors.New("SWEEP_INTERVAL must be positive")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return n, nil
}
