package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DBHost     string `env:"DB_HOST,default=localhost"`
	DBUser     string `env:"DB_USER,default=postgres"`
	DBPassword string `env:"DB_PASSWORD,default="`
	DBName     string `env:"DB_NAME,default=payroll"`
	DBPort     string `env:"DB_PORT,default=5432"`
	DBSSLMode  string `env:"DB_SSLMODE,default=disable"`

	RedisAddr   string `env:"REDIS_ADDR,default=localhost:6379"`
	KafkaBroker string `env:"KAFKA_BROKER"`

	APIPort int `env:"API_PORT,default=8080"`

	PayoutProvider string `env:"PAYOUT_PROVIDER,default=sandbox"`
	GatewayURL     string `env:"PAYOUT_GATEWAY_URL"`
	GatewayAPIKey  string `env:"PAYOUT_GATEWAY_API_KEY"`
	PayoutCurrency string `env:"PAYOUT_CURRENCY,default=KES"`

	WorkerConcurrency     int `env:"WORKER_CONCURRENCY,default=8"`
	PayoutTimeoutMillis   int `env:"PAYOUT_TIMEOUT_MS,default=15000"`
	PayoutRatePerSec      int `env:"PAYOUT_RATE_PER_SEC,default=20"`
	OutboxPollIntervalSec int `env:"OUTBOX_POLL_INTERVAL_SEC,default=3"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) PayoutTimeout() time.Duration {
	return time.Duration(c.PayoutTimeoutMillis) * time.Millisecond
}

func (c *Config) OutboxPollInterval() time.Duration {
	return time.Duration(c.OutboxPollIntervalSec) * time.Second
}
