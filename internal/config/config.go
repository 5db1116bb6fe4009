package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN    string `env:"DATABASE_DSN,required=true"`
	RedisURL       string `env:"REDIS_URL,required=true"`
	DBMaxOpenConns int    `env:"DB_MAX_OPEN_CONNS,default=50"`
	DBMaxIdleConns int    `env:"DB_MAX_IDLE_CONNS,default=10"`

	EmailAPIURL   string `env:"EMAIL_API_URL,required=true"`
	EmailAPIKey   string `env:"EMAIL_API_KEY,required=true"`
	EmailFrom     string `env:"EMAIL_FROM,default=alerts@rankpilot.io"`
	SMSGatewayURL string `env:"SMS_GATEWAY_URL"`
	SMSGatewayKey string `env:"SMS_GATEWAY_KEY"`

	RateLimitPerSec  int  `env:"RATE_LIMIT_PER_SEC,default=100"`
	SMSLimitPerSec   int  `env:"SMS_LIMIT_PER_SEC,default=10"`
	JobBatchSize     int  `env:"JOB_BATCH_SIZE,default=50"`
	PollIntervalSecs int  `env:"POLL_INTERVAL_SECS,default=30"`
	PollerEnabled    bool `env:"POLLER_ENABLED,default=true"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}
