// Package config loads the beacon daemon configuration.
package config

import "time"

// Config is the daemon configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Callback CallbackConfig `mapstructure:"callback"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	DLQ      DLQConfig      `mapstructure:"dlq"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the persistence backend for webhooks, payouts and
// the event log.
type StoreConfig struct {
	// Driver is one of memory, sqlite or postgres.
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// QueueConfig selects the durable delivery queue.
type QueueConfig struct {
	// Mode is local (built-in engine) or qstash (external HTTP queue).
	Mode string `mapstructure:"mode"`

	// LocalStore backs the local queue: memory or redis.
	LocalStore string `mapstructure:"local_store"`
	RedisURL   string `mapstructure:"redis_url"`

	Concurrency    int             `mapstructure:"concurrency"`
	PollInterval   time.Duration   `mapstructure:"poll_interval"`
	BatchSize      int             `mapstructure:"batch_size"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	MaxAttempts    int             `mapstructure:"max_attempts"`
	RetrySchedule  []time.Duration `mapstructure:"retry_schedule"`
	RateLimit      int             `mapstructure:"rate_limit"`

	QStash QStashConfig `mapstructure:"qstash"`
}

type QStashConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Retries int           `mapstructure:"retries"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CallbackConfig configures the delivery outcome endpoint.
type CallbackConfig struct {
	// URL is the public absolute URL of POST /callback.
	URL            string `mapstructure:"url"`
	SigningKey     string `mapstructure:"signing_key"`
	NextSigningKey string `mapstructure:"next_signing_key"`
}

type DispatchConfig struct {
	AppURL           string        `mapstructure:"app_url"`
	Concurrency      int           `mapstructure:"concurrency"`
	MaxInFlight      int           `mapstructure:"max_in_flight"`
	TestDelay        time.Duration `mapstructure:"test_delay"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
}

type DLQConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	PurgeSchedule string        `mapstructure:"purge_schedule"`
}

type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level"`
	// Format is json or text.
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
