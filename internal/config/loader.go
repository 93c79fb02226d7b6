package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type LoadOptions struct {
	ConfigFile string
	EnvPrefix  string
	Defaults   *Config
}

// Load reads configuration from defaults, an optional YAML file and
// environment variables, in increasing precedence, and validates it. A
// missing config file is not an error unless it was named explicitly.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := opts.Defaults
	if defaults == nil {
		defaults = Default()
	}
	setViperDefaults(v, defaults)

	if opts.EnvPrefix == "" {
		opts.EnvPrefix = DefaultEnvPrefix
	}
	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("beacon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/beacon")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setViperDefaults registers every key so environment variables bind even
// when no config file mentions them.
func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	v.SetDefault("store.driver", cfg.Store.Driver)
	v.SetDefault("store.dsn", cfg.Store.DSN)
	v.SetDefault("store.auto_migrate", cfg.Store.AutoMigrate)

	v.SetDefault("queue.mode", cfg.Queue.Mode)
	v.SetDefault("queue.local_store", cfg.Queue.LocalStore)
	v.SetDefault("queue.redis_url", cfg.Queue.RedisURL)
	v.SetDefault("queue.concurrency", cfg.Queue.Concurrency)
	v.SetDefault("queue.poll_interval", cfg.Queue.PollInterval)
	v.SetDefault("queue.batch_size", cfg.Queue.BatchSize)
	v.SetDefault("queue.request_timeout", cfg.Queue.RequestTimeout)
	v.SetDefault("queue.max_attempts", cfg.Queue.MaxAttempts)
	v.SetDefault("queue.retry_schedule", cfg.Queue.RetrySchedule)
	v.SetDefault("queue.rate_limit", cfg.Queue.RateLimit)
	v.SetDefault("queue.qstash.base_url", cfg.Queue.QStash.BaseURL)
	v.SetDefault("queue.qstash.token", cfg.Queue.QStash.Token)
	v.SetDefault("queue.qstash.retries", cfg.Queue.QStash.Retries)
	v.SetDefault("queue.qstash.timeout", cfg.Queue.QStash.Timeout)

	v.SetDefault("callback.url", cfg.Callback.URL)
	v.SetDefault("callback.signing_key", cfg.Callback.SigningKey)
	v.SetDefault("callback.next_signing_key", cfg.Callback.NextSigningKey)

	v.SetDefault("dispatch.app_url", cfg.Dispatch.AppURL)
	v.SetDefault("dispatch.concurrency", cfg.Dispatch.Concurrency)
	v.SetDefault("dispatch.max_in_flight", cfg.Dispatch.MaxInFlight)
	v.SetDefault("dispatch.test_delay", cfg.Dispatch.TestDelay)
	v.SetDefault("dispatch.failure_threshold", cfg.Dispatch.FailureThreshold)

	v.SetDefault("dlq.retention", cfg.DLQ.Retention)
	v.SetDefault("dlq.purge_schedule", cfg.DLQ.PurgeSchedule)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
}
