package config

import (
	"time"

	"github.com/xraph/beacon"
)

const (
	DefaultAddr       = ":8080"
	DefaultEnvPrefix  = "BEACON"
	DefaultStore      = "memory"
	DefaultQueueMode  = "local"
	DefaultLocalStore = "memory"
)

// Default returns the default configuration. Queue and DLQ tuning follows
// beacon.DefaultConfig.
func Default() *Config {
	lib := beacon.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: lib.ShutdownTimeout,
		},
		Store: StoreConfig{
			Driver:      DefaultStore,
			AutoMigrate: true,
		},
		Queue: QueueConfig{
			Mode:           DefaultQueueMode,
			LocalStore:     DefaultLocalStore,
			Concurrency:    lib.Concurrency,
			PollInterval:   lib.PollInterval,
			BatchSize:      lib.BatchSize,
			RequestTimeout: lib.RequestTimeout,
			MaxAttempts:    lib.MaxAttempts,
			RetrySchedule:  lib.RetrySchedule,
		},
		Dispatch: DispatchConfig{
			MaxInFlight:      lib.MaxInFlight,
			FailureThreshold: lib.FailureThreshold,
		},
		DLQ: DLQConfig{
			Retention:     lib.DLQRetention,
			PurgeSchedule: lib.DLQPurgeSchedule,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Beacon converts the daemon configuration into library configuration.
func (c *Config) Beacon() beacon.Config {
	return beacon.Config{
		AppURL:                 c.Dispatch.AppURL,
		CallbackURL:            c.Callback.URL,
		FailureThreshold:       c.Dispatch.FailureThreshold,
		DispatchConcurrency:    c.Dispatch.Concurrency,
		MaxInFlight:            c.Dispatch.MaxInFlight,
		TestDelay:              c.Dispatch.TestDelay,
		CallbackSigningKey:     c.Callback.SigningKey,
		NextCallbackSigningKey: c.Callback.NextSigningKey,
		Concurrency:            c.Queue.Concurrency,
		PollInterval:           c.Queue.PollInterval,
		BatchSize:              c.Queue.BatchSize,
		RequestTimeout:         c.Queue.RequestTimeout,
		MaxAttempts:            c.Queue.MaxAttempts,
		RetrySchedule:          c.Queue.RetrySchedule,
		DeliveryRateLimit:      c.Queue.RateLimit,
		DLQRetention:           c.DLQ.Retention,
		DLQPurgeSchedule:       c.DLQ.PurgeSchedule,
		ShutdownTimeout:        c.Server.ShutdownTimeout,
	}
}
