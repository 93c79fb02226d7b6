package beacon

import (
	"log/slog"

	"github.com/xraph/beacon/dispatch"
	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/store"
)

// Option configures a Beacon instance.
type Option func(*Beacon) error

// WithStore sets the persistence backend for webhooks, payouts and the
// event log.
func WithStore(s store.Store) Option {
	return func(b *Beacon) error {
		b.store = s
		return nil
	}
}

// WithQueueStore enables the local delivery queue backed by s.
func WithQueueStore(s store.QueueStore) Option {
	return func(b *Beacon) error {
		b.queueStore = s
		return nil
	}
}

// WithPublisher sets an external durable queue. It takes precedence over
// the local queue for dispatches.
func WithPublisher(p queue.Publisher) Option {
	return func(b *Beacon) error {
		b.publisher = p
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Beacon) error {
		b.logger = logger
		return nil
	}
}

// WithConfig replaces the configuration. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(b *Beacon) error {
		b.config = mergeConfig(b.config, cfg)
		return nil
	}
}

// WithCallbackURL sets the delivery outcome endpoint.
func WithCallbackURL(u string) Option {
	return func(b *Beacon) error {
		b.config.CallbackURL = u
		return nil
	}
}

// WithMetrics enables Prometheus instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Beacon) error {
		b.metrics = m
		return nil
	}
}

// WithTracer enables OpenTelemetry spans.
func WithTracer(t *observability.Tracer) Option {
	return func(b *Beacon) error {
		b.tracer = t
		return nil
	}
}

// WithScreener sets the dispatch screen consulted before every dispatch.
func WithScreener(s dispatch.Screener) Option {
	return func(b *Beacon) error {
		b.screener = s
		return nil
	}
}

func mergeConfig(base, over Config) Config {
	if over.AppURL != "" {
		base.AppURL = over.AppURL
	}
	if over.CallbackURL != "" {
		base.CallbackURL = over.CallbackURL
	}
	if over.FailureThreshold > 0 {
		base.FailureThreshold = over.FailureThreshold
	}
	if over.DispatchConcurrency > 0 {
		base.DispatchConcurrency = over.DispatchConcurrency
	}
	if over.MaxInFlight > 0 {
		base.MaxInFlight = over.MaxInFlight
	}
	if over.TestDelay > 0 {
		base.TestDelay = over.TestDelay
	}
	if over.CallbackSigningKey != "" {
		base.CallbackSigningKey = over.CallbackSigningKey
	}
	if over.NextCallbackSigningKey != "" {
		base.NextCallbackSigningKey = over.NextCallbackSigningKey
	}
	if over.Concurrency > 0 {
		base.Concurrency = over.Concurrency
	}
	if over.PollInterval > 0 {
		base.PollInterval = over.PollInterval
	}
	if over.BatchSize > 0 {
		base.BatchSize = over.BatchSize
	}
	if over.RequestTimeout > 0 {
		base.RequestTimeout = over.RequestTimeout
	}
	if over.MaxAttempts > 0 {
		base.MaxAttempts = over.MaxAttempts
	}
	if len(over.RetrySchedule) > 0 {
		base.RetrySchedule = over.RetrySchedule
	}
	if over.DeliveryRateLimit > 0 {
		base.DeliveryRateLimit = over.DeliveryRateLimit
	}
	if over.DLQRetention > 0 {
		base.DLQRetention = over.DLQRetention
	}
	if over.DLQPurgeSchedule != "" {
		base.DLQPurgeSchedule = over.DLQPurgeSchedule
	}
	if over.ShutdownTimeout > 0 {
		base.ShutdownTimeout = over.ShutdownTimeout
	}
	return base
}
