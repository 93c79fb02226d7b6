package beacon

import "time"

// Config holds the configuration for a Beacon instance.
type Config struct {
	// AppURL is the base URL used for links in chat messages.
	AppURL string

	// CallbackURL is the absolute URL of the delivery outcome endpoint.
	CallbackURL string

	// FailureThreshold is the number of consecutive final failures after
	// which a webhook is disabled.
	FailureThreshold int

	// DispatchConcurrency caps the fan-out of a single dispatch. Zero means
	// unbounded.
	DispatchConcurrency int

	// MaxInFlight caps concurrently running background dispatches.
	MaxInFlight int

	// TestDelay postpones every queued delivery. Intended for local testing.
	TestDelay time.Duration

	// CallbackSigningKey verifies callback tokens and, with the local queue,
	// signs them.
	CallbackSigningKey string

	// NextCallbackSigningKey is also accepted during key rotation.
	NextCallbackSigningKey string

	// Concurrency is the number of local delivery workers.
	Concurrency int

	// PollInterval is how often the local engine checks for due deliveries.
	PollInterval time.Duration

	// BatchSize is the maximum number of deliveries dequeued per poll.
	BatchSize int

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// MaxAttempts is the number of delivery attempts before a delivery is
	// dead-lettered.
	MaxAttempts int

	// RetrySchedule defines the backoff intervals between attempts.
	RetrySchedule []time.Duration

	// DeliveryRateLimit caps local delivery attempts per destination host
	// and second. Zero means unlimited.
	DeliveryRateLimit int

	// DLQRetention is how long dead letters are kept.
	DLQRetention time.Duration

	// DLQPurgeSchedule is the cron expression of the DLQ purge.
	DLQPurgeSchedule string

	// ShutdownTimeout bounds Stop.
	ShutdownTimeout time.Duration
}

// DefaultRetrySchedule defines the default exponential backoff intervals.
var DefaultRetrySchedule = []time.Duration{
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
	15 * time.Minute,
	2 * time.Hour,
}

// DefaultConfig returns a Config with sensible defaults. CallbackURL has no
// default and must be set.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 20,
		MaxInFlight:      64,
		Concurrency:      10,
		PollInterval:     1 * time.Second,
		BatchSize:        50,
		RequestTimeout:   30 * time.Second,
		MaxAttempts:      6,
		RetrySchedule:    DefaultRetrySchedule,
		DLQRetention:     30 * 24 * time.Hour,
		DLQPurgeSchedule: "@hourly",
		ShutdownTimeout:  30 * time.Second,
	}
}
