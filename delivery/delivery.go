// Package delivery implements a local durable queue: messages are stored,
// attempted over HTTP with backoff, dead-lettered when they cannot be
// delivered, and their outcomes are reported to the message's callback URL.
package delivery

import (
	"errors"
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
)

// ErrNotFound is returned when a delivery cannot be found.
var ErrNotFound = errors.New("delivery: not found")

// State represents the current state of a delivery.
type State string

const (
	// StatePending indicates the delivery is awaiting attempt.
	StatePending State = "pending"

	// StateDelivered indicates the delivery was successfully sent.
	StateDelivered State = "delivered"

	// StateFailed indicates the delivery permanently failed and was moved to the DLQ.
	StateFailed State = "failed"
)

// Delivery is one queued message and its attempt history.
type Delivery struct {
	entity.Entity

	// ID is the unique TypeID for this delivery. It doubles as the queue
	// message id.
	ID id.ID `json:"id"`

	// URL is the receiver endpoint.
	URL string `json:"url"`

	// Body is the exact payload POSTed on every attempt.
	Body []byte `json:"body"`

	// Headers are sent with every attempt.
	Headers map[string]string `json:"headers,omitempty"`

	// CallbackURL receives outcome reports. Empty disables reporting.
	CallbackURL string `json:"callbackUrl,omitempty"`

	// State is the current delivery state.
	State State `json:"state"`

	// AttemptCount is the number of delivery attempts made so far.
	AttemptCount int `json:"attemptCount"`

	// MaxAttempts is the maximum number of attempts before moving to DLQ.
	MaxAttempts int `json:"maxAttempts"`

	// NextAttemptAt is when the next delivery attempt should occur.
	NextAttemptAt time.Time `json:"nextAttemptAt"`

	// LastError is the error message from the most recent failed attempt.
	LastError string `json:"lastError,omitempty"`

	// LastStatusCode is the HTTP status code from the most recent attempt.
	LastStatusCode int `json:"lastStatusCode,omitempty"`

	// LastResponse is the response body from the most recent attempt (capped at 1KB).
	LastResponse string `json:"lastResponse,omitempty"`

	// LastLatencyMs is the latency in milliseconds of the most recent attempt.
	LastLatencyMs int `json:"lastLatencyMs,omitempty"`

	// CompletedAt is when the delivery was completed (delivered or failed).
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ListOpts configures filtering and pagination for delivery listing.
type ListOpts struct {
	Offset int
	Limit  int
	State  *State
}
