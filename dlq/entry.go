package dlq

import (
	"errors"
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
)

// ErrNotFound is returned when a DLQ entry cannot be found.
var ErrNotFound = errors.New("dlq: entry not found")

// Entry represents a permanently failed delivery in the dead letter queue.
type Entry struct {
	entity.Entity

	// ID is the unique TypeID for this DLQ entry.
	ID id.ID `json:"id"`

	// DeliveryID references the failed delivery.
	DeliveryID id.ID `json:"deliveryId"`

	// URL is the receiver endpoint.
	URL string `json:"url"`

	// Body is the payload that failed to deliver.
	Body []byte `json:"body"`

	// Headers were sent with every attempt.
	Headers map[string]string `json:"headers,omitempty"`

	// CallbackURL of the original message, reused on replay.
	CallbackURL string `json:"callbackUrl,omitempty"`

	// Error is the error message from the final attempt.
	Error string `json:"error"`

	// AttemptCount is the total number of attempts made.
	AttemptCount int `json:"attemptCount"`

	// LastStatusCode is the HTTP status code from the final attempt.
	LastStatusCode int `json:"lastStatusCode,omitempty"`

	// ReplayedAt is set when the entry has been replayed.
	ReplayedAt *time.Time `json:"replayedAt,omitempty"`

	// FailedAt is when the delivery permanently failed.
	FailedAt time.Time `json:"failedAt"`
}

// ListOpts configures filtering and pagination for DLQ listing.
type ListOpts struct {
	Offset int
	Limit  int
	URL    string
	From   *time.Time
	To     *time.Time
}
