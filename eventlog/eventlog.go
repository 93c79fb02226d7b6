// Package eventlog records the outcome of every delivery reported back by
// the queue.
package eventlog

import (
	"context"
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/trigger"
)

// Entry is one reported delivery outcome.
type Entry struct {
	ID           int64           `json:"-"`
	EventID      string          `json:"eventId"`
	WebhookID    id.ID           `json:"webhookId"`
	Event        trigger.Trigger `json:"event"`
	URL          string          `json:"url"`
	Outcome      queue.Outcome   `json:"outcome"`
	HTTPStatus   int             `json:"httpStatus"`
	MessageID    string          `json:"messageId"`
	RequestBody  string          `json:"requestBody"`
	ResponseBody string          `json:"responseBody"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// ListOpts configures filtering and pagination for log listing.
type ListOpts struct {
	Offset  int
	Limit   int
	Outcome queue.Outcome
}

// Store defines the persistence contract for the event log.
type Store interface {
	// AppendEventLog records an entry.
	AppendEventLog(ctx context.Context, e *Entry) error

	// ListEventLog returns the entries of a webhook newest first.
	ListEventLog(ctx context.Context, whID id.ID, opts ListOpts) ([]*Entry, error)
}
