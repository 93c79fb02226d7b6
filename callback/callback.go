// Package callback processes delivery outcome notifications sent by the
// queue to the callback URL embedded at dispatch time.
package callback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/xraph/beacon/dispatch"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/trigger"
	"github.com/xraph/beacon/webhook"
)

var (
	// ErrMissingParams is returned when the callback URL lacks a correlation parameter.
	ErrMissingParams = errors.New("callback: missing webhookId, eventId or event")

	// ErrInvalidReport is returned when the callback body cannot be decoded.
	ErrInvalidReport = errors.New("callback: invalid report")
)

// Callback is one decoded outcome notification.
type Callback struct {
	WebhookID id.ID
	EventID   string
	Event     trigger.Trigger
	Report    queue.Report

	// Webhook is the delivery target, loaded before handlers run.
	Webhook *webhook.Webhook
}

// Outcome returns the delivery status reported by the queue.
func (c *Callback) Outcome() queue.Outcome { return c.Report.Outcome }

// Handler reacts to callbacks for the triggers it was registered for. A
// returned error makes the callback fail so the queue retries it.
type Handler interface {
	Handle(ctx context.Context, c *Callback) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, c *Callback) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, c *Callback) error { return f(ctx, c) }

// Parse decodes the correlation parameters and the report body.
func Parse(query url.Values, body []byte) (*Callback, error) {
	whRaw, evtID, event := query.Get(dispatch.ParamWebhookID), query.Get(dispatch.ParamEventID), query.Get(dispatch.ParamEvent)
	if whRaw == "" || evtID == "" || event == "" {
		return nil, ErrMissingParams
	}
	whID, err := id.ParseWebhookID(whRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingParams, err)
	}
	t, err := trigger.Parse(event)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingParams, err)
	}

	c := &Callback{WebhookID: whID, EventID: evtID, Event: t}
	if err := json.Unmarshal(body, &c.Report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return c, nil
}
