package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/xraph/beacon/eventlog"
	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/trigger"
	"github.com/xraph/beacon/webhook"
)

// Config holds processor configuration.
type Config struct {
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Processor records callbacks, tracks webhook health and routes each
// callback to the handlers registered for its trigger.
type Processor struct {
	webhooks *webhook.Service
	log      eventlog.Store
	config   Config
	logger   *slog.Logger

	mu       sync.RWMutex
	handlers map[trigger.Trigger][]Handler
}

// NewProcessor creates a Processor.
func NewProcessor(webhooks *webhook.Service, log eventlog.Store, cfg Config, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		webhooks: webhooks,
		log:      log,
		config:   cfg,
		logger:   logger,
		handlers: make(map[trigger.Trigger][]Handler),
	}
}

// Register adds h to the handlers run for callbacks of t.
func (p *Processor) Register(t trigger.Trigger, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[t] = append(p.handlers[t], h)
}

// Process handles one callback request. Malformed requests and handler
// errors are returned; a callback for an unknown webhook is logged and
// dropped.
func (p *Processor) Process(ctx context.Context, query url.Values, body []byte) error {
	c, err := Parse(query, body)
	if err != nil {
		return err
	}

	ctx, span := p.config.Tracer.StartCallbackSpan(ctx, c.Event.String(), c.WebhookID.String(), c.EventID)
	err = p.process(ctx, c)
	observability.EndSpan(span, err)
	return err
}

func (p *Processor) process(ctx context.Context, c *Callback) error {
	p.config.Metrics.RecordCallback(c.Event.String(), string(c.Outcome()))

	w, err := p.webhooks.Get(ctx, c.WebhookID)
	if errors.Is(err, webhook.ErrNotFound) {
		p.logger.WarnContext(ctx, "callback for unknown webhook",
			"webhook_id", c.WebhookID, "event_id", c.EventID, "trigger", c.Event)
		return nil
	}
	if err != nil {
		return fmt.Errorf("callback: load webhook: %w", err)
	}
	c.Webhook = w

	p.mu.RLock()
	handlers := p.handlers[c.Event]
	p.mu.RUnlock()

	// A handler error makes the queue retry the callback, so the event log
	// and failure counter are only touched once all handlers succeeded.
	for _, h := range handlers {
		if err := h.Handle(ctx, c); err != nil {
			return fmt.Errorf("callback: handle %s: %w", c.Event, err)
		}
	}

	p.record(ctx, c)
	p.track(ctx, c)
	return nil
}

// record appends the callback to the event log. Failures are logged only.
func (p *Processor) record(ctx context.Context, c *Callback) {
	if p.log == nil {
		return
	}
	target := c.Report.URL
	if target == "" {
		target = c.Webhook.URL
	}
	entry := &eventlog.Entry{
		EventID:      c.EventID,
		WebhookID:    c.WebhookID,
		Event:        c.Event,
		URL:          target,
		Outcome:      c.Outcome(),
		HTTPStatus:   c.Report.HTTPStatus,
		MessageID:    c.Report.SourceMessageID,
		RequestBody:  string(c.Report.SourceBody),
		ResponseBody: string(c.Report.Body),
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.log.AppendEventLog(ctx, entry); err != nil {
		p.logger.ErrorContext(ctx, "record callback failed",
			"webhook_id", c.WebhookID, "event_id", c.EventID, "error", err)
	}
}

// track updates the failure counter of the webhook.
func (p *Processor) track(ctx context.Context, c *Callback) {
	var err error
	switch c.Outcome() {
	case queue.Success:
		err = p.webhooks.TrackSuccess(ctx, c.WebhookID)
	case queue.Failure:
		_, err = p.webhooks.TrackFailure(ctx, c.WebhookID, c.Report.HTTPStatus)
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "track webhook health failed",
			"webhook_id", c.WebhookID, "outcome", c.Outcome(), "error", err)
	}
}
