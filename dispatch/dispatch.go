// Package dispatch fans a built envelope out to every subscribed webhook
// through the durable delivery queue.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/beacon/envelope"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/receiver"
	"github.com/xraph/beacon/signature"
	"github.com/xraph/beacon/trigger"
	"github.com/xraph/beacon/webhook"
)

// Callback query parameters correlating an outcome with its delivery.
const (
	ParamWebhookID = "webhookId"
	ParamEventID   = "eventId"
	ParamEvent     = "event"
)

// ErrNoCallbackURL is returned by New when no callback base URL is configured.
var ErrNoCallbackURL = errors.New("dispatch: callback URL is required")

// Screener decides whether an occurrence may be dispatched at all.
type Screener interface {
	Allow(ctx context.Context, workspaceID string, t trigger.Trigger) bool
}

// AllowAll is the Screener that admits every occurrence.
type AllowAll struct{}

// Allow always returns true.
func (AllowAll) Allow(context.Context, string, trigger.Trigger) bool { return true }

// Config holds dispatcher configuration.
type Config struct {
	// CallbackURL is the absolute URL of the outcome callback endpoint.
	CallbackURL string

	// Concurrency caps the per-dispatch fan-out. Zero means unbounded.
	Concurrency int

	// MaxInFlight caps concurrently running background dispatches.
	MaxInFlight int

	// TestDelay postpones queue delivery. It never changes body or signature.
	TestDelay time.Duration

	Screener Screener
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer
}

// Result reports the enqueue outcome for one webhook.
type Result struct {
	WebhookID id.ID
	Receiver  receiver.Kind
	MessageID string
	Err       error
}

// Dispatcher runs the resolve, build, transform, sign and enqueue pipeline.
type Dispatcher struct {
	resolver    *webhook.Resolver
	builder     *envelope.Builder
	transformer *receiver.Transformer
	publisher   queue.Publisher
	callback    *url.URL
	config      Config
	logger      *slog.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

// New creates a Dispatcher.
func New(resolver *webhook.Resolver, builder *envelope.Builder, transformer *receiver.Transformer, publisher queue.Publisher, cfg Config, logger *slog.Logger) (*Dispatcher, error) {
	if cfg.CallbackURL == "" {
		return nil, ErrNoCallbackURL
	}
	cb, err := url.Parse(cfg.CallbackURL)
	if err != nil || !cb.IsAbs() {
		return nil, fmt.Errorf("dispatch: invalid callback URL %q", cfg.CallbackURL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Screener == nil {
		cfg.Screener = AllowAll{}
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 64
	}
	return &Dispatcher{
		resolver:    resolver,
		builder:     builder,
		transformer: transformer,
		publisher:   publisher,
		callback:    cb,
		config:      cfg,
		logger:      logger,
		sem:         make(chan struct{}, cfg.MaxInFlight),
	}, nil
}

// Dispatch notifies every subscribed webhook of workspaceID about one
// occurrence of t. It returns after all enqueue calls settled; a failed
// branch is reported in its Result and never affects its siblings. A
// workspace without subscribers returns no results and no error.
func (d *Dispatcher) Dispatch(ctx context.Context, workspaceID string, t trigger.Trigger, raw any) ([]Result, error) {
	ctx, span := d.config.Tracer.StartDispatchSpan(ctx, workspaceID, t.String())

	results, err := d.dispatch(ctx, workspaceID, t, raw)
	observability.EndSpan(span, err)
	return results, err
}

func (d *Dispatcher) dispatch(ctx context.Context, workspaceID string, t trigger.Trigger, raw any) ([]Result, error) {
	if !d.config.Screener.Allow(ctx, workspaceID, t) {
		d.logger.InfoContext(ctx, "dispatch screened out",
			"workspace_id", workspaceID, "trigger", t)
		return nil, nil
	}

	hooks, err := d.resolver.Resolve(ctx, workspaceID, t)
	if err != nil {
		return nil, err
	}
	if len(hooks) == 0 {
		return nil, nil
	}

	env, err := d.builder.Build(t, raw)
	if err != nil {
		d.logBuildError(ctx, workspaceID, t, err)
		return nil, err
	}
	d.config.Metrics.RecordDispatch(t.String())

	results := d.fanOut(ctx, env, hooks)

	d.logger.DebugContext(ctx, "event dispatched",
		"event_id", env.ID(),
		"trigger", t,
		"workspace_id", workspaceID,
		"webhooks", len(hooks),
	)
	return results, nil
}

// DispatchTo builds an envelope and enqueues it for a single webhook,
// regardless of its subscriptions or disabled state.
func (d *Dispatcher) DispatchTo(ctx context.Context, w *webhook.Webhook, t trigger.Trigger, raw any) (Result, error) {
	env, err := d.builder.Build(t, raw)
	if err != nil {
		d.logBuildError(ctx, w.WorkspaceID, t, err)
		return Result{WebhookID: w.ID}, err
	}
	d.config.Metrics.RecordDispatch(t.String())
	res := d.deliver(ctx, env, w)
	return res, res.Err
}

// Go runs Dispatch in the background, detached from the caller's
// cancellation. Failures are logged; nothing propagates to the caller.
func (d *Dispatcher) Go(ctx context.Context, workspaceID string, t trigger.Trigger, raw any) {
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.ErrorContext(ctx, "dispatch panicked",
					"workspace_id", workspaceID, "trigger", t,
					"panic", r, "stack", string(debug.Stack()))
			}
		}()

		d.sem <- struct{}{}
		defer func() { <-d.sem }()

		if _, err := d.Dispatch(ctx, workspaceID, t, raw); err != nil {
			d.logger.ErrorContext(ctx, "dispatch failed",
				"workspace_id", workspaceID, "trigger", t, "error", err)
		}
	}()
}

// Wait blocks until all background dispatches finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fanOut enqueues env for every webhook concurrently and waits for all
// branches to settle.
func (d *Dispatcher) fanOut(ctx context.Context, env *envelope.Envelope, hooks []*webhook.Webhook) []Result {
	results := make([]Result, len(hooks))

	var g errgroup.Group
	if d.config.Concurrency > 0 {
		g.SetLimit(d.config.Concurrency)
	}
	for i, w := range hooks {
		g.Go(func() error {
			results[i] = d.deliver(ctx, env, w)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// deliver runs one branch: transform, sign, enqueue.
func (d *Dispatcher) deliver(ctx context.Context, env *envelope.Envelope, w *webhook.Webhook) Result {
	kind := w.Kind()
	res := Result{WebhookID: w.ID, Receiver: kind}

	ctx, span := d.config.Tracer.StartEnqueueSpan(ctx, w.ID.String(), env.ID().String(), string(kind))
	defer func() { observability.EndSpan(span, res.Err) }()

	msg, err := d.message(env, w, kind)
	if err != nil {
		res.Err = err
		d.config.Metrics.RecordEnqueue(string(kind), err)
		d.logger.ErrorContext(ctx, "prepare delivery failed",
			"webhook_id", w.ID, "event_id", env.ID(), "trigger", env.Event(),
			"receiver", kind, "error", err)
		return res
	}

	receipt, err := d.publisher.Publish(ctx, msg)
	d.config.Metrics.RecordEnqueue(string(kind), err)
	if err != nil {
		res.Err = fmt.Errorf("dispatch: enqueue %s: %w", w.ID, err)
		d.logger.ErrorContext(ctx, "enqueue failed",
			"webhook_id", w.ID, "workspace_id", w.WorkspaceID, "event_id", env.ID(),
			"trigger", env.Event(), "receiver", kind, "url", w.URL, "error", err)
		return res
	}
	res.MessageID = receipt.MessageID
	return res
}

// message builds the queue message for w. The signature covers exactly
// the transformed bytes the receiver will get.
func (d *Dispatcher) message(env *envelope.Envelope, w *webhook.Webhook, kind receiver.Kind) (queue.Message, error) {
	body, err := d.transformer.Transform(env, kind)
	if err != nil {
		return queue.Message{}, err
	}
	sig, err := signature.Sign(w.Secret, body)
	if err != nil {
		return queue.Message{}, fmt.Errorf("dispatch: sign for %s: %w", w.ID, err)
	}

	headers := map[string]string{
		"Content-Type":   "application/json",
		signature.Header: sig,
	}
	if kind == receiver.CustomerData {
		auth, err := signature.ForwardedAuthorization(w.Secret)
		if err != nil {
			return queue.Message{}, fmt.Errorf("dispatch: authorize for %s: %w", w.ID, err)
		}
		headers["Authorization"] = auth
	}

	return queue.Message{
		URL:         w.URL,
		Body:        body,
		Headers:     headers,
		CallbackURL: d.callbackURL(w.ID, env),
		Delay:       d.config.TestDelay,
	}, nil
}

func (d *Dispatcher) callbackURL(whID id.ID, env *envelope.Envelope) string {
	u := *d.callback
	q := u.Query()
	q.Set(ParamWebhookID, whID.String())
	q.Set(ParamEventID, env.ID().String())
	q.Set(ParamEvent, env.Event().String())
	u.RawQuery = q.Encode()
	return u.String()
}

func (d *Dispatcher) logBuildError(ctx context.Context, workspaceID string, t trigger.Trigger, err error) {
	attrs := []any{"workspace_id", workspaceID, "trigger", t, "error", err}
	var verr *envelope.ValidationError
	if errors.As(err, &verr) {
		attrs = append(attrs, "data", string(verr.Data))
	}
	d.logger.ErrorContext(ctx, "build envelope failed", attrs...)
}
