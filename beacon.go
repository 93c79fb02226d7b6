package beacon

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/xraph/beacon/callback"
	"github.com/xraph/beacon/catalog"
	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/dispatch"
	"github.com/xraph/beacon/dlq"
	"github.com/xraph/beacon/envelope"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/payout"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/receiver"
	"github.com/xraph/beacon/signature"
	"github.com/xraph/beacon/store"
	"github.com/xraph/beacon/trigger"
	"github.com/xraph/beacon/webhook"
)

// Beacon is the root webhook notification engine.
type Beacon struct {
	config     Config
	store      store.Store
	queueStore store.QueueStore
	publisher  queue.Publisher
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	screener   dispatch.Screener
	logger     *slog.Logger

	catalog    *catalog.Catalog
	webhooks   *webhook.Service
	dispatcher *dispatch.Dispatcher
	callbacks  *callback.Processor
	verifier   *signature.TokenVerifier
	dlqSvc     *dlq.Service
	engine     *delivery.Engine
	janitor    *dlq.Janitor
}

// New creates a new Beacon with the given options.
func New(opts ...Option) (*Beacon, error) {
	b := &Beacon{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	if b.store == nil {
		return nil, ErrNoStore
	}
	if b.publisher == nil && b.queueStore == nil {
		return nil, ErrNoPublisher
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if err := b.wireServices(); err != nil {
		return nil, err
	}
	return b, nil
}

// wireServices initializes the internal services after options have been applied.
func (b *Beacon) wireServices() error {
	b.catalog = catalog.New()
	b.webhooks = webhook.NewService(b.store, b.config.FailureThreshold, b.logger)

	if b.queueStore != nil {
		local := delivery.NewQueue(b.queueStore, b.config.MaxAttempts, b.metrics)
		if b.publisher == nil {
			b.publisher = local
		}
		b.dlqSvc = dlq.NewService(b.queueStore, local, b.logger)
		b.engine = delivery.NewEngine(b.queueStore, b.dlqSvc, delivery.EngineConfig{
			Concurrency:    b.config.Concurrency,
			PollInterval:   b.config.PollInterval,
			BatchSize:      b.config.BatchSize,
			RequestTimeout: b.config.RequestTimeout,
			RetrySchedule:  b.config.RetrySchedule,
			RateLimit:      b.config.DeliveryRateLimit,
			CallbackKey:    b.config.CallbackSigningKey,
			Metrics:        b.metrics,
			Tracer:         b.tracer,
		}, b.logger)

		janitor, err := dlq.NewJanitor(b.dlqSvc, b.config.DLQPurgeSchedule, b.config.DLQRetention, b.metrics, b.logger)
		if err != nil {
			return err
		}
		b.janitor = janitor
	}

	d, err := dispatch.New(
		webhook.NewResolver(b.store),
		envelope.NewBuilder(b.catalog, nil),
		receiver.NewTransformer(b.config.AppURL),
		b.publisher,
		dispatch.Config{
			CallbackURL: b.config.CallbackURL,
			Concurrency: b.config.DispatchConcurrency,
			MaxInFlight: b.config.MaxInFlight,
			TestDelay:   b.config.TestDelay,
			Screener:    b.screener,
			Metrics:     b.metrics,
			Tracer:      b.tracer,
		},
		b.logger,
	)
	if err != nil {
		return err
	}
	b.dispatcher = d

	b.callbacks = callback.NewProcessor(b.webhooks, b.store, callback.Config{
		Metrics: b.metrics,
		Tracer:  b.tracer,
	}, b.logger)
	b.callbacks.Register(trigger.PayoutConfirmed, payout.NewHandler(b.store, b.metrics, b.logger))

	if b.config.CallbackSigningKey != "" {
		b.verifier = signature.NewTokenVerifier(b.config.CallbackSigningKey, b.config.NextCallbackSigningKey)
	}
	return nil
}

// Start begins the local delivery engine and the DLQ purge schedule. It is
// a no-op for an external queue.
func (b *Beacon) Start(ctx context.Context) {
	if b.engine != nil {
		b.engine.Start(ctx)
	}
	if b.janitor != nil {
		b.janitor.Start()
	}
}

// Stop waits for background dispatches, then shuts down the local engine
// and the purge schedule. It waits at most ShutdownTimeout.
func (b *Beacon) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, b.config.ShutdownTimeout)
	defer cancel()

	if err := b.dispatcher.Wait(ctx); err != nil {
		b.logger.WarnContext(ctx, "background dispatches still running at shutdown", "error", err)
	}
	if b.janitor != nil {
		b.janitor.Stop(ctx)
	}
	if b.engine != nil {
		b.engine.Stop(ctx)
	}
}

// Dispatch notifies every subscribed webhook of workspaceID about one
// occurrence of t and returns the per-webhook enqueue results.
func (b *Beacon) Dispatch(ctx context.Context, workspaceID string, t trigger.Trigger, raw any) ([]dispatch.Result, error) {
	return b.dispatcher.Dispatch(ctx, workspaceID, t, raw)
}

// Go dispatches in the background. The caller never waits for, and never
// sees failures of, the dispatch.
func (b *Beacon) Go(ctx context.Context, workspaceID string, t trigger.Trigger, raw any) {
	b.dispatcher.Go(ctx, workspaceID, t, raw)
}

// SendTestEvent sends the sample payload of t to one webhook, regardless of
// its subscriptions.
func (b *Beacon) SendTestEvent(ctx context.Context, whID id.ID, t trigger.Trigger) (dispatch.Result, error) {
	w, err := b.webhooks.Get(ctx, whID)
	if err != nil {
		return dispatch.Result{}, err
	}
	sample, err := catalog.Sample(t)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("beacon: test event: %w", err)
	}
	return b.dispatcher.DispatchTo(ctx, w, t, sample)
}

// HandleCallback processes one delivery outcome callback. The caller is
// responsible for authenticating the request, see CallbackVerifier.
func (b *Beacon) HandleCallback(ctx context.Context, query url.Values, body []byte) error {
	return b.callbacks.Process(ctx, query, body)
}

// CallbackVerifier returns the callback token verifier, or nil when no
// signing key is configured.
func (b *Beacon) CallbackVerifier() *signature.TokenVerifier {
	return b.verifier
}

// Webhooks returns the webhook management service.
func (b *Beacon) Webhooks() *webhook.Service {
	return b.webhooks
}

// Catalog returns the trigger schema catalog.
func (b *Beacon) Catalog() *catalog.Catalog {
	return b.catalog
}

// Store returns the underlying store.
func (b *Beacon) Store() store.Store {
	return b.store
}

// DLQ returns the DLQ service, or nil when an external queue is used.
func (b *Beacon) DLQ() *dlq.Service {
	return b.dlqSvc
}

// Stats reports the local queue backlog.
func (b *Beacon) Stats(ctx context.Context) (pending, dead int64, err error) {
	if b.queueStore == nil {
		return 0, 0, ErrLocalQueueDisabled
	}
	if pending, err = b.queueStore.CountPending(ctx); err != nil {
		return 0, 0, err
	}
	if dead, err = b.queueStore.CountDLQ(ctx); err != nil {
		return 0, 0, err
	}
	return pending, dead, nil
}
