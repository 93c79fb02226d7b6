package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/ratelimit"
)

// EngineStore is the interface the engine needs for delivery operations.
type EngineStore interface {
	Dequeue(ctx context.Context, limit int) ([]*Delivery, error)
	UpdateDelivery(ctx context.Context, d *Delivery) error
}

// DLQPusher pushes permanently failed deliveries to the dead letter queue.
type DLQPusher interface {
	PushFailed(ctx context.Context, d *Delivery, lastError string, lastStatusCode int) error
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	Concurrency    int
	PollInterval   time.Duration
	BatchSize      int
	RequestTimeout time.Duration
	RetrySchedule  []time.Duration

	// RateLimit caps attempts per destination host and second. Zero means
	// unlimited.
	RateLimit int

	// CallbackKey signs outcome reports. Empty disables reporting.
	CallbackKey string

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Engine is the delivery worker pool that dequeues and processes deliveries.
type Engine struct {
	store    EngineStore
	sender   *Sender
	retrier  *Retrier
	notifier *Notifier
	limiter  *ratelimit.Limiter
	dlq      DLQPusher
	config   EngineConfig
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a delivery engine.
func NewEngine(store EngineStore, dlq DLQPusher, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	e := &Engine{
		store:   store,
		sender:  NewSender(cfg.RequestTimeout),
		retrier: NewRetrier(cfg.RetrySchedule),
		limiter: ratelimit.New(cfg.RateLimit),
		dlq:     dlq,
		config:  cfg,
		logger:  logger,
	}
	if cfg.CallbackKey != "" {
		e.notifier = NewNotifier(cfg.CallbackKey, cfg.RequestTimeout, 0)
	}
	return e
}

// Start begins the delivery workers and poll loop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight deliveries to complete.
func (e *Engine) Stop(_ context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// pollLoop periodically dequeues pending deliveries and dispatches them to workers.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, e.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := e.store.Dequeue(ctx, e.config.BatchSize)
			if err != nil {
				e.logger.ErrorContext(ctx, "dequeue failed", "error", err)
				continue
			}

			for _, d := range batch {
				select {
				case <-ctx.Done():
					return
				case sem <- struct{}{}:
				}

				e.wg.Add(1)
				go func(del *Delivery) {
					defer e.wg.Done()
					defer func() { <-sem }()
					e.process(ctx, del)
				}(d)
			}
		}
	}
}

// process handles a single delivery: send, decide, update, report.
func (e *Engine) process(ctx context.Context, d *Delivery) {
	if ok, wait := e.limiter.Allow(d.URL); !ok {
		e.postpone(ctx, d, wait)
		return
	}

	ctx, span := e.config.Tracer.StartDeliverySpan(ctx, d.ID.String(), d.URL)

	d.AttemptCount++
	result := e.sender.Send(ctx, d)

	d.LastError = result.Error
	d.LastStatusCode = result.StatusCode
	d.LastResponse = result.Response
	d.LastLatencyMs = result.LatencyMs

	latencySeconds := float64(result.LatencyMs) / 1000.0
	metrics := e.config.Metrics

	outcome := e.retrier.Outcome(result, d)
	switch outcome {
	case queue.Success:
		now := time.Now().UTC()
		d.State = StateDelivered
		d.CompletedAt = &now
		metrics.RecordDelivery("delivered", latencySeconds)
		metrics.AddPending(-1)
		e.logger.DebugContext(ctx, "delivered",
			"delivery_id", d.ID, "status", result.StatusCode, "latency_ms", result.LatencyMs)

	case queue.TemporaryFailure:
		d.NextAttemptAt = e.retrier.NextAttempt(d.AttemptCount)
		metrics.RecordDelivery("retried", latencySeconds)
		e.logger.DebugContext(ctx, "retry scheduled",
			"delivery_id", d.ID, "attempt", d.AttemptCount, "next_at", d.NextAttemptAt)

	case queue.Failure:
		now := time.Now().UTC()
		d.State = StateFailed
		d.CompletedAt = &now
		if e.dlq != nil {
			if dlqErr := e.dlq.PushFailed(ctx, d, result.Error, result.StatusCode); dlqErr != nil {
				e.logger.ErrorContext(ctx, "push to DLQ failed",
					"delivery_id", d.ID, "error", dlqErr)
			} else {
				metrics.AddDLQ(1)
			}
		}
		metrics.RecordDelivery("failed", latencySeconds)
		metrics.AddPending(-1)
		e.logger.WarnContext(ctx, "delivery failed permanently",
			"delivery_id", d.ID, "url", d.URL, "status", result.StatusCode, "error", result.Error)
	}

	observability.EndDeliverySpan(span, d.LastStatusCode, d.LastLatencyMs, d.LastError)

	if updateErr := e.store.UpdateDelivery(ctx, d); updateErr != nil {
		e.logger.ErrorContext(ctx, "update delivery failed",
			"delivery_id", d.ID, "error", updateErr)
	}

	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, d, outcome, result); err != nil {
			e.logger.WarnContext(ctx, "outcome callback failed",
				"delivery_id", d.ID, "outcome", outcome, "error", err)
		}
	}
}

// postpone releases a throttled delivery without counting an attempt.
func (e *Engine) postpone(ctx context.Context, d *Delivery, wait time.Duration) {
	d.NextAttemptAt = time.Now().UTC().Add(wait)
	if err := e.store.UpdateDelivery(ctx, d); err != nil {
		e.logger.ErrorContext(ctx, "release throttled delivery failed",
			"delivery_id", d.ID, "error", err)
		return
	}
	e.logger.DebugContext(ctx, "delivery throttled",
		"delivery_id", d.ID, "url", d.URL, "next_at", d.NextAttemptAt)
}
