package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/beacon/callback"
	"github.com/xraph/beacon/envelope"
	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/payload"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/trigger"
)

// Handler finalizes external payouts from payout.confirmed callbacks.
// Every guard that does not pass is a logged no-op, so a repeated or
// out-of-order callback never changes a payout twice.
type Handler struct {
	store   Store
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

var _ callback.Handler = (*Handler)(nil)

// NewHandler creates a payout confirmation handler.
func NewHandler(store Store, metrics *observability.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle implements callback.Handler.
func (h *Handler) Handle(ctx context.Context, c *callback.Callback) error {
	log := h.logger.With("event_id", c.EventID, "webhook_id", c.WebhookID, "outcome", c.Outcome())

	if c.Event != trigger.PayoutConfirmed {
		return nil
	}
	if c.Outcome() == queue.TemporaryFailure {
		log.DebugContext(ctx, "payout callback ignored: delivery will be retried")
		return nil
	}
	if c.Webhook != nil && c.Webhook.Managed() {
		log.DebugContext(ctx, "payout callback ignored: managed webhook")
		return nil
	}

	payoutID, err := payoutIDOf(c.Report.SourceBody)
	if err != nil {
		log.WarnContext(ctx, "payout callback ignored: unreadable payload", "error", err)
		h.metrics.RecordPayout("ignored")
		return nil
	}
	log = log.With("payout_id", payoutID)

	p, err := h.store.GetPayout(ctx, payoutID)
	if errors.Is(err, ErrNotFound) {
		log.ErrorContext(ctx, "payout callback for unknown payout")
		h.metrics.RecordPayout("missing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("payout: load %s: %w", payoutID, err)
	}

	if reason := skip(p, c.EventID); reason != "" {
		log.InfoContext(ctx, "payout callback ignored", "reason", reason, "status", p.Status, "mode", p.Mode)
		h.metrics.RecordPayout("ignored")
		return nil
	}

	f := Finalization{PayoutID: p.ID, EventID: c.EventID}
	if c.Outcome() == queue.Success {
		paidAt := h.now()
		f.Status, f.PaidAt = StatusCompleted, &paidAt
	} else {
		reason := failureReason(c.Report.HTTPStatus)
		f.Status, f.FailureReason = StatusFailed, &reason
	}

	err = h.store.FinalizePayout(ctx, f)
	if errors.Is(err, ErrNotProcessing) {
		log.InfoContext(ctx, "payout finalized concurrently")
		h.metrics.RecordPayout("ignored")
		return nil
	}
	if err != nil {
		h.metrics.RecordPayout("error")
		return fmt.Errorf("payout: finalize %s: %w", payoutID, err)
	}

	h.metrics.RecordPayout(string(f.Status))
	log.InfoContext(ctx, "payout finalized", "status", f.Status)
	return nil
}

// skip returns why p must not be finalized by eventID, or "".
func skip(p *Payout, eventID string) string {
	switch {
	case p.Mode != ModeExternal:
		return "not external"
	case p.WebhookEventID != nil && *p.WebhookEventID != eventID:
		return "confirmed by another event"
	case p.Status != StatusProcessing:
		return "not processing"
	}
	return ""
}

func payoutIDOf(body []byte) (string, error) {
	env, err := envelope.Parse(body)
	if err != nil {
		return "", err
	}
	var data payload.Payout
	if err := env.DecodeData(&data); err != nil {
		return "", err
	}
	if data.ID == "" {
		return "", errors.New("payout: payload carries no payout id")
	}
	return data.ID, nil
}

func failureReason(httpStatus int) string {
	if httpStatus == 0 {
		return "payout confirmation webhook could not be delivered"
	}
	return fmt.Sprintf("payout confirmation webhook failed with status %d", httpStatus)
}
