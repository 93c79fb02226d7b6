// Package dlq keeps permanently failed local deliveries for inspection,
// replay and scheduled purging.
package dlq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/queue"
)

// Service manages the dead letter queue.
type Service struct {
	store     Store
	publisher queue.Publisher
	logger    *slog.Logger
}

var _ delivery.DLQPusher = (*Service)(nil)

// NewService creates a new DLQ service. Replays are published to publisher.
func NewService(store Store, publisher queue.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// PushFailed creates a DLQ entry from a failed delivery. Implements delivery.DLQPusher.
func (svc *Service) PushFailed(ctx context.Context, d *delivery.Delivery, lastError string, lastStatusCode int) error {
	entry := &Entry{
		Entity:         entity.New(),
		ID:             id.NewDLQID(),
		DeliveryID:     d.ID,
		URL:            d.URL,
		Body:           d.Body,
		Headers:        d.Headers,
		CallbackURL:    d.CallbackURL,
		Error:          lastError,
		AttemptCount:   d.AttemptCount,
		LastStatusCode: lastStatusCode,
		FailedAt:       time.Now().UTC(),
	}

	return svc.store.Push(ctx, entry)
}

// List returns DLQ entries matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return svc.store.ListDLQ(ctx, opts)
}

// Get returns a DLQ entry by ID.
func (svc *Service) Get(ctx context.Context, dlqID id.ID) (*Entry, error) {
	return svc.store.GetDLQ(ctx, dlqID)
}

// Replay publishes the entry's original message again, byte for byte, and
// marks the entry replayed. It returns the new message id.
func (svc *Service) Replay(ctx context.Context, dlqID id.ID) (string, error) {
	e, err := svc.store.GetDLQ(ctx, dlqID)
	if err != nil {
		return "", err
	}
	return svc.replay(ctx, e)
}

func (svc *Service) replay(ctx context.Context, e *Entry) (string, error) {
	if svc.publisher == nil {
		return "", errors.New("dlq: no publisher for replay")
	}
	receipt, err := svc.publisher.Publish(ctx, queue.Message{
		URL:         e.URL,
		Body:        e.Body,
		Headers:     e.Headers,
		CallbackURL: e.CallbackURL,
	})
	if err != nil {
		return "", fmt.Errorf("dlq: replay %s: %w", e.ID, err)
	}
	if err := svc.store.MarkReplayed(ctx, e.ID, time.Now().UTC()); err != nil {
		return "", err
	}
	svc.logger.InfoContext(ctx, "dlq entry replayed",
		"dlq_id", e.ID, "message_id", receipt.MessageID, "url", e.URL)
	return receipt.MessageID, nil
}

// ReplayBulk replays every entry that failed within [from, to] and was not
// replayed before.
func (svc *Service) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	entries, err := svc.store.ListDLQ(ctx, ListOpts{From: &from, To: &to})
	if err != nil {
		return 0, err
	}
	var count int64
	for _, e := range entries {
		if e.ReplayedAt != nil {
			continue
		}
		if _, err := svc.replay(ctx, e); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Purge removes entries that failed before the given time.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return svc.store.Purge(ctx, before)
}

// Count returns the total number of DLQ entries.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountDLQ(ctx)
}
