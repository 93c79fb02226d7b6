package delivery

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/observability"
	"github.com/xraph/beacon/queue"
)

// Queue is the queue.Publisher backed by a local Store and drained by an
// Engine.
type Queue struct {
	store       Store
	maxAttempts int
	metrics     *observability.Metrics
}

var _ queue.Publisher = (*Queue)(nil)

// NewQueue creates a local queue. maxAttempts below one means one attempt.
func NewQueue(store Store, maxAttempts int, metrics *observability.Metrics) *Queue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Queue{store: store, maxAttempts: maxAttempts, metrics: metrics}
}

// Publish stores msg as a pending delivery due after msg.Delay.
func (q *Queue) Publish(ctx context.Context, msg queue.Message) (queue.Receipt, error) {
	d := &Delivery{
		Entity:        entity.New(),
		ID:            id.NewDeliveryID(),
		URL:           msg.URL,
		Body:          append([]byte(nil), msg.Body...),
		Headers:       maps.Clone(msg.Headers),
		CallbackURL:   msg.CallbackURL,
		State:         StatePending,
		MaxAttempts:   q.maxAttempts,
		NextAttemptAt: time.Now().UTC().Add(msg.Delay),
	}
	if err := q.store.Enqueue(ctx, d); err != nil {
		return queue.Receipt{}, fmt.Errorf("%w: %v", queue.ErrPublish, err)
	}
	q.metrics.AddPending(1)
	return queue.Receipt{MessageID: d.ID.String()}, nil
}
