package delivery

import (
	"context"

	"github.com/xraph/beacon/id"
)

// Store defines the persistence contract for the local queue.
type Store interface {
	// Enqueue creates a pending delivery.
	Enqueue(ctx context.Context, d *Delivery) error

	// Dequeue fetches pending deliveries ready for attempt (concurrent-safe).
	// Implementations must ensure no double-delivery while a claimed
	// delivery is in flight.
	Dequeue(ctx context.Context, limit int) ([]*Delivery, error)

	// UpdateDelivery modifies a delivery and releases its claim.
	UpdateDelivery(ctx context.Context, d *Delivery) error

	// GetDelivery returns a delivery by ID.
	GetDelivery(ctx context.Context, delID id.ID) (*Delivery, error)

	// ListDeliveries returns deliveries newest first.
	ListDeliveries(ctx context.Context, opts ListOpts) ([]*Delivery, error)

	// CountPending returns the number of deliveries awaiting attempt.
	CountPending(ctx context.Context) (int64, error)
}
