// Package payout holds partner payouts and their commissions, and the
// callback handler that finalizes externally paid payouts once the
// confirmation webhook reached the partner's system.
package payout

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/beacon/internal/entity"
)

var (
	// ErrNotFound is returned when a payout does not exist.
	ErrNotFound = errors.New("payout: not found")

	// ErrNotProcessing is returned by FinalizePayout when the payout left
	// the processing state or was already stamped with an event.
	ErrNotProcessing = errors.New("payout: not processing")
)

// Status is the lifecycle state of a payout.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Mode tells who moves the money.
type Mode string

const (
	// ModeInternal payouts are transferred by the platform.
	ModeInternal Mode = "internal"

	// ModeExternal payouts are settled by the workspace's own system,
	// which acknowledges them by accepting the payout.confirmed webhook.
	ModeExternal Mode = "external"
)

// CommissionStatus is the state of a commission.
type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionProcessed CommissionStatus = "processed"
	CommissionPaid      CommissionStatus = "paid"
	CommissionRefunded  CommissionStatus = "refunded"
)

// Payout is a transfer of earned commissions to a partner.
type Payout struct {
	entity.Entity

	ID             string     `json:"id"`
	WorkspaceID    string     `json:"workspaceId"`
	PartnerID      string     `json:"partnerId"`
	InvoiceID      *string    `json:"invoiceId,omitempty"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	Status         Status     `json:"status"`
	Mode           Mode       `json:"mode"`
	WebhookEventID *string    `json:"webhookEventId,omitempty"`
	PaidAt         *time.Time `json:"paidAt,omitempty"`
	FailureReason  *string    `json:"failureReason,omitempty"`
}

// Commission is one partner earning, settled by a payout.
type Commission struct {
	entity.Entity

	ID        string           `json:"id"`
	PayoutID  *string          `json:"payoutId,omitempty"`
	PartnerID string           `json:"partnerId"`
	Amount    int64            `json:"amount"`
	Earnings  int64            `json:"earnings"`
	Currency  string           `json:"currency"`
	Status    CommissionStatus `json:"status"`
}

// Finalization describes the terminal transition of a payout.
type Finalization struct {
	PayoutID string
	EventID  string

	// Status is StatusCompleted or StatusFailed.
	Status Status

	// PaidAt is set for completed payouts.
	PaidAt *time.Time

	// FailureReason is set for failed payouts.
	FailureReason *string
}

// Store defines the persistence contract for payouts.
type Store interface {
	// GetPayout returns a payout by ID.
	GetPayout(ctx context.Context, payoutID string) (*Payout, error)

	// ListCommissions returns the commissions settled by a payout.
	ListCommissions(ctx context.Context, payoutID string) ([]*Commission, error)

	// FinalizePayout applies f atomically. The payout must still be
	// processing and carry no webhook event id, otherwise ErrNotProcessing
	// is returned and nothing changes. A completed payout marks every
	// commission referencing it as paid.
	FinalizePayout(ctx context.Context, f Finalization) error
}
