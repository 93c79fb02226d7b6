package beacon

import (
	"errors"

	"github.com/xraph/beacon/callback"
	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/dispatch"
	"github.com/xraph/beacon/dlq"
	"github.com/xraph/beacon/envelope"
	"github.com/xraph/beacon/payout"
	"github.com/xraph/beacon/signature"
	"github.com/xraph/beacon/store"
	"github.com/xraph/beacon/webhook"
)

// Sentinel errors returned by Beacon operations.
var (
	// ErrNoStore is returned when a Beacon is created without a store.
	ErrNoStore = errors.New("beacon: store is required")

	// ErrNoPublisher is returned when a Beacon has neither a publisher nor
	// a local queue store.
	ErrNoPublisher = errors.New("beacon: publisher or queue store is required")

	// ErrLocalQueueDisabled is returned by dead letter operations when an
	// external queue is used.
	ErrLocalQueueDisabled = errors.New("beacon: local queue is not enabled")
)

// Errors of the subsystems, re-exported for errors.Is checks.
var (
	ErrNoCallbackURL        = dispatch.ErrNoCallbackURL
	ErrWebhookNotFound      = webhook.ErrNotFound
	ErrWorkspaceNotFound    = webhook.ErrWorkspaceNotFound
	ErrPayoutNotFound       = payout.ErrNotFound
	ErrPayoutNotProcessing  = payout.ErrNotProcessing
	ErrDeliveryNotFound     = delivery.ErrNotFound
	ErrDLQNotFound          = dlq.ErrNotFound
	ErrInvalidPayload       = envelope.ErrInvalidPayload
	ErrMissingParams        = callback.ErrMissingParams
	ErrInvalidCallbackToken = signature.ErrInvalidToken
	ErrEmptySecret          = signature.ErrEmptySecret
	ErrStoreClosed          = store.ErrStoreClosed
)
