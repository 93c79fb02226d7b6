// Package store defines the composite Store interface for all beacon persistence.
//
// Each subsystem defines its own store interface and the aggregate Store
// composes them all.
package store

import (
	"context"
	"errors"

	"github.com/xraph/beacon/delivery"
	"github.com/xraph/beacon/dlq"
	"github.com/xraph/beacon/eventlog"
	"github.com/xraph/beacon/payout"
	"github.com/xraph/beacon/webhook"
)

// ErrStoreClosed is returned by Ping after Close.
var ErrStoreClosed = errors.New("store: closed")

// Store is the aggregate persistence interface.
type Store interface {
	webhook.Store
	payout.Store
	eventlog.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

// QueueStore persists the local delivery queue and its dead letters.
type QueueStore interface {
	delivery.Store
	dlq.Store
}
