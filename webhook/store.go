package webhook

import (
	"context"
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/trigger"
)

// Store defines the persistence contract for webhooks and the workspace flag.
type Store interface {
	// GetWorkspace returns a workspace by ID.
	GetWorkspace(ctx context.Context, workspaceID string) (*Workspace, error)

	// SaveWorkspace creates or replaces a workspace.
	SaveWorkspace(ctx context.Context, ws *Workspace) error

	// CreateWebhook persists a new webhook.
	CreateWebhook(ctx context.Context, w *Webhook) error

	// GetWebhook returns a webhook by ID.
	GetWebhook(ctx context.Context, whID id.ID) (*Webhook, error)

	// UpdateWebhook modifies an existing webhook.
	UpdateWebhook(ctx context.Context, w *Webhook) error

	// DeleteWebhook removes a webhook.
	DeleteWebhook(ctx context.Context, whID id.ID) error

	// ListWebhooks returns the webhooks of a workspace ordered by creation time.
	ListWebhooks(ctx context.Context, workspaceID string, opts ListOpts) ([]*Webhook, error)

	// ListSubscribed returns the enabled webhooks of a workspace subscribed
	// to t, ordered by creation time. This is the hot path of every dispatch.
	ListSubscribed(ctx context.Context, workspaceID string, t trigger.Trigger) ([]*Webhook, error)

	// SetDisabled sets or clears the disabled timestamp.
	SetDisabled(ctx context.Context, whID id.ID, at *time.Time) error

	// RecordFailure increments the consecutive failure counter, stamps
	// LastFailedAt and returns the new count.
	RecordFailure(ctx context.Context, whID id.ID, at time.Time) (int, error)

	// ResetFailures clears the consecutive failure counter.
	ResetFailures(ctx context.Context, whID id.ID) error
}
