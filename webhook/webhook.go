// Package webhook holds subscriber records and the resolver that selects
// which of them receive a given trigger.
package webhook

import (
	"errors"
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/receiver"
	"github.com/xraph/beacon/trigger"
)

var (
	// ErrNotFound is returned when a webhook cannot be found.
	ErrNotFound = errors.New("webhook: not found")

	// ErrWorkspaceNotFound is returned when a workspace cannot be found.
	ErrWorkspaceNotFound = errors.New("webhook: workspace not found")
)

// Webhook is a delivery target registered by a workspace.
type Webhook struct {
	entity.Entity

	// ID is the unique TypeID for this webhook.
	ID id.ID `json:"id"`

	// WorkspaceID identifies the owning workspace.
	WorkspaceID string `json:"workspaceId"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// URL is the delivery URL.
	URL string `json:"url"`

	// Secret is the HMAC signing secret. Never serialized.
	Secret string `json:"-"`

	// Triggers are the subscribed trigger identifiers.
	Triggers trigger.Set `json:"triggers"`

	// Receiver is the receiver kind derived from URL when the webhook was
	// created or its URL last changed.
	Receiver receiver.Kind `json:"receiver"`

	// DisabledAt is set while the webhook is excluded from resolution.
	DisabledAt *time.Time `json:"disabledAt"`

	// InstallationID is set when a managed integration owns the webhook.
	InstallationID *string `json:"installationId,omitempty"`

	// ConsecutiveFailures counts final delivery failures since the last success.
	ConsecutiveFailures int `json:"consecutiveFailures"`

	// LastFailedAt is the time of the most recent final delivery failure.
	LastFailedAt *time.Time `json:"lastFailedAt,omitempty"`
}

// Enabled reports whether the webhook takes part in resolution.
func (w *Webhook) Enabled() bool { return w.DisabledAt == nil }

// Managed reports whether an integration installation owns the webhook.
func (w *Webhook) Managed() bool { return w.InstallationID != nil }

// Subscribed reports whether the webhook is enabled and listens to t.
func (w *Webhook) Subscribed(t trigger.Trigger) bool {
	return w.Enabled() && w.Triggers.Contains(t)
}

// Kind returns the stored receiver kind, classifying the URL for records
// persisted before the kind was recorded.
func (w *Webhook) Kind() receiver.Kind {
	if w.Receiver.Valid() {
		return w.Receiver
	}
	return receiver.Classify(w.URL)
}

// Workspace is the slice of workspace state the pipeline consults.
type Workspace struct {
	ID string `json:"id"`

	// WebhookEnabled is false when the workspace has no enabled webhooks
	// or its plan excludes webhooks.
	WebhookEnabled bool `json:"webhookEnabled"`
}

// Input is the creation/update payload for webhooks.
type Input struct {
	// WorkspaceID identifies the owning workspace. Required on create.
	WorkspaceID string `json:"workspaceId"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// URL is the delivery URL.
	URL string `json:"url"`

	// Triggers are trigger identifiers to subscribe to.
	Triggers []string `json:"triggers"`

	// InstallationID links the webhook to a managed integration.
	InstallationID *string `json:"installationId,omitempty"`
}

// ListOpts configures filtering and pagination for webhook listing.
type ListOpts struct {
	Offset  int
	Limit   int
	Enabled *bool
}
