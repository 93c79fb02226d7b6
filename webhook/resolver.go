package webhook

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xraph/beacon/trigger"
)

// Resolver selects the webhooks that should receive a trigger.
type Resolver struct {
	store Store
}

// NewResolver returns a Resolver backed by store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the enabled webhooks of workspaceID subscribed to t,
// oldest first. A workspace without webhook delivery, unknown to the
// store, or without subscribers yields an empty result and no error.
func (r *Resolver) Resolve(ctx context.Context, workspaceID string, t trigger.Trigger) ([]*Webhook, error) {
	ws, err := r.store.GetWorkspace(ctx, workspaceID)
	if errors.Is(err, ErrWorkspaceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("webhook: resolve workspace %s: %w", workspaceID, err)
	}
	if !ws.WebhookEnabled {
		return nil, nil
	}

	hooks, err := r.store.ListSubscribed(ctx, workspaceID, t)
	if err != nil {
		return nil, fmt.Errorf("webhook: resolve %s: %w", t, err)
	}

	out := hooks[:0]
	for _, w := range hooks {
		if w.WorkspaceID == workspaceID && w.Subscribed(t) {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
