package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/internal/entity"
	"github.com/xraph/beacon/receiver"
	"github.com/xraph/beacon/signature"
	"github.com/xraph/beacon/trigger"
)

// DefaultFailureThreshold is the number of consecutive final delivery
// failures after which a webhook is disabled.
const DefaultFailureThreshold = 20

// Service provides webhook management operations.
type Service struct {
	store     Store
	threshold int
	logger    *slog.Logger
}

// NewService creates a new webhook service. A threshold of zero or less
// uses DefaultFailureThreshold.
func NewService(store Store, threshold int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &Service{
		store:     store,
		threshold: threshold,
		logger:    logger,
	}
}

// Create registers a new webhook with a freshly generated secret and
// turns on webhook delivery for its workspace.
func (svc *Service) Create(ctx context.Context, in Input) (*Webhook, error) {
	if in.WorkspaceID == "" {
		return nil, &ValidationError{Field: "workspaceId", Message: "required"}
	}
	if err := validateURL(in.URL); err != nil {
		return nil, err
	}
	triggers, err := parseTriggers(in.Triggers)
	if err != nil {
		return nil, err
	}

	w := &Webhook{
		Entity:         entity.New(),
		ID:             id.NewWebhookID(),
		WorkspaceID:    in.WorkspaceID,
		Name:           in.Name,
		URL:            in.URL,
		Secret:         signature.GenerateSecret(),
		Triggers:       triggers,
		Receiver:       receiver.Classify(in.URL),
		InstallationID: in.InstallationID,
	}

	if err := svc.store.CreateWebhook(ctx, w); err != nil {
		return nil, err
	}
	if err := svc.syncWorkspace(ctx, w.WorkspaceID); err != nil {
		return nil, err
	}
	return w, nil
}

// Get returns a webhook by ID.
func (svc *Service) Get(ctx context.Context, whID id.ID) (*Webhook, error) {
	return svc.store.GetWebhook(ctx, whID)
}

// List returns the webhooks of a workspace.
func (svc *Service) List(ctx context.Context, workspaceID string, opts ListOpts) ([]*Webhook, error) {
	return svc.store.ListWebhooks(ctx, workspaceID, opts)
}

// Update modifies name, URL and triggers of a webhook. A changed URL is
// classified again.
func (svc *Service) Update(ctx context.Context, whID id.ID, in Input) (*Webhook, error) {
	w, err := svc.store.GetWebhook(ctx, whID)
	if err != nil {
		return nil, err
	}

	if in.URL != "" && in.URL != w.URL {
		if err := validateURL(in.URL); err != nil {
			return nil, err
		}
		w.URL = in.URL
		w.Receiver = receiver.Classify(in.URL)
	}
	if in.Name != "" {
		w.Name = in.Name
	}
	if len(in.Triggers) > 0 {
		triggers, err := parseTriggers(in.Triggers)
		if err != nil {
			return nil, err
		}
		w.Triggers = triggers
	}
	w.Touch()

	if err := svc.store.UpdateWebhook(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Delete removes a webhook.
func (svc *Service) Delete(ctx context.Context, whID id.ID) error {
	w, err := svc.store.GetWebhook(ctx, whID)
	if err != nil {
		return err
	}
	if err := svc.store.DeleteWebhook(ctx, whID); err != nil {
		return err
	}
	return svc.syncWorkspace(ctx, w.WorkspaceID)
}

// Enable clears the disabled timestamp and the failure counter.
func (svc *Service) Enable(ctx context.Context, whID id.ID) error {
	w, err := svc.store.GetWebhook(ctx, whID)
	if err != nil {
		return err
	}
	if err := svc.store.SetDisabled(ctx, whID, nil); err != nil {
		return err
	}
	if err := svc.store.ResetFailures(ctx, whID); err != nil {
		return err
	}
	return svc.syncWorkspace(ctx, w.WorkspaceID)
}

// Disable excludes a webhook from resolution.
func (svc *Service) Disable(ctx context.Context, whID id.ID) error {
	w, err := svc.store.GetWebhook(ctx, whID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := svc.store.SetDisabled(ctx, whID, &now); err != nil {
		return err
	}
	return svc.syncWorkspace(ctx, w.WorkspaceID)
}

// RotateSecret replaces the signing secret of a webhook on request.
func (svc *Service) RotateSecret(ctx context.Context, whID id.ID) (string, error) {
	w, err := svc.store.GetWebhook(ctx, whID)
	if err != nil {
		return "", err
	}
	w.Secret = signature.GenerateSecret()
	w.Touch()
	if err := svc.store.UpdateWebhook(ctx, w); err != nil {
		return "", err
	}
	return w.Secret, nil
}

// TrackSuccess resets the failure counter after a successful delivery.
func (svc *Service) TrackSuccess(ctx context.Context, whID id.ID) error {
	return svc.store.ResetFailures(ctx, whID)
}

// TrackFailure records a final delivery failure. The webhook is disabled
// when the receiver answered 410 Gone or the consecutive failure count
// reaches the threshold. It reports whether the webhook was disabled.
func (svc *Service) TrackFailure(ctx context.Context, whID id.ID, httpStatus int) (bool, error) {
	now := time.Now().UTC()
	count, err := svc.store.RecordFailure(ctx, whID, now)
	if err != nil {
		return false, err
	}
	if httpStatus != http.StatusGone && count < svc.threshold {
		return false, nil
	}

	w, err := svc.store.GetWebhook(ctx, whID)
	if err != nil {
		return false, err
	}
	if !w.Enabled() {
		return false, nil
	}
	if err := svc.store.SetDisabled(ctx, whID, &now); err != nil {
		return false, err
	}

	svc.logger.WarnContext(ctx, "webhook disabled after delivery failures",
		"webhook_id", whID,
		"workspace_id", w.WorkspaceID,
		"consecutive_failures", count,
		"http_status", httpStatus,
	)
	return true, svc.syncWorkspace(ctx, w.WorkspaceID)
}

// SetWorkspace creates or replaces the workspace flag record.
func (svc *Service) SetWorkspace(ctx context.Context, ws *Workspace) error {
	if ws.ID == "" {
		return &ValidationError{Field: "id", Message: "required"}
	}
	return svc.store.SaveWorkspace(ctx, ws)
}

// syncWorkspace turns webhook delivery on for a workspace while it has at
// least one enabled webhook and off otherwise.
func (svc *Service) syncWorkspace(ctx context.Context, workspaceID string) error {
	enabled := true
	hooks, err := svc.store.ListWebhooks(ctx, workspaceID, ListOpts{Enabled: &enabled, Limit: 1})
	if err != nil {
		return err
	}
	want := len(hooks) > 0

	ws, err := svc.store.GetWorkspace(ctx, workspaceID)
	switch {
	case errors.Is(err, ErrWorkspaceNotFound):
		ws = &Workspace{ID: workspaceID}
	case err != nil:
		return err
	case ws.WebhookEnabled == want:
		return nil
	}
	ws.WebhookEnabled = want
	return svc.store.SaveWorkspace(ctx, ws)
}

func validateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "url", Message: "invalid URL"}
	}
	return nil
}

func parseTriggers(values []string) (trigger.Set, error) {
	if len(values) == 0 {
		return nil, &ValidationError{Field: "triggers", Message: "at least one trigger required"}
	}
	set, err := trigger.ParseSet(values)
	if err != nil {
		return nil, &ValidationError{Field: "triggers", Message: err.Error()}
	}
	return set, nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "webhook validation: " + e.Field + ": " + e.Message
}
