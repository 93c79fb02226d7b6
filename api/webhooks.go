package api

import (
	"errors"
	"net/http"

	"github.com/xraph/beacon/eventlog"
	"github.com/xraph/beacon/id"
	"github.com/xraph/beacon/queue"
	"github.com/xraph/beacon/trigger"
	"github.com/xraph/beacon/webhook"
)

// createdWebhook exposes the secret once, on creation and rotation.
type createdWebhook struct {
	*webhook.Webhook
	Secret string `json:"secret"`
}

type testEventRequest struct {
	Trigger string `json:"trigger"`
}

type workspaceRequest struct {
	WebhookEnabled bool `json:"webhookEnabled"`
}

func (h *Handler) createWebhook(w http.ResponseWriter, r *http.Request) {
	var in webhook.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wh, err := h.beacon.Webhooks().Create(r.Context(), in)
	if err != nil {
		writeWebhookError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createdWebhook{Webhook: wh, Secret: wh.Secret})
}

func (h *Handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	workspaceID := queryParam(r, "workspaceId")
	if workspaceID == "" {
		writeError(w, http.StatusBadRequest, "workspaceId query parameter is required")
		return
	}

	hooks, err := h.beacon.Webhooks().List(r.Context(), workspaceID, webhook.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, hooks)
}

func (h *Handler) getWebhook(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	wh, err := h.beacon.Webhooks().Get(r.Context(), whID)
	if err != nil {
		writeWebhookError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wh)
}

func (h *Handler) updateWebhook(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	var in webhook.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wh, err := h.beacon.Webhooks().Update(r.Context(), whID, in)
	if err != nil {
		writeWebhookError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wh)
}

func (h *Handler) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	if err := h.beacon.Webhooks().Delete(r.Context(), whID); err != nil {
		writeWebhookError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableWebhook(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	if err := h.beacon.Webhooks().Enable(r.Context(), whID); err != nil {
		writeWebhookError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) disableWebhook(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	if err := h.beacon.Webhooks().Disable(r.Context(), whID); err != nil {
		writeWebhookError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rotateSecret(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	secret, err := h.beacon.Webhooks().RotateSecret(r.Context(), whID)
	if err != nil {
		writeWebhookError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"secret": secret})
}

func (h *Handler) sendTestEvent(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	var req testEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := trigger.Parse(req.Trigger)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.beacon.SendTestEvent(r.Context(), whID, t)
	if err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			writeError(w, http.StatusNotFound, "webhook not found")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"messageId": res.MessageID})
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	whID, ok := webhookID(w, r)
	if !ok {
		return
	}

	opts := eventlog.ListOpts{
		Offset:  queryInt(r, "offset", 0),
		Limit:   queryInt(r, "limit", 50),
		Outcome: queue.Outcome(queryParam(r, "outcome")),
	}
	if opts.Outcome != "" && !opts.Outcome.Valid() {
		writeError(w, http.StatusBadRequest, "invalid outcome")
		return
	}

	entries, err := h.beacon.Store().ListEventLog(r.Context(), whID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) putWorkspace(w http.ResponseWriter, r *http.Request) {
	var req workspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ws := &webhook.Workspace{ID: r.PathValue("id"), WebhookEnabled: req.WebhookEnabled}
	if err := h.beacon.Webhooks().SetWorkspace(r.Context(), ws); err != nil {
		writeWebhookError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ws)
}

func webhookID(w http.ResponseWriter, r *http.Request) (id.ID, bool) {
	whID, err := id.ParseWebhookID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook ID")
		return id.ID{}, false
	}
	return whID, true
}

func writeWebhookError(w http.ResponseWriter, err error) {
	var verr *webhook.ValidationError
	switch {
	case errors.Is(err, webhook.ErrNotFound):
		writeError(w, http.StatusNotFound, "webhook not found")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
