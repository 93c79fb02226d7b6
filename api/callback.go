package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/xraph/beacon/callback"
	"github.com/xraph/beacon/dispatch"
	"github.com/xraph/beacon/signature"
)

// correlationParams must match between the callback request and the URL the
// token was issued for.
var correlationParams = []string{dispatch.ParamWebhookID, dispatch.ParamEventID, dispatch.ParamEvent}

// handleCallback receives a delivery outcome from the queue. A 2xx answer
// acknowledges it; anything else makes the queue retry the callback.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if v := h.beacon.CallbackVerifier(); v != nil {
		if err := v.VerifyQuery(r.Header.Get(signature.TokenHeader), r.URL.Query(), correlationParams, body); err != nil {
			h.logger.WarnContext(r.Context(), "callback rejected", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	err = h.beacon.HandleCallback(r.Context(), r.URL.Query(), body)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case errors.Is(err, callback.ErrMissingParams), errors.Is(err, callback.ErrInvalidReport):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "callback processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "callback processing failed")
	}
}
