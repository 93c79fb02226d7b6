package api

import (
	"errors"
	"net/http"

	"github.com/xraph/beacon"
)

type statsResponse struct {
	PendingDeliveries int64 `json:"pendingDeliveries"`
	DLQSize           int64 `json:"dlqSize"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	pending, dead, err := h.beacon.Stats(r.Context())
	if err != nil {
		if errors.Is(err, beacon.ErrLocalQueueDisabled) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		PendingDeliveries: pending,
		DLQSize:           dead,
	})
}
