package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/xraph/beacon/dlq"
	"github.com/xraph/beacon/id"
)

type replayBulkRequest struct {
	From string `json:"from"` // RFC3339
	To   string `json:"to"`   // RFC3339
}

// dlqService returns the DLQ service or answers 404 when an external queue
// is in use.
func (h *Handler) dlqService(w http.ResponseWriter) (*dlq.Service, bool) {
	svc := h.beacon.DLQ()
	if svc == nil {
		writeError(w, http.StatusNotFound, "local queue is not enabled")
		return nil, false
	}
	return svc, true
}

func (h *Handler) listDLQ(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.dlqService(w)
	if !ok {
		return
	}

	opts := dlq.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
		URL:    queryParam(r, "url"),
	}

	entries, err := svc.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) replayDLQ(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.dlqService(w)
	if !ok {
		return
	}

	dlqID, err := id.ParseDLQID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid DLQ ID")
		return
	}

	messageID, replayErr := svc.Replay(r.Context(), dlqID)
	if replayErr != nil {
		if errors.Is(replayErr, dlq.ErrNotFound) {
			writeError(w, http.StatusNotFound, "DLQ entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, replayErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"messageId": messageID})
}

func (h *Handler) replayBulkDLQ(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.dlqService(w)
	if !ok {
		return
	}

	var req replayBulkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	from, err := time.Parse(time.RFC3339, req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'from' time format (use RFC3339)")
		return
	}
	to, err := time.Parse(time.RFC3339, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'to' time format (use RFC3339)")
		return
	}

	count, replayErr := svc.ReplayBulk(r.Context(), from, to)
	if replayErr != nil {
		writeError(w, http.StatusInternalServerError, replayErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"replayed": count})
}
