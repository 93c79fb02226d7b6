package api

import (
	"net/http"

	"github.com/xraph/beacon/catalog"
	"github.com/xraph/beacon/trigger"
)

func (h *Handler) listTriggers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.beacon.Catalog().Entries())
}

func (h *Handler) getTriggerSchema(w http.ResponseWriter, r *http.Request) {
	t, ok := pathTrigger(w, r)
	if !ok {
		return
	}

	schema, err := h.beacon.Catalog().Schema(t)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, schema)
}

func (h *Handler) getTriggerSample(w http.ResponseWriter, r *http.Request) {
	t, ok := pathTrigger(w, r)
	if !ok {
		return
	}

	sample, err := catalog.Sample(t)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sample)
}

func pathTrigger(w http.ResponseWriter, r *http.Request) (trigger.Trigger, bool) {
	t, err := trigger.Parse(r.PathValue("trigger"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown trigger")
		return "", false
	}
	return t, true
}
