package handlers

import (
	"net/http"

	"github.com/medra-health/medirag/internal/api"
)

type ReindexHandler struct {
	trigger func()
}

// NewReindexHandler wires the HTTP trigger to the background reindex worker.
func NewReindexHandler(trigger func()) *ReindexHandler {
	return &ReindexHandler{trigger: trigger}
}

// Trigger schedules a bulk rebuild of the vector index and returns
// immediately; the rebuild runs in the background worker.
func (h *ReindexHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	h.trigger()
	api.Success(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}
