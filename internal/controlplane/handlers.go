package controlplane

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// sessionsHandler serves the read-only session inventory and the
// administrative force-close endpoint.
type sessionsHandler struct {
	registry SessionRegistry
}

func newSessionsHandler(registry SessionRegistry) *sessionsHandler {
	return &sessionsHandler{registry: registry}
}

// List handles GET /sessions.
func (h *sessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ok(h.registry.ListSessions()))
}

// Close handles POST /sessions/{id}/close.
func (h *sessionsHandler) Close(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, fail("invalid session id"))
		return
	}

	if !h.registry.CloseSession(r.Context(), id) {
		writeJSON(w, http.StatusNotFound, fail("session not found"))
		return
	}

	writeJSON(w, http.StatusOK, ok(nil))
}

// accessoriesHandler serves the control-plane's own unauthenticated view of
// the accessory tree, distinct from the HAP-protocol GET /accessories
// endpoint on the accessory port.
type accessoriesHandler struct {
	provider AccessoryTreeProvider
}

func newAccessoriesHandler(provider AccessoryTreeProvider) *accessoriesHandler {
	return &accessoriesHandler{provider: provider}
}

func (h *accessoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	tree, err := h.provider.AccessoryTree()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, fail(err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(tree)
}
