package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListWidgets(w http.ResponseWriter, r *http.Request) {
	ids := h.host.WidgetIDs()
	items := make([]WidgetResp, 0, len(ids))
	for _, id := range ids {
		if view, ok := h.host.View(id); ok {
			items = append(items, WidgetResp{ID: id, View: view})
		}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) GetWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, ok := h.host.View(id)
	if !ok {
		writeError(w, http.StatusNotFound, "widget not found")
		return
	}
	writeJSON(w, http.StatusOK, WidgetResp{ID: id, View: view})
}

func (h *Handler) PlaceWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view := h.widgets.Place(r.Context(), id)
	writeJSON(w, http.StatusOK, WidgetResp{ID: id, View: view})
}

func (h *Handler) RemoveWidget(w http.ResponseWriter, r *http.Request) {
	if !h.host.Remove(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "widget not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RefreshWidgets(w http.ResponseWriter, r *http.Request) {
	h.refresh.Broadcast()
	w.WriteHeader(http.StatusAccepted)
}
