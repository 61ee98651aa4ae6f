package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nodevault/custody-service/internal/app/services/nodes"
	"github.com/nodevault/custody-service/internal/httputil"
	"github.com/nodevault/custody-service/internal/middleware"
)

func (h *handler) registerNodeRoutes(r *mux.Router) {
	r.HandleFunc("/server-nodes", h.createNode).Methods(http.MethodPost)
	r.HandleFunc("/server-nodes", h.listNodes).Methods(http.MethodGet)
	r.HandleFunc("/server-nodes/deleted", h.listDeletedNodes).Methods(http.MethodGet)
	r.HandleFunc("/server-nodes/{id}", h.getNode).Methods(http.MethodGet)
	r.HandleFunc("/server-nodes/{id}", h.updateNode).Methods(http.MethodPut)
	r.HandleFunc("/server-nodes/{id}", h.deleteNode).Methods(http.MethodDelete)
	r.HandleFunc("/server-nodes/{id}/activate", h.activateNode).Methods(http.MethodPost)
}

func (h *handler) createNode(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name               string   `json:"name"`
		Wh                 *float64 `json:"Wh"`
		DailyUptimeSeconds *int64   `json:"dailyUptimeSeconds"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.RespondError(w, err)
		return
	}
	view, err := h.app.Nodes.Create(r.Context(), middleware.UserID(r.Context()), nodes.CreateParams{
		Name:               payload.Name,
		Wh:                 payload.Wh,
		DailyUptimeSeconds: payload.DailyUptimeSeconds,
	})
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, view)
}

func (h *handler) listNodes(w http.ResponseWriter, r *http.Request) {
	views, err := h.app.Nodes.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

func (h *handler) listDeletedNodes(w http.ResponseWriter, r *http.Request) {
	views, err := h.app.Nodes.ListDeleted(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

func (h *handler) getNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	view, err := h.app.Nodes.Get(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) updateNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	var payload struct {
		Name string `json:"name"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.RespondError(w, err)
		return
	}
	view, err := h.app.Nodes.Update(r.Context(), middleware.UserID(r.Context()), id, payload.Name)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) deleteNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	if err := h.app.Nodes.Delete(r.Context(), middleware.UserID(r.Context()), id); err != nil {
		httputil.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) activateNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	view, err := h.app.Nodes.Activate(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}
