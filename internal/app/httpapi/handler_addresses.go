package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nodevault/custody-service/internal/app/domain/custody"
	"github.com/nodevault/custody-service/internal/httputil"
	"github.com/nodevault/custody-service/internal/middleware"
)

func (h *handler) registerAddressRoutes(r *mux.Router) {
	r.HandleFunc("/crypto-addresses", h.createAddress).Methods(http.MethodPost)
	r.HandleFunc("/crypto-addresses", h.listAddresses).Methods(http.MethodGet)
	r.HandleFunc("/crypto-addresses/{id}", h.getAddress).Methods(http.MethodGet)
	r.HandleFunc("/crypto-addresses/{id}", h.updateAddress).Methods(http.MethodPut)
	r.HandleFunc("/crypto-addresses/{id}", h.deleteAddress).Methods(http.MethodDelete)
}

func (h *handler) createAddress(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CryptoID int64  `json:"cryptoId"`
		Address  string `json:"address"`
		Label    string `json:"label"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.RespondError(w, err)
		return
	}
	created, err := h.app.Addresses.Create(r.Context(), middleware.UserID(r.Context()), custody.Address{
		CryptoID: payload.CryptoID,
		Address:  payload.Address,
		Label:    payload.Label,
	})
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) listAddresses(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Addresses.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) getAddress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	a, err := h.app.Addresses.Get(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *handler) updateAddress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	var payload struct {
		Label string `json:"label"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.RespondError(w, err)
		return
	}
	updated, err := h.app.Addresses.Update(r.Context(), middleware.UserID(r.Context()), id, payload.Label)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteAddress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	if err := h.app.Addresses.Delete(r.Context(), middleware.UserID(r.Context()), id); err != nil {
		httputil.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
