package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nodevault/custody-service/internal/app/domain/custody"
	"github.com/nodevault/custody-service/internal/app/services/cryptos"
	"github.com/nodevault/custody-service/internal/httputil"
)

// cryptoPayload keeps IsReady untyped: clients send booleans, numbers or
// strings and the service normalizes them.
type cryptoPayload struct {
	Name    string      `json:"name"`
	Symbol  string      `json:"symbol"`
	IsReady interface{} `json:"isReady"`
}

func (h *handler) registerCryptoRoutes(r *mux.Router) {
	r.HandleFunc("/cryptos", h.createCrypto).Methods(http.MethodPost)
	r.HandleFunc("/cryptos", h.listCryptos).Methods(http.MethodGet)
	r.HandleFunc("/cryptos/{id}", h.getCrypto).Methods(http.MethodGet)
	r.HandleFunc("/cryptos/{id}", h.updateCrypto).Methods(http.MethodPut)
	r.HandleFunc("/cryptos/{id}", h.deleteCrypto).Methods(http.MethodDelete)
}

func (h *handler) createCrypto(w http.ResponseWriter, r *http.Request) {
	var payload cryptoPayload
	if err := httputil.DecodeJSONLenient(r.Body, &payload); err != nil {
		httputil.RespondError(w, err)
		return
	}
	isReady, err := cryptos.ParseReadyFlag(payload.IsReady)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	created, err := h.app.Cryptos.Create(r.Context(), custody.Crypto{
		Name:    payload.Name,
		Symbol:  payload.Symbol,
		IsReady: isReady,
	})
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) listCryptos(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Cryptos.List(r.Context())
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) getCrypto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	c, err := h.app.Cryptos.Get(r.Context(), id)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) updateCrypto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	var payload cryptoPayload
	if err := httputil.DecodeJSONLenient(r.Body, &payload); err != nil {
		httputil.RespondError(w, err)
		return
	}
	isReady, err := cryptos.ParseReadyFlag(payload.IsReady)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	updated, err := h.app.Cryptos.Update(r.Context(), custody.Crypto{
		ID:      id,
		Name:    payload.Name,
		Symbol:  payload.Symbol,
		IsReady: isReady,
	})
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteCrypto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	if err := h.app.Cryptos.Delete(r.Context(), id); err != nil {
		httputil.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
