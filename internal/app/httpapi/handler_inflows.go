package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/custody"
	"github.com/nodevault/custody-service/internal/httputil"
	"github.com/nodevault/custody-service/internal/middleware"
)

type inflowPayload struct {
	AddressID      int64            `json:"addressId"`
	TxHash         string           `json:"txHash"`
	Amount         *decimal.Decimal `json:"amount"`
	DetectedAt     *time.Time       `json:"detectedAt"`
	FiatValue      *decimal.Decimal `json:"fiatValue"`
	FiatCurrency   string           `json:"fiatCurrency"`
	PriceSource    string           `json:"priceSource"`
	PriceTimestamp *time.Time       `json:"priceTimestamp"`
}

func (h *handler) registerInflowRoutes(r *mux.Router) {
	r.HandleFunc("/crypto-inflows", h.createInflow).Methods(http.MethodPost)
	r.HandleFunc("/crypto-inflows", h.listInflows).Methods(http.MethodGet)
	r.HandleFunc("/crypto-inflows/{id}", h.getInflow).Methods(http.MethodGet)
	r.HandleFunc("/crypto-inflows/{id}", h.updateInflow).Methods(http.MethodPut)
	r.HandleFunc("/crypto-inflows/{id}", h.deleteInflow).Methods(http.MethodDelete)
}

func (h *handler) createInflow(w http.ResponseWriter, r *http.Request) {
	var payload inflowPayload
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.RespondError(w, err)
		return
	}
	if payload.AddressID <= 0 {
		httputil.RespondError(w, apperr.InvalidArgument("addressId is required"))
		return
	}
	if payload.Amount == nil {
		httputil.RespondError(w, apperr.InvalidArgument("amount is required"))
		return
	}
	in := custody.Inflow{
		AddressID:      payload.AddressID,
		TxHash:         payload.TxHash,
		Amount:         *payload.Amount,
		FiatValue:      payload.FiatValue,
		FiatCurrency:   payload.FiatCurrency,
		PriceSource:    payload.PriceSource,
		PriceTimestamp: payload.PriceTimestamp,
	}
	if payload.DetectedAt != nil {
		in.DetectedAt = payload.DetectedAt.UTC()
	}
	created, err := h.app.Inflows.Create(r.Context(), middleware.UserID(r.Context()), in)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) listInflows(w http.ResponseWriter, r *http.Request) {
	addressID, err := queryID(r, "addressId")
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	list, err := h.app.Inflows.List(r.Context(), middleware.UserID(r.Context()), addressID)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *handler) getInflow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	in, err := h.app.Inflows.Get(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, in)
}

func (h *handler) updateInflow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	var payload inflowPayload
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.RespondError(w, err)
		return
	}
	existing, err := h.app.Inflows.Get(r.Context(), middleware.UserID(r.Context()), id)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	if payload.Amount != nil {
		existing.Amount = *payload.Amount
	}
	if payload.DetectedAt != nil {
		existing.DetectedAt = payload.DetectedAt.UTC()
	}
	existing.FiatValue = payload.FiatValue
	existing.FiatCurrency = payload.FiatCurrency
	existing.PriceSource = payload.PriceSource
	existing.PriceTimestamp = payload.PriceTimestamp
	updated, err := h.app.Inflows.Update(r.Context(), middleware.UserID(r.Context()), existing)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteInflow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, err)
		return
	}
	if err := h.app.Inflows.Delete(r.Context(), middleware.UserID(r.Context()), id); err != nil {
		httputil.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
