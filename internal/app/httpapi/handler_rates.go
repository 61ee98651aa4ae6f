package httpapi

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	app "github.com/nodevault/custody-service/internal/app"
	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/node"
	"github.com/nodevault/custody-service/internal/httputil"
)

// ratePayload accepts costPerKwh as either a JSON number or a quoted
// decimal string.
type ratePayload struct {
	ServerNodeID  int64            `json:"serverNodeId"`
	CostPerKwh    *decimal.Decimal `json:"costPerKwh"`
	Currency      string           `json:"currency"`
	EffectiveFrom *time.Time       `json:"effectiveFrom"`
	EffectiveTo   *time.Time       `json:"effectiveTo"`
}

func validateRate(cost *decimal.Decimal, currency string) error {
	if cost == nil {
		return apperr.InvalidArgument("costPerKwh is required")
	}
	if cost.IsNegative() {
		return apperr.InvalidArgument("costPerKwh must not be negative")
	}
	if currency == "" {
		return apperr.InvalidArgument("currency is required")
	}
	return nil
}

func newRateHandler(application *app.Application) *entryHandler[node.EnergyRate] {
	return &entryHandler[node.EnergyRate]{
		svc:    application.Rates,
		prefix: "/energy-rates",
		decodeCreate: func(r *http.Request) (node.EnergyRate, error) {
			var payload ratePayload
			if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
				return node.EnergyRate{}, err
			}
			if payload.ServerNodeID <= 0 {
				return node.EnergyRate{}, apperr.InvalidArgument("serverNodeId is required")
			}
			if err := validateRate(payload.CostPerKwh, payload.Currency); err != nil {
				return node.EnergyRate{}, err
			}
			return node.EnergyRate{
				ServerNodeID: payload.ServerNodeID,
				CostPerKwh:   *payload.CostPerKwh,
				Currency:     payload.Currency,
				Period:       periodFromRequest(payload.EffectiveFrom, payload.EffectiveTo),
			}, nil
		},
		decodeUpdate: func(existing node.EnergyRate, r *http.Request) (node.EnergyRate, error) {
			var payload ratePayload
			if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
				return node.EnergyRate{}, err
			}
			if payload.ServerNodeID != 0 && payload.ServerNodeID != existing.ServerNodeID {
				return node.EnergyRate{}, apperr.InvalidArgument("serverNodeId cannot be changed")
			}
			if err := validateRate(payload.CostPerKwh, payload.Currency); err != nil {
				return node.EnergyRate{}, err
			}
			if payload.EffectiveFrom == nil {
				return node.EnergyRate{}, apperr.InvalidArgument("effectiveFrom is required")
			}
			existing.CostPerKwh = *payload.CostPerKwh
			existing.Currency = payload.Currency
			existing.Period = periodFromRequest(payload.EffectiveFrom, payload.EffectiveTo)
			return existing, nil
		},
	}
}
