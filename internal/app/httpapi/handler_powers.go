package httpapi

import (
	"net/http"
	"time"

	app "github.com/nodevault/custody-service/internal/app"
	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/node"
	"github.com/nodevault/custody-service/internal/httputil"
)

// powerPayload is the body for both create and full-replace update. A
// missing effectiveTo leaves the period open.
type powerPayload struct {
	ServerNodeID  int64      `json:"serverNodeId"`
	Wh            *float64   `json:"Wh"`
	EffectiveFrom *time.Time `json:"effectiveFrom"`
	EffectiveTo   *time.Time `json:"effectiveTo"`
}

func newPowerHandler(application *app.Application) *entryHandler[node.PowerEntry] {
	return &entryHandler[node.PowerEntry]{
		svc:    application.Powers,
		prefix: "/server-node-powers",
		decodeCreate: func(r *http.Request) (node.PowerEntry, error) {
			var payload powerPayload
			if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
				return node.PowerEntry{}, err
			}
			if payload.ServerNodeID <= 0 {
				return node.PowerEntry{}, apperr.InvalidArgument("serverNodeId is required")
			}
			if payload.Wh == nil {
				return node.PowerEntry{}, apperr.InvalidArgument("Wh is required")
			}
			return node.PowerEntry{
				ServerNodeID: payload.ServerNodeID,
				Wh:           *payload.Wh,
				Period:       periodFromRequest(payload.EffectiveFrom, payload.EffectiveTo),
			}, nil
		},
		decodeUpdate: func(existing node.PowerEntry, r *http.Request) (node.PowerEntry, error) {
			var payload powerPayload
			if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
				return node.PowerEntry{}, err
			}
			if payload.ServerNodeID != 0 && payload.ServerNodeID != existing.ServerNodeID {
				return node.PowerEntry{}, apperr.InvalidArgument("serverNodeId cannot be changed")
			}
			if payload.Wh == nil {
				return node.PowerEntry{}, apperr.InvalidArgument("Wh is required")
			}
			if payload.EffectiveFrom == nil {
				return node.PowerEntry{}, apperr.InvalidArgument("effectiveFrom is required")
			}
			existing.Wh = *payload.Wh
			existing.Period = periodFromRequest(payload.EffectiveFrom, payload.EffectiveTo)
			return existing, nil
		},
	}
}
