package httpapi

import (
	"net/http"
	"time"

	app "github.com/nodevault/custody-service/internal/app"
	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/app/domain/node"
	"github.com/nodevault/custody-service/internal/httputil"
)

type uptimePayload struct {
	ServerNodeID       int64      `json:"serverNodeId"`
	DailyUptimeSeconds *int64     `json:"dailyUptimeSeconds"`
	EffectiveFrom      *time.Time `json:"effectiveFrom"`
	EffectiveTo        *time.Time `json:"effectiveTo"`
}

func validateUptimeSeconds(v *int64) error {
	if v == nil {
		return apperr.InvalidArgument("dailyUptimeSeconds is required")
	}
	if *v < 0 || *v > 86400 {
		return apperr.InvalidArgument("dailyUptimeSeconds must be between 0 and 86400")
	}
	return nil
}

func newUptimeHandler(application *app.Application) *entryHandler[node.UptimeEntry] {
	return &entryHandler[node.UptimeEntry]{
		svc:    application.Uptimes,
		prefix: "/server-node-uptimes",
		decodeCreate: func(r *http.Request) (node.UptimeEntry, error) {
			var payload uptimePayload
			if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
				return node.UptimeEntry{}, err
			}
			if payload.ServerNodeID <= 0 {
				return node.UptimeEntry{}, apperr.InvalidArgument("serverNodeId is required")
			}
			if err := validateUptimeSeconds(payload.DailyUptimeSeconds); err != nil {
				return node.UptimeEntry{}, err
			}
			return node.UptimeEntry{
				ServerNodeID:       payload.ServerNodeID,
				DailyUptimeSeconds: *payload.DailyUptimeSeconds,
				Period:             periodFromRequest(payload.EffectiveFrom, payload.EffectiveTo),
			}, nil
		},
		decodeUpdate: func(existing node.UptimeEntry, r *http.Request) (node.UptimeEntry, error) {
			var payload uptimePayload
			if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
				return node.UptimeEntry{}, err
			}
			if payload.ServerNodeID != 0 && payload.ServerNodeID != existing.ServerNodeID {
				return node.UptimeEntry{}, apperr.InvalidArgument("serverNodeId cannot be changed")
			}
			if err := validateUptimeSeconds(payload.DailyUptimeSeconds); err != nil {
				return node.UptimeEntry{}, err
			}
			if payload.EffectiveFrom == nil {
				return node.UptimeEntry{}, apperr.InvalidArgument("effectiveFrom is required")
			}
			existing.DailyUptimeSeconds = *payload.DailyUptimeSeconds
			existing.Period = periodFromRequest(payload.EffectiveFrom, payload.EffectiveTo)
			return existing, nil
		},
	}
}
