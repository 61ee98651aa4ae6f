// Package httpapi exposes the REST surface over the application services.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	app "github.com/nodevault/custody-service/internal/app"
	"github.com/nodevault/custody-service/internal/app/metrics"
	"github.com/nodevault/custody-service/internal/apperr"
	"github.com/nodevault/custody-service/internal/httputil"
	"github.com/nodevault/custody-service/internal/middleware"
	"github.com/nodevault/custody-service/pkg/logger"
)

// Config carries the transport-level settings.
type Config struct {
	JWTSecret         string
	AllowOrigins      []string
	RequestsPerSecond int
	Burst             int
}

// handler bundles the HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns the router exposing the REST API. A nil metrics
// disables the scrape endpoint and request collectors.
func NewHandler(application *app.Application, m *metrics.Metrics, cfg Config, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := mux.NewRouter()
	r.Use(middleware.Logging(log))
	if m != nil {
		r.Use(middleware.Metrics(m))
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}
	if cfg.RequestsPerSecond > 0 {
		limiter := middleware.NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst, log)
		r.Use(limiter.Handler)
	}

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	public := api.PathPrefix("/auth").Subrouter()
	public.HandleFunc("/register", h.register).Methods(http.MethodPost)
	public.HandleFunc("/login", h.login).Methods(http.MethodPost)
	public.HandleFunc("/verify-email", h.verifyEmail).Methods(http.MethodPost)
	public.HandleFunc("/forgot-password", h.forgotPassword).Methods(http.MethodPost)
	public.HandleFunc("/reset-password", h.resetPassword).Methods(http.MethodPost)

	authMW := middleware.NewAuthMiddleware(application.Stores.Users, cfg.JWTSecret, log)
	protected := api.NewRoute().Subrouter()
	protected.Use(authMW.Handler)

	h.registerNodeRoutes(protected)
	newPowerHandler(application).register(protected)
	newUptimeHandler(application).register(protected)
	newRateHandler(application).register(protected)
	h.registerCryptoRoutes(protected)
	h.registerAddressRoutes(protected)
	h.registerInflowRoutes(protected)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathID extracts the numeric {id} route variable.
func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidArgument("invalid id")
	}
	return id, nil
}

// queryInt parses an optional integer query parameter. The bool reports
// whether the parameter was present at all.
func queryInt(r *http.Request, name string) (int, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, apperr.InvalidArgument(name + " must be an integer")
	}
	return n, true, nil
}

// queryID parses an optional positive id query parameter. Absent values
// return zero.
func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidArgument(name + " must be a positive integer")
	}
	return id, nil
}
