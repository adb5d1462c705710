package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/obrastack/conciliador/internal/domain/common"
	appmiddleware "github.com/obrastack/conciliador/pkg/middleware"
	"github.com/obrastack/conciliador/pkg/observability"
)

// SetupRouter builds the HTTP handler: middleware chain, utility routes and
// the versioned API.
func SetupRouter(deps *Dependencies) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	r.Use(appmiddleware.RequestID)
	r.Use(appmiddleware.Recovery(logger))
	r.Use(appmiddleware.Logging(logger))
	r.Use(appmiddleware.Tracing)
	if deps.Config.Observability.MetricsEnabled {
		r.Use(observability.Metrics)
	}
	limiter := rate.NewLimiter(
		rate.Limit(deps.Config.Server.RateLimitPerSecond),
		deps.Config.Server.RateLimitBurst,
	)
	r.Use(appmiddleware.RateLimit(limiter))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/details", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.DB.Health(req.Context()); err != nil {
			common.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "degraded",
				"database": err.Error(),
			})
			return
		}
		common.WriteJSON(w, http.StatusOK, map[string]string{
			"status":   "ok",
			"database": "ok",
		})
	})
	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.DB.Health(req.Context()); err != nil {
			common.WriteError(w, logger, err)
			return
		}
		common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(appmiddleware.TenantContext(logger))
		deps.StatementHandler.Routes(v1)
		deps.ReconHandler.Routes(v1)
	})

	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "X-Tenant-ID", "X-User-ID", "X-Request-ID"},
		AllowCredentials: false,
	}).Handler(r)
}
