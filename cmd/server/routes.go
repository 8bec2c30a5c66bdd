package main

import (
	"net/http"

	"github.com/go-chi/cors"
	kitlog "github.com/go-kit/log"
	"github.com/prajwalbharadwajbm/mailproof/internal/config"
	"github.com/prajwalbharadwajbm/mailproof/internal/endpoint"
	"github.com/prajwalbharadwajbm/mailproof/internal/metrics"
	"github.com/prajwalbharadwajbm/mailproof/internal/middleware"
	"github.com/prajwalbharadwajbm/mailproof/internal/service"
	"github.com/prajwalbharadwajbm/mailproof/internal/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthProbes collects what /health reports as backends are wired.
type healthProbes struct {
	checks  map[string]transport.HealthCheck
	details map[string]transport.HealthDetail
}

// Routes builds the HTTP handler: go-kit endpoints on a mux router, wrapped in
// request id, metrics and CORS middleware.
func Routes(svc service.CampaignService, m *metrics.Metrics, probes healthProbes, maxRequestBytes int64, log kitlog.Logger) http.Handler {
	cfg := config.AppConfigInstance

	router := transport.NewHTTPHandler(endpoint.MakeCampaignEndpoints(svc), log, transport.Options{
		Service:         serviceName,
		Version:         cfg.GeneralConfig.Version,
		Checks:          probes.checks,
		Details:         probes.details,
		HealthRecorder:  m,
		MetricsHandler:  promhttp.Handler(),
		MaxRequestBytes: maxRequestBytes,
	})
	router.Use(middleware.NewRequestIDMiddleware().Middleware)
	router.Use(middleware.NewMetricsMiddleware(m).Middleware)

	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.CorsConfig.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:         300,
	})(router)
}
