// Package api assembles the HTTP surface: the aggregation search endpoint,
// health probes, and the Prometheus scrape endpoint.
package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/carlookout/server/internal/api/handlers"
	"github.com/carlookout/server/internal/api/middleware"
	"github.com/carlookout/server/internal/breaker"
	"github.com/carlookout/server/internal/config"
	"github.com/carlookout/server/internal/domain/listings"
	"github.com/carlookout/server/internal/metrics"
)

// NewRouter wires the handlers and middleware chain around an assembled
// aggregation service.
func NewRouter(cfg config.Config, service *listings.Service, brk *breaker.Breaker, version string, logger zerolog.Logger) http.Handler {
	searchHandler := handlers.NewSearchHandler(service, cfg.Environment)
	healthHandler := handlers.NewHealthHandler(brk, version)

	mux := http.NewServeMux()
	mux.Handle("/healthz", http.HandlerFunc(healthHandler.Healthz))
	mux.Handle("/readyz", http.HandlerFunc(healthHandler.Readyz))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/api/v1/search", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(searchHandler.Search),
	}))

	var handler http.Handler = mux
	handler = middleware.RateLimit(cfg.RateLimit)(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.CorrelationID(logger)(handler)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
