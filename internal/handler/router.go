package handler

import (
	"net/http"

	"github.com/mattquigleycfg/con-form-dash-sub000/internal/infra/observability"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *service.AnalysisService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		// Engine metrics snapshot for dashboards. Needs only the
		// registry, so it stays up even without a data backend.
		r.Get("/metrics/engine", engineMetricsHandler(metrics, logger))

		if svc == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "analysis service unavailable: store not configured")
			}))
			return
		}

		// Cost analysis (read path)
		r.Get("/jobs/{jobId}/cost-analysis", getCostAnalysisHandler(svc, logger))
		r.Post("/jobs/{jobId}/budget/refresh", refreshJobBudgetsHandler(svc, logger))

		// Insights (read/write path with supersede-and-store side effect)
		r.Post("/insights/run", runAnalysisHandler(svc, logger))
		r.Get("/jobs/{jobId}/insights", listInsightsHandler(svc, logger))
		r.Post("/insights/{insightId}/dismiss", dismissInsightHandler(svc, logger))
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func engineMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/metrics/engine")
		defer span.End()

		writeJSON(w, http.StatusOK, metrics.GetEngineSnapshot())
	}
}
