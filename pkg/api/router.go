package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/marmos91/imgloader/internal/logger"
	"github.com/marmos91/imgloader/internal/telemetry"
	"github.com/marmos91/imgloader/pkg/api/handlers"
)

// Loader is everything the HTTP surface needs from the scheduler.
type Loader interface {
	handlers.Loader
	handlers.Checker
}

// Metrics records HTTP request metrics. A nil Metrics disables collection.
type Metrics interface {
	ObserveRequest(method, route string, status int, d time.Duration)
	RecordInFlight(delta int)
}

// Deps bundles the collaborators the router wires into handlers.
type Deps struct {
	Loader    Loader
	Scraper   handlers.Scraper
	Metrics   Metrics
	StoreType string
}

// NewRouter creates the chi router with all middleware and routes.
//
// Middleware, outermost first: request ID, real IP, tracing, request
// logging, metrics, panic recovery.
//
// Routes:
//   - GET    /health              liveness
//   - GET    /health/ready        readiness
//   - GET    /api/v1/images       load an image (?url=&priority=&raw=)
//   - GET    /api/v1/cache        memory tier lookup (?url=)
//   - DELETE /api/v1/cache/memory clear the memory tier
//   - POST   /api/v1/preload      queue background retrievals
//   - POST   /api/v1/cancel       drop queued retrievals
//   - POST   /api/v1/scrape       list (and optionally preload) page images
//   - GET    /api/v1/stats        scheduler and cache counters
//   - GET    <metrics path>       Prometheus exposition, when configured
func NewRouter(cfg Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(tracing)
	r.Use(requestLogger)
	if deps.Metrics != nil {
		r.Use(instrument(deps.Metrics))
	}
	r.Use(middleware.Recoverer)

	health := handlers.NewHealthHandler(deps.Loader, deps.StoreType)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", health.Liveness)
		r.Get("/ready", health.Readiness)
	})

	if deps.Loader != nil {
		images := handlers.NewImageHandler(deps.Loader, deps.Scraper, cfg.MaxBatchSize).
			WithScrapePreload(cfg.PreloadOnScrape)
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/images", images.Get)
			r.Get("/cache", images.Cached)
			r.Delete("/cache/memory", images.ClearMemory)
			r.Post("/preload", images.Preload)
			r.Post("/cancel", images.Cancel)
			r.Post("/scrape", images.Scrape)
			r.Get("/stats", images.Stats)
		})
	}

	if cfg.MetricsHandler != nil && cfg.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.MetricsHandler)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

func tracing(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "http.request",
		otelhttp.WithTracerProvider(telemetry.TracerProvider()),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// requestLogger attaches a LogContext to the request and logs completion.
// Health probes are logged at DEBUG, everything else at INFO.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		lc := logger.NewLogContext(r.RemoteAddr).
			WithRequestID(requestID).
			WithTrace(telemetry.TraceID(r.Context()), telemetry.SpanID(r.Context()))
		r = r.WithContext(logger.WithContext(r.Context(), lc))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		args := []any{
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.Status(ww.Status()),
			logger.Bytes(ww.BytesWritten()),
			logger.Elapsed(start),
		}
		if isProbe(r.URL.Path) {
			logger.DebugCtx(r.Context(), "API request completed", args...)
			return
		}
		logger.InfoCtx(r.Context(), "API request completed", args...)
	})
}

// instrument records request counts and latency by route pattern so that
// query strings and URL parameters do not explode label cardinality.
func instrument(m Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.RecordInFlight(1)
			defer m.RecordInFlight(-1)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(r.Method, route, status, time.Since(start))
		})
	}
}

func isProbe(path string) bool {
	return path == "/health" || path == "/health/" || path == "/health/ready"
}
