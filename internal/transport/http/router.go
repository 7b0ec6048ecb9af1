package http

import (
	"net/http"
	"strings"

	"github.com/IgorGrieder/shortlink-analytics/internal/infrastructure/telemetry"
	"github.com/IgorGrieder/shortlink-analytics/internal/transport/http/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var spanNames = map[string]string{
	"GET /{$}":                    "root",
	"GET /health":                 "health",
	"GET /metrics":                "metrics",
	"POST /api/shorten":           "links.create",
	"GET /api/stats/{code}":       "links.stats",
	"GET /api/stats/{code}/daily": "links.stats_daily",
	"GET /{code}":                 "links.redirect",
}

type RouterOptions struct {
	ServiceName   string
	EnableCORS    bool
	EnableLogging bool
	EnableMetrics bool

	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string

	LinksHandlerOptions LinksHandlerOptions
}

func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		ServiceName:   "shortlink-analytics",
		EnableCORS:    true,
		EnableLogging: true,
		EnableMetrics: true,
	}
}

func NewRouter(linkService LinkService, health *HealthHandler, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	if health == nil {
		health = NewHealthHandler(nil)
	}
	linksHandler := NewLinksHandler(linkService, opts.LinksHandlerOptions)

	mux.HandleFunc("GET /{$}", health.Welcome)
	mux.HandleFunc("GET /health", health.Health)
	mux.Handle("GET /metrics", health.Metrics())

	mux.HandleFunc("POST /api/shorten", linksHandler.Create)
	mux.HandleFunc("GET /api/stats/{code}", linksHandler.Stats)
	mux.HandleFunc("GET /api/stats/{code}/daily", linksHandler.DailyStats)
	mux.HandleFunc("GET /{code}", linksHandler.Redirect)

	var innerHandler http.Handler = mux
	if opts.EnableCORS {
		innerHandler = middleware.CORS(opts.AllowedOrigins)(innerHandler)
	}
	if opts.EnableLogging {
		innerHandler = middleware.LoggingMiddleware(innerHandler)
	}
	if opts.EnableMetrics {
		innerHandler = middleware.MetricsMiddleware(innerHandler)
	}

	otelOptions := []otelhttp.Option{
		// The span starts before the mux routes the request, so resolve the
		// pattern here instead of reading r.Pattern.
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			_, pattern := mux.Handler(r)
			if name, ok := spanNames[pattern]; ok {
				return name
			}
			if pattern != "" {
				return pattern
			}
			path := strings.TrimSpace(r.URL.Path)
			if path == "" {
				path = "/"
			}
			return path
		}),
	}

	if telemetry.TracerProvider != nil {
		otelOptions = append(otelOptions, otelhttp.WithTracerProvider(telemetry.TracerProvider))
	}

	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "shortlink-analytics"
	}
	return otelhttp.NewHandler(innerHandler, serviceName, otelOptions...)
}
