package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/IgorGrieder/shortlink-analytics/pkg/httputils"
)

// CORS returns a middleware for browser clients of the shortening API. An
// empty origin list allows any origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-User-Id",
			httputils.CorrelationIDHeader,
			"traceparent",
			"tracestate",
			"baggage",
		},
		ExposedHeaders: []string{"Location", httputils.CorrelationIDHeader},
		MaxAge:         600,
	}
	if len(allowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	c := cors.New(opts)
	return c.Handler
}
