package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Instrument returns a middleware that wraps the handler in otelhttp server
// instrumentation, emitting spans and HTTP metrics through the given
// telemetry providers.
func Instrument(operation string, m *app.Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		)
	}
}

// Labeler returns a middleware that attaches the matched chi route pattern to
// the otelhttp labeler, so server metrics carry an http.route attribute
// instead of collapsing every path into one series. Mount it on the chi
// router, inside Instrument.
func Labeler() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			if pattern := routePattern(r); pattern != "" {
				labeler, _ := otelhttp.LabelerFromContext(r.Context())
				labeler.Add(semconv.HTTPRoute(pattern))
			}
		})
	}
}
