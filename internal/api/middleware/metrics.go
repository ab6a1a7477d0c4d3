package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/inferguard/inferguard/internal/api/middleware"

// durationBuckets span a cached read up to an auto-remediation run that
// waits out several retry delays.
var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Metrics records OpenTelemetry HTTP server instruments.
type Metrics struct {
	duration    metric.Float64Histogram
	requests    metric.Int64Counter
	inFlight    metric.Int64UpDownCounter
	rateLimited metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	duration, err1 := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	requests, err2 := meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP server requests by route and status"),
		metric.WithUnit("{request}"),
	)
	inFlight, err3 := meter.Int64UpDownCounter("http.server.requests_in_flight",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"),
	)
	rateLimited, err4 := meter.Int64Counter("inferguard.http.rate_limited",
		metric.WithDescription("Requests rejected by a rate limit tier"),
		metric.WithUnit("{request}"),
	)
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return nil, err
	}

	return &Metrics{
		duration:    duration,
		requests:    requests,
		inFlight:    inFlight,
		rateLimited: rateLimited,
	}, nil
}

// Middleware records one observation per request.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			// The route is unresolved until next returns.
			method := metric.WithAttributes(attribute.String("http.method", r.Method))
			m.inFlight.Add(ctx, 1, method)
			defer m.inFlight.Add(ctx, -1, method)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			route := attribute.String("http.route", routePattern(r))
			attrs := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				route,
				attribute.String("http.status_code", strconv.Itoa(wrapped.statusCode)),
				attribute.Bool("error", wrapped.statusCode >= http.StatusBadRequest),
			)
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.requests.Add(ctx, 1, attrs)
			if wrapped.statusCode == http.StatusTooManyRequests {
				m.rateLimited.Add(ctx, 1, metric.WithAttributes(route))
			}
		})
	}
}
