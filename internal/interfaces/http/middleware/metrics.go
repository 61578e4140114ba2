package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tourism/backoffice/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrorCodeKey is the gin context key where handlers leave the API error code they replied with
const ErrorCodeKey = "api_error_code"

var attrErrorCode = attribute.Key("error.code")

// SetErrorCode records the API error code of the response for the metrics middleware
func SetErrorCode(c *gin.Context, code string) {
	c.Set(ErrorCodeKey, code)
}

type httpMetrics struct {
	requests *telemetry.Counter
	errors   *telemetry.Counter
	latency  *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	m := &httpMetrics{}
	var err error
	if m.requests, err = telemetry.NewCounter(meter,
		"http_server_request_total", "HTTP requests by route and status", "{request}"); err != nil {
		return nil, err
	}
	if m.errors, err = telemetry.NewCounter(meter,
		"http_server_error_total", "Error responses by API error code", "{response}"); err != nil {
		return nil, err
	}
	if m.latency, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.inFlight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("HTTP requests being served"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *httpMetrics) observe(c *gin.Context, elapsed time.Duration) {
	ctx := c.Request.Context()
	// the route pattern keeps sale and client ids out of the label set
	route := c.FullPath()
	if route == "" {
		route = "unknown"
	}
	status := c.Writer.Status()
	attrs := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(c.Request.Method),
		telemetry.AttrHTTPRoute.String(route),
	}

	m.requests.Inc(ctx, append(attrs, telemetry.AttrHTTPStatusCode.Int(status))...)
	m.latency.RecordDuration(ctx, elapsed, append(attrs, attribute.String("http.status_class", StatusGroup(status)))...)
	if code := c.GetString(ErrorCodeKey); code != "" {
		m.errors.Inc(ctx, append(attrs, attrErrorCode.String(code))...)
	}
}

// HTTPMetrics records request count, latency, in-flight requests and error codes per route.
// A nil meter or a failed instrument setup yields a pass-through middleware.
func HTTPMetrics(meter metric.Meter) gin.HandlerFunc {
	if meter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	m, err := newHTTPMetrics(meter)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		m.inFlight.Add(c.Request.Context(), 1)
		defer m.inFlight.Add(c.Request.Context(), -1)

		c.Next()
		m.observe(c, time.Since(start))
	}
}

// StatusGroup buckets a status code into its class
func StatusGroup(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "other"
	}
}
