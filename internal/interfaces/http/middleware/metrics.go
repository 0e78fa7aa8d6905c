package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/herbtrace/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// attrStatusClass keeps the duration histogram at one series per route and class
var attrStatusClass = attribute.Key("http.status_class")

type HTTPMetricsConfig struct {
	MeterProvider *telemetry.MeterProvider
	Logger        *zap.Logger
	Enabled       bool
}

type httpMetrics struct {
	requests *telemetry.Counter
	latency  *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	var (
		m   httpMetrics
		err error
	)
	if m.requests, err = telemetry.NewCounter(meter,
		"http_server_request_total", "HTTP requests by route and status", "{request}"); err != nil {
		return nil, err
	}
	if m.latency, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency by route and status class",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.inFlight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *httpMetrics) observe(c *gin.Context, elapsed time.Duration) {
	status := c.Writer.Status()
	attrs := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(c.Request.Method),
		telemetry.AttrHTTPRoute.String(routePattern(c)),
		attrStatusClass.String(StatusClass(status)),
	}
	ctx := c.Request.Context()
	m.requests.Inc(ctx, append(attrs, telemetry.AttrHTTPStatusCode.Int(status))...)
	m.latency.RecordDuration(ctx, elapsed, attrs...)
}

// HTTPMetrics records request counts, latency and in-flight requests. It is a
// pass-through when metrics are off.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"), cfg.Logger)
}

func HTTPMetricsWithMeter(meter metric.Meter, logger *zap.Logger) gin.HandlerFunc {
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		if logger != nil {
			logger.Warn("HTTP metrics disabled", zap.Error(err))
		}
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		metrics.inFlight.Add(ctx, 1)
		defer metrics.inFlight.Add(ctx, -1)

		c.Next()
		metrics.observe(c, time.Since(start))
	}
}

// routePattern returns the matched route, never the raw path, to keep label cardinality bounded.
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

func StatusClass(statusCode int) string {
	if statusCode < http.StatusOK || statusCode > 599 {
		return "other"
	}
	return string(rune('0'+statusCode/100)) + "xx"
}

func passThrough(c *gin.Context) {
	c.Next()
}
