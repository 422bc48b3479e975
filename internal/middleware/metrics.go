package middleware

import (
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics owns the service's Prometheus registry.  A nil *Metrics is valid
// and records nothing.
type Metrics struct {
    reg            *prometheus.Registry
    requestTotal   *prometheus.CounterVec
    requestLatency *prometheus.HistogramVec
    rateLimitHits  *prometheus.CounterVec
    cacheResults   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
    m := &Metrics{
        reg: prometheus.NewRegistry(),
        requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "donors",
            Subsystem: "api",
            Name:      "http_requests_total",
            Help:      "Count of processed HTTP requests",
        }, []string{"method", "route", "status"}),
        requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
            Namespace: "donors",
            Subsystem: "api",
            Name:      "http_request_duration_seconds",
            Help:      "Latency distribution of HTTP handlers",
            Buckets:   histogramBuckets,
        }, []string{"method", "route", "status"}),
        rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "donors",
            Subsystem: "api",
            Name:      "rate_limit_hits_total",
            Help:      "Number of rate-limited responses",
        }, []string{"route"}),
        cacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "donors",
            Subsystem: "api",
            Name:      "response_cache_total",
            Help:      "Response cache lookups by group and result",
        }, []string{"group", "result"}),
    }
    m.reg.MustRegister(
        m.requestTotal, m.requestLatency, m.rateLimitHits, m.cacheResults,
        collectors.NewGoCollector(),
        collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
    )
    return m
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
    return echo.WrapHandler(promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
}

// Middleware records count and latency per route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if m == nil {
                return next(c)
            }
            start := time.Now()
            err := next(c)
            status := c.Response().Status
            if err != nil {
                if he, ok := err.(*echo.HTTPError); ok {
                    status = he.Code
                }
            }
            route := c.Path()
            if route == "" {
                route = "unmatched"
            }
            labels := prometheus.Labels{"method": c.Request().Method, "route": route, "status": strconv.Itoa(status)}
            m.requestTotal.With(labels).Inc()
            m.requestLatency.With(labels).Observe(time.Since(start).Seconds())
            return err
        }
    }
}

func (m *Metrics) recordRateLimitHit(route string) {
    if m == nil {
        return
    }
    m.rateLimitHits.WithLabelValues(route).Inc()
}

func (m *Metrics) recordCache(group, result string) {
    if m == nil {
        return
    }
    m.cacheResults.WithLabelValues(group, result).Inc()
}
