package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

var (
	httpMetricsOnce sync.Once
	httpMetricsVal  *httpMetrics
)

func sharedHTTPMetrics() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpMetricsVal = &httpMetrics{
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "signalflow",
				Name:      "http_requests_total",
				Help:      "HTTP requests by route template, method and status",
			}, []string{"route", "method", "status"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "signalflow",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by status class",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			}, []string{"route", "method", "class"}),
			inFlight: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: "signalflow",
				Name:      "http_in_flight_requests",
				Help:      "Requests currently being served",
			}),
		}
	})
	return httpMetricsVal
}

// Metrics counts requests per route template. Latency is skipped for
// websocket upgrades since their duration is the connection lifetime.
func Metrics() echo.MiddlewareFunc {
	m := sharedHTTPMetrics()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			defer m.inFlight.Dec()
			start := time.Now()
			if err := next(c); err != nil {
				// Let echo write the error so the recorded status is final.
				c.Error(err)
			}

			req := c.Request()
			route, status := routeOf(c), c.Response().Status
			m.requests.WithLabelValues(route, req.Method, strconv.Itoa(status)).Inc()
			if req.Header.Get(echo.HeaderUpgrade) != "" {
				return nil
			}
			m.latency.WithLabelValues(route, req.Method, strconv.Itoa(status/100)+"xx").
				Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
