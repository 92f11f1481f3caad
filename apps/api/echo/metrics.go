package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/klassenbuch/core/rpc"
)

const metricsNamespace = "klassenbuch"

// Metrics holds the Prometheus collectors of the API.
type Metrics struct {
	registry     *prometheus.Registry
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	rpcCalls     *prometheus.CounterVec
	rpcDuration  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "route"},
		),
		rpcCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "rpc",
				Name:      "calls_total",
				Help:      "Total number of JSON-RPC calls by method and fault code (0 on success).",
			},
			[]string{"method", "fault_code"},
		),
		rpcDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "rpc",
				Name:      "call_duration_seconds",
				Help:      "Duration of JSON-RPC calls.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"method"},
		),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.rpcCalls,
		m.rpcDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WatchHub exports the number of connected shoutbox listeners.
func (m *Metrics) WatchHub(hub *Hub) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "shoutbox",
			Name:      "listeners",
			Help:      "Number of connected shoutbox feed listeners.",
		},
		func() float64 { return float64(hub.Clients()) },
	))
}

// RPCObserver records every executed call. Unregistered method names share one label.
func (m *Metrics) RPCObserver(errs *rpc.ErrorRegistry) rpc.Observer {
	unknown, _ := errs.Lookup(rpc.ErrUnknownMethod)
	return func(method string, faultCode int, elapsed time.Duration) {
		if faultCode != 0 && faultCode == unknown {
			method = "unknown"
		}
		m.rpcCalls.WithLabelValues(method, strconv.Itoa(faultCode)).Inc()
		m.rpcDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if ctx.Path() == "/metrics" {
			return next(ctx)
		}
		start := time.Now()
		err := next(ctx)

		status := ctx.Response().Status
		if err != nil {
			if herr, ok := err.(*echo.HTTPError); ok {
				status = herr.Code
			} else {
				status = http.StatusInternalServerError
			}
		}
		route := ctx.Path()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(ctx.Request().Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(ctx.Request().Method, route).Observe(time.Since(start).Seconds())
		return err
	}
}
