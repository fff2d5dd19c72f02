package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_http_requests_total",
			Help: "Total number of HTTP requests processed by the local gateway.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_client_http_request_duration_seconds",
			Help:    "Gateway HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_api_requests_total",
			Help: "Total number of backend API requests by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_client_api_request_duration_seconds",
			Help:    "Backend API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	cacheReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_cache_reads_total",
			Help: "Entity cache reads by kind and how they were served.",
		},
		[]string{"kind", "outcome"},
	)
	cacheFetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_cache_fetch_errors_total",
			Help: "Entity cache fetches that failed.",
		},
		[]string{"kind"},
	)
	cacheInvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_cache_invalidations_total",
			Help: "Entity cache invalidations by kind.",
		},
		[]string{"kind"},
	)
	mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_mutations_total",
			Help: "Mutations executed through the coordinator.",
		},
		[]string{"op", "outcome"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_client_ws_active_connections",
			Help: "Number of active websocket subscribers.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		apiRequestsTotal,
		apiRequestDuration,
		cacheReadsTotal,
		cacheFetchErrorsTotal,
		cacheInvalidationsTotal,
		mutationsTotal,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func ObserveAPIRequest(op, outcome string, elapsed time.Duration) {
	apiRequestsTotal.WithLabelValues(op, outcome).Inc()
	apiRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func ObserveCacheRead(kind, outcome string) {
	cacheReadsTotal.WithLabelValues(kind, outcome).Inc()
}

func IncCacheFetchError(kind string) {
	cacheFetchErrorsTotal.WithLabelValues(kind).Inc()
}

func IncCacheInvalidation(kind string) {
	cacheInvalidationsTotal.WithLabelValues(kind).Inc()
}

func IncMutation(op, outcome string) {
	mutationsTotal.WithLabelValues(op, outcome).Inc()
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
