package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyrovision",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pyrovision",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pyrovision",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Detection metrics
	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyrovision",
		Subsystem: "detector",
		Name:      "classifications_total",
		Help:      "Total images classified, by label",
	}, []string{"label"})

	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pyrovision",
		Subsystem: "detector",
		Name:      "inference_duration_seconds",
		Help:      "Model inference latency including preprocessing",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	InferenceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pyrovision",
		Subsystem: "detector",
		Name:      "inference_errors_total",
		Help:      "Total classifications that failed",
	})

	FeedRecordsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyrovision",
		Subsystem: "feed",
		Name:      "records_rejected_total",
		Help:      "Total malformed feed records rejected",
	}, []string{"source"})

	InRegionDetections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pyrovision",
		Subsystem: "roi",
		Name:      "in_region_detections_total",
		Help:      "Total wildfire detections inside the region of interest",
	})

	DedupSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pyrovision",
		Subsystem: "roi",
		Name:      "dedup_suppressed_total",
		Help:      "Total in-region detections dropped because they were already alerted",
	})

	// Alert metrics
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyrovision",
		Subsystem: "alerts",
		Name:      "sent_total",
		Help:      "Total alert deliveries, by channel and result",
	}, []string{"channel", "result"})

	ChannelSendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pyrovision",
		Subsystem: "alerts",
		Name:      "send_duration_seconds",
		Help:      "Latency of a single channel send",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"channel"})

	BatchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyrovision",
		Subsystem: "batch",
		Name:      "runs_total",
		Help:      "Total batch runs, by final state",
	}, []string{"state"})

	TilesAcquired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyrovision",
		Subsystem: "imagery",
		Name:      "tiles_total",
		Help:      "Total tiles requested from the imagery provider, by result",
	}, []string{"result"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pyrovision",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyrovision",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyrovision",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pyrovision",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pyrovision",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pyrovision",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})

	DBPoolEmptyAcquires = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pyrovision",
		Subsystem: "db",
		Name:      "pool_empty_acquires",
		Help:      "Cumulative acquires that had to wait for a new connection",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool gauges from pgxpool stats.
// It takes an interface so this package does not import pgx.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
		EmptyAcquireCount() int64
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
		DBPoolEmptyAcquires.Set(float64(s.EmptyAcquireCount()))
	}
}
