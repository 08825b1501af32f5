package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	uploadedFiles prometheus.Counter
	uploadedBytes prometheus.Counter
	assignedPins  prometheus.Counter
)

// InitMetrics registers the collectors. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dumpit_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"})

		httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dumpit_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		uploadedFiles = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dumpit_uploaded_files_total",
			Help: "Files successfully stored and persisted.",
		})

		uploadedBytes = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dumpit_uploaded_bytes_total",
			Help: "Total bytes of successfully uploaded files.",
		})

		assignedPins = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dumpit_pin_assignments_total",
			Help: "Completed PIN assignment operations.",
		})

		prometheus.MustRegister(httpRequests, httpDuration, uploadedFiles, uploadedBytes, assignedPins)
	})
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// Middleware records request counts and latencies per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveUpload records a successfully committed uploaded file.
func ObserveUpload(sizeBytes int64) {
	if uploadedFiles == nil {
		return
	}
	uploadedFiles.Inc()
	uploadedBytes.Add(float64(sizeBytes))
}

// ObservePinAssignment records a completed PIN assignment call.
func ObservePinAssignment() {
	if assignedPins == nil {
		return
	}
	assignedPins.Inc()
}
