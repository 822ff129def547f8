package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Histogram for HTTP request latency
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pyq_http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Counter for test submissions
	submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyq_submissions_total",
			Help: "Total number of scored test submissions",
		},
		[]string{"exam"},
	)

	// Histogram for submission percentages
	scorePercentage = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pyq_submission_score_percent",
			Help:    "Distribution of submission scores as a percentage of total marks",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"exam"},
	)

	// Counter for authoring writes
	paperWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyq_paper_writes_total",
			Help: "Total number of paper create, update and delete operations",
		},
		[]string{"action"}, // action: created/updated/deleted
	)
)

// ObserveSubmission records one scored submission.
func ObserveSubmission(exam string, percentage float64) {
	submissions.WithLabelValues(exam).Inc()
	scorePercentage.WithLabelValues(exam).Observe(percentage)
}

// ObservePaperWrite counts an authoring write.
func ObservePaperWrite(action string) {
	paperWrites.WithLabelValues(action).Inc()
}

// Middleware times every request, labelled by the matched route pattern.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
