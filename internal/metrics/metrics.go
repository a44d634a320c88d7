package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the quiz server collectors.
type Metrics struct {
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	grades           *prometheus.CounterVec
	feedbackFailures *prometheus.CounterVec
	streams          prometheus.Gauge
	attempts         *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 15},
			},
			[]string{"method", "endpoint"},
		),
		grades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_grades_total",
				Help: "Graded submissions by verdict",
			},
			[]string{"verdict"},
		),
		feedbackFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_feedback_failures_total",
				Help: "Feedback generator failures by kind",
			},
			[]string{"kind"},
		),
		streams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quiz_stream_connections",
				Help: "Open WebSocket quiz streams",
			},
		),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_attempts_persisted_total",
				Help: "Attempt records handled by the attempt worker",
			},
			[]string{"outcome"},
		),
		gatherer: reg,
	}

	reg.MustRegister(m.requests, m.requestDuration, m.grades, m.feedbackFailures, m.streams, m.attempts)
	return m
}

// Middleware records request count and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		m.requests.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		m.requestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// ObserveGrade counts a graded submission.
func (m *Metrics) ObserveGrade(correct bool) {
	verdict := "incorrect"
	if correct {
		verdict = "correct"
	}
	m.grades.WithLabelValues(verdict).Inc()
}

// FeedbackFailed counts a generator failure; kind is "answer" or "summary".
func (m *Metrics) FeedbackFailed(kind string) {
	m.feedbackFailures.WithLabelValues(kind).Inc()
}

// StreamOpened and StreamClosed track open WebSocket streams.
func (m *Metrics) StreamOpened() { m.streams.Inc() }
func (m *Metrics) StreamClosed() { m.streams.Dec() }

// AttemptsPersisted counts records written by the attempt worker.
func (m *Metrics) AttemptsPersisted(n int) {
	m.attempts.WithLabelValues("persisted").Add(float64(n))
}

// AttemptsRequeued counts records pushed back after a failed insert.
func (m *Metrics) AttemptsRequeued(n int) {
	m.attempts.WithLabelValues("requeued").Add(float64(n))
}
