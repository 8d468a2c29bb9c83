// Package metrics provides Prometheus metrics collection for HTTP requests
// and assistant turn processing.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
)

const (
	subsystem = "assistant"
)

// Metrics provides Prometheus metrics collection for the assistant.
type Metrics struct {
	reg *prometheus.Registry

	TotalHTTPRequestsCounter prometheus.Counter
	HTTPRequestsCounters     map[int]prometheus.Counter
	HTTPDurationHistogram    prometheus.Histogram

	TurnsCounter              prometheus.Counter
	TurnFailuresCounter       prometheus.Counter
	ToolCallsCounter          prometheus.Counter
	CompactionsCounter        prometheus.Counter
	CompactionFailuresCounter prometheus.Counter
	EmailsProcessedCounter    prometheus.Counter
	EmailsSkippedCounter      prometheus.Counter

	countersMux sync.Mutex
	log         logger.Logger
}

// NewMetrics creates a new Metrics instance with the specified collectors enabled.
func NewMetrics(httpCounters, turnCounters bool, l logger.Logger) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		log: l,
	}
	if httpCounters {
		m.TotalHTTPRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "total_http_requests",
			Help:      "Total HTTP requests",
		})
		m.reg.MustRegister(m.TotalHTTPRequestsCounter)
		m.HTTPRequestsCounters = make(map[int]prometheus.Counter)

		m.HTTPDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0},
		})
		m.reg.MustRegister(m.HTTPDurationHistogram)
	}
	if turnCounters {
		m.TurnsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "turns_total",
			Help:      "Total conversation turns processed",
		})
		m.TurnFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "turn_failures_total",
			Help:      "Turns that degraded to a textual error reply",
		})
		m.ToolCallsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "tool_calls_total",
			Help:      "Tool invocations requested by the model",
		})
		m.CompactionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "memory_compactions_total",
			Help:      "Successful conversation memory compactions",
		})
		m.CompactionFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "memory_compaction_failures_total",
			Help:      "Compactions abandoned because summarization failed",
		})
		m.EmailsProcessedCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "emails_processed_total",
			Help:      "Inbox messages answered and marked processed",
		})
		m.EmailsSkippedCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "emails_skipped_total",
			Help:      "Inbox messages skipped (unresolvable sender)",
		})
		m.reg.MustRegister(
			m.TurnsCounter,
			m.TurnFailuresCounter,
			m.ToolCallsCounter,
			m.CompactionsCounter,
			m.CompactionFailuresCounter,
			m.EmailsProcessedCounter,
			m.EmailsSkippedCounter,
		)
	}
	return m
}

// Handler returns the promhttp handler for the registry, for mounting on an
// existing router.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Listen starts a standalone metrics HTTP server on the specified port.
// The returned shutdown function stops the server.
func (m *Metrics) Listen(port int) (chan error, func()) {
	m.log.Info("Starting metrics listener", logger.IntField("port", port))
	mux := http.NewServeMux()
	mux.Handle("/", http.NotFoundHandler())
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.ListenAndServe()
	}()

	shutdown := func() {
		m.log.Info("Stopping metrics listener")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}

	return errChan, shutdown
}

// CountHTTPRequest records one HTTP request with its status code and duration.
func (m *Metrics) CountHTTPRequest(statusCode int, duration time.Duration) {
	if m.TotalHTTPRequestsCounter == nil {
		return
	}
	m.TotalHTTPRequestsCounter.Inc()
	m.HTTPDurationHistogram.Observe(duration.Seconds())

	m.countersMux.Lock()
	defer m.countersMux.Unlock()
	counter, ok := m.HTTPRequestsCounters[statusCode]
	if !ok {
		counter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      fmt.Sprintf("http_requests_%d", statusCode),
			Help:      fmt.Sprintf("HTTP requests with status %d", statusCode),
		})
		m.reg.MustRegister(counter)
		m.HTTPRequestsCounters[statusCode] = counter
	}
	counter.Inc()
}

// statusRecorder wraps http.ResponseWriter to capture the response status.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware returns chi-compatible middleware that records request
// counters and durations.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.CountHTTPRequest(rec.status, time.Since(start))
	})
}

// Registry exposes the underlying registry for registering custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}
