package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
)

func newTestLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:  logger.DebugLevel,
		Output: io.Discard,
	})
}

func TestNewMetricsDisabled(t *testing.T) {
	m := NewMetrics(false, false, newTestLogger())

	assert.Nil(t, m.TotalHTTPRequestsCounter)
	assert.Nil(t, m.TurnsCounter)

	// Counting with disabled collectors must be a no-op, not a panic.
	m.CountHTTPRequest(http.StatusOK, time.Millisecond)
}

func TestCountHTTPRequest(t *testing.T) {
	m := NewMetrics(true, false, newTestLogger())

	m.CountHTTPRequest(http.StatusOK, 10*time.Millisecond)
	m.CountHTTPRequest(http.StatusOK, 20*time.Millisecond)
	m.CountHTTPRequest(http.StatusNotFound, 5*time.Millisecond)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.TotalHTTPRequestsCounter))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsCounters[http.StatusOK]))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsCounters[http.StatusNotFound]))
}

func TestTurnCounters(t *testing.T) {
	m := NewMetrics(false, true, newTestLogger())

	m.TurnsCounter.Inc()
	m.TurnsCounter.Inc()
	m.CompactionsCounter.Inc()
	m.EmailsSkippedCounter.Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.TurnsCounter))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CompactionsCounter))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EmailsSkippedCounter))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.TurnFailuresCounter))
}

func TestHTTPMiddleware(t *testing.T) {
	m := NewMetrics(true, false, newTestLogger())

	handler := m.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TotalHTTPRequestsCounter))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsCounters[http.StatusAccepted]))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics(false, true, newTestLogger())
	m.TurnsCounter.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "assistant_turns_total 1")
}
