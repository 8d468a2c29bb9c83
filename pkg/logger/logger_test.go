package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level Level) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := NewLogger(Config{
		Level:   level,
		Format:  "json",
		Service: "test-service",
		Output:  buf,
	})
	return log, buf
}

func parseLogLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	return entry
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    Level
		logFunc  func(Logger)
		expected bool
	}{
		{
			name:     "debug suppressed at info level",
			level:    InfoLevel,
			logFunc:  func(l Logger) { l.Debug("debug message") },
			expected: false,
		},
		{
			name:     "info emitted at info level",
			level:    InfoLevel,
			logFunc:  func(l Logger) { l.Info("info message") },
			expected: true,
		},
		{
			name:     "warn emitted at info level",
			level:    InfoLevel,
			logFunc:  func(l Logger) { l.Warn("warn message") },
			expected: true,
		},
		{
			name:     "info suppressed at error level",
			level:    ErrorLevel,
			logFunc:  func(l Logger) { l.Info("info message") },
			expected: false,
		},
		{
			name:     "error emitted at error level",
			level:    ErrorLevel,
			logFunc:  func(l Logger) { l.Error("error message") },
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newBufferLogger(tt.level)
			tt.logFunc(log)
			if tt.expected {
				assert.NotEmpty(t, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	log, buf := newBufferLogger(InfoLevel)

	log.Info("with fields",
		StringField("identity", "user@example.com"),
		IntField("count", 3),
		BoolField("compacted", true),
	)

	entry := parseLogLine(t, strings.TrimSpace(buf.String()))
	assert.Equal(t, "with fields", entry["msg"])
	assert.Equal(t, "user@example.com", entry["identity"])
	assert.Equal(t, "3", entry["count"])
	assert.Equal(t, "true", entry["compacted"])
	assert.Equal(t, "test-service", entry["service"])
}

func TestWithFieldsImmutable(t *testing.T) {
	log, buf := newBufferLogger(InfoLevel)

	derived := log.WithFields(StringField("component", "memory"))
	derived.Info("derived")
	log.Info("base")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	derivedEntry := parseLogLine(t, lines[0])
	baseEntry := parseLogLine(t, lines[1])
	assert.Equal(t, "memory", derivedEntry["component"])
	assert.NotContains(t, baseEntry, "component")
}

func TestWithCorrelationID(t *testing.T) {
	log, buf := newBufferLogger(InfoLevel)

	id := uuid.New().String()
	log.WithCorrelationID(id).Info("correlated")

	entry := parseLogLine(t, strings.TrimSpace(buf.String()))
	assert.Equal(t, id, entry[CorrelationIDFieldKey])
}

func TestErrorField(t *testing.T) {
	assert.Equal(t, "<nil>", ErrorField(nil).Value)
	assert.Equal(t, "boom", ErrorField(errors.New("boom")).Value)
}

func TestFieldConversion(t *testing.T) {
	assert.Equal(t, "42", Field("n", 42).Value)
	assert.Equal(t, "1.5", Field("f", 1.5).Value)
	assert.Equal(t, "true", Field("b", true).Value)
	assert.Equal(t, "5s", Field("d", 5*time.Second).Value)
	assert.Equal(t, "text", Field("s", "text").Value)
}

func TestCorrelationIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetCorrelationIDFromContext(ctx))

	ctx = WithCorrelationIDContext(ctx, "abc-123")
	assert.Equal(t, "abc-123", GetCorrelationIDFromContext(ctx))
}

func TestEnsureHTTPCorrelationID(t *testing.T) {
	t.Run("generates when missing", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r, id := EnsureHTTPCorrelationID(r)

		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, r.Header.Get("X-Correlation-ID"))
		assert.Equal(t, id, GetCorrelationIDFromContext(r.Context()))
	})

	t.Run("keeps valid existing", func(t *testing.T) {
		existing := uuid.New().String()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Correlation-ID", existing)

		_, id := EnsureHTTPCorrelationID(r)
		assert.Equal(t, existing, id)
	})

	t.Run("replaces invalid existing", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Correlation-ID", "not-a-uuid")

		_, id := EnsureHTTPCorrelationID(r)
		assert.NotEqual(t, "not-a-uuid", id)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
	})
}

func TestHTTPMiddleware(t *testing.T) {
	log, buf := newBufferLogger(InfoLevel)

	handler := log.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	response := parseLogLine(t, lines[1])
	assert.Equal(t, "HTTP response sent", response["msg"])
	assert.Equal(t, "418", response["http_status"])
	assert.Equal(t, "/chat", response["http_path"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("warn"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("anything-else"))
}
