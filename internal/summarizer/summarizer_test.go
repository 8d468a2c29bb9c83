package summarizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiempoactualizado/mail-assistant/internal/memory_service"
	"github.com/tiempoactualizado/mail-assistant/internal/models"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
)

func newTestLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:  logger.DebugLevel,
		Output: io.Discard,
	})
}

type stubModel struct {
	response *models.Response
	err      error
	lastReq  models.Request
}

func (m *stubModel) Name() string { return "stub-model" }

func (m *stubModel) Complete(_ context.Context, req models.Request) (*models.Response, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func TestSummarizeSuccess(t *testing.T) {
	model := &stubModel{response: &models.Response{Outputs: []models.Output{
		{Text: "  Ana pregunta por el clima de Albacete.  "},
	}}}
	s := New(Config{Model: model, Logger: newTestLogger()})

	summary, err := s.Summarize(context.Background(), "", []memory_service.StoredMessage{
		{Role: memory_service.RoleUser, Content: "hola"},
		{Role: memory_service.RoleAssistant, Content: "buenas"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana pregunta por el clima de Albacete.", summary)

	require.Len(t, model.lastReq.Messages, 1)
	prompt := model.lastReq.Messages[0].Content
	assert.Contains(t, prompt, "Resume la siguiente conversación")
	assert.Contains(t, prompt, "user: hola")
	assert.Contains(t, prompt, "assistant: buenas")
}

func TestSummarizeIncludesPriorSummary(t *testing.T) {
	model := &stubModel{response: &models.Response{Outputs: []models.Output{{Text: "resumen"}}}}
	s := New(Config{Model: model, Logger: newTestLogger()})

	_, err := s.Summarize(context.Background(), "resumen anterior", nil)
	require.NoError(t, err)

	assert.Contains(t, model.lastReq.Messages[0].Content, "Resumen previo:\nresumen anterior")
}

func TestSummarizeModelError(t *testing.T) {
	model := &stubModel{err: fmt.Errorf("connection refused")}
	s := New(Config{Model: model, Logger: newTestLogger()})

	_, err := s.Summarize(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSummarizationFailed))
}

func TestSummarizeEmptyOutput(t *testing.T) {
	tests := []struct {
		name     string
		response *models.Response
	}{
		{name: "no outputs", response: &models.Response{}},
		{name: "whitespace only", response: &models.Response{Outputs: []models.Output{{Text: "   \n"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{Model: &stubModel{response: tt.response}, Logger: newTestLogger()})

			_, err := s.Summarize(context.Background(), "", nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSummarizationFailed))
		})
	}
}
