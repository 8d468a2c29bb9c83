package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiempoactualizado/mail-assistant/internal/memory_service"
	"github.com/tiempoactualizado/mail-assistant/internal/models"
	"github.com/tiempoactualizado/mail-assistant/internal/storage_manager"
	"github.com/tiempoactualizado/mail-assistant/internal/tools"
	"github.com/tiempoactualizado/mail-assistant/internal/tools/weather"
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

type fixture struct {
	orchestrator *Orchestrator
	memory       *memory_service.Store
	model        *stubModel
}

func newFixture(t *testing.T, model *stubModel, weatherURL string) *fixture {
	t.Helper()

	log := newTestLogger()
	memory := memory_service.New(memory_service.Config{
		FileProvider: storage_manager.NewLocalFileProvider(t.TempDir()),
		Logger:       log,
	})

	var registryTools []tools.Tool
	if weatherURL != "" {
		weatherTool, err := weather.New(weather.Config{BaseURL: weatherURL, Logger: log})
		require.NoError(t, err)
		registryTools = append(registryTools, weatherTool)
	}
	registry, err := tools.NewRegistry(log, nil, registryTools...)
	require.NoError(t, err)

	o, err := New(Config{
		Model:          model,
		Memory:         memory,
		Tools:          registry,
		Logger:         log,
		IncludeSummary: true,
	})
	require.NoError(t, err)

	return &fixture{orchestrator: o, memory: memory, model: model}
}

func lastMessage(t *testing.T, memory *memory_service.Store, identity string) memory_service.StoredMessage {
	t.Helper()
	record, err := memory.Load(context.Background(), identity)
	require.NoError(t, err)
	require.NotEmpty(t, record.Messages)
	return record.Messages[len(record.Messages)-1]
}

func TestReplyDirectText(t *testing.T) {
	model := &stubModel{response: &models.Response{Outputs: []models.Output{
		{Text: "¡Buenas! ¿En qué puedo ayudarte?"},
	}}}
	f := newFixture(t, model, "")

	reply := f.orchestrator.Reply(context.Background(), "ana@example.com", "hola")
	assert.Equal(t, "¡Buenas! ¿En qué puedo ayudarte?", reply)

	// Both sides of the turn are recorded.
	record, err := f.memory.Load(context.Background(), "ana@example.com")
	require.NoError(t, err)
	require.Len(t, record.Messages, 2)
	assert.Equal(t, memory_service.RoleUser, record.Messages[0].Role)
	assert.Equal(t, "hola", record.Messages[0].Content)
	assert.Equal(t, memory_service.RoleAssistant, record.Messages[1].Role)
	assert.Equal(t, reply, record.Messages[1].Content)
}

func TestReplyWeatherToolCallWithLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"current":{"temperature_2m":20,"wind_speed_10m":5}}`))
	}))
	defer server.Close()

	model := &stubModel{response: &models.Response{Outputs: []models.Output{
		{ToolCall: &models.ToolCall{
			ID:        "call_1",
			Name:      weather.ToolName,
			Arguments: map[string]any{"latitude": 38.99, "longitude": -1.86},
		}},
	}}}
	f := newFixture(t, model, server.URL)

	reply := f.orchestrator.Reply(context.Background(), "ana@example.com", "Clima en Albacete")
	assert.Contains(t, reply, "En Albacete")
	assert.Contains(t, reply, "20")
	assert.Contains(t, reply, "5")
	assert.NotContains(t, reply, "La temperatura actual es")
}

func TestReplyWithoutLocationKeepsGenericPhrase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"current":{"temperature_2m":20,"wind_speed_10m":5}}`))
	}))
	defer server.Close()

	model := &stubModel{response: &models.Response{Outputs: []models.Output{
		{ToolCall: &models.ToolCall{
			Name:      weather.ToolName,
			Arguments: map[string]any{"latitude": 38.99, "longitude": -1.86},
		}},
	}}}
	f := newFixture(t, model, server.URL)

	reply := f.orchestrator.Reply(context.Background(), "ana@example.com", "dime el clima")
	assert.Contains(t, reply, "La temperatura actual es de 20°C")
}

func TestReplyEmptyModelOutput(t *testing.T) {
	model := &stubModel{response: &models.Response{}}
	f := newFixture(t, model, "")

	reply := f.orchestrator.Reply(context.Background(), "ana@example.com", "hola")
	assert.Equal(t, ApologyReply, reply)
	assert.Equal(t, ApologyReply, lastMessage(t, f.memory, "ana@example.com").Content)
}

func TestReplyModelError(t *testing.T) {
	model := &stubModel{err: fmt.Errorf("connection refused")}
	f := newFixture(t, model, "")

	reply := f.orchestrator.Reply(context.Background(), "ana@example.com", "hola")
	assert.Contains(t, reply, "Hubo un error procesando tu solicitud:")
	assert.Equal(t, reply, lastMessage(t, f.memory, "ana@example.com").Content)
}

func TestReplyUnknownToolCall(t *testing.T) {
	model := &stubModel{response: &models.Response{Outputs: []models.Output{
		{ToolCall: &models.ToolCall{Name: "unknown_tool", Arguments: map[string]any{}}},
	}}}
	f := newFixture(t, model, "")

	reply := f.orchestrator.Reply(context.Background(), "ana@example.com", "hola")
	assert.Contains(t, reply, "Hubo un error procesando tu solicitud:")
}

func TestReplyPromptCarriesRecentWindow(t *testing.T) {
	model := &stubModel{response: &models.Response{Outputs: []models.Output{{Text: "ok"}}}}
	f := newFixture(t, model, "")
	ctx := context.Background()

	f.orchestrator.Reply(ctx, "ana@example.com", "primer mensaje")
	f.orchestrator.Reply(ctx, "ana@example.com", "segundo mensaje")

	require.Len(t, f.model.lastReq.Messages, 2)
	system := f.model.lastReq.Messages[0]
	assert.Equal(t, models.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "Resumen de últimas interacciones:")
	assert.Contains(t, system.Content, "user: primer mensaje")
	assert.Contains(t, system.Content, "user: segundo mensaje")

	current := f.model.lastReq.Messages[1]
	assert.Equal(t, models.RoleUser, current.Role)
	assert.Equal(t, "segundo mensaje", current.Content)
}

func TestReplyPromptIncludesDurableSummary(t *testing.T) {
	model := &stubModel{response: &models.Response{Outputs: []models.Output{{Text: "ok"}}}}

	log := newTestLogger()
	provider := storage_manager.NewLocalFileProvider(t.TempDir())
	memory := memory_service.New(memory_service.Config{
		FileProvider: provider,
		Logger:       log,
	})
	ctx := context.Background()

	// Seed a record that already carries a durable summary.
	require.NoError(t, provider.Write(ctx, "records/ana@example.com.json",
		[]byte(`{"identity":"ana@example.com","summary":"Ana vive en Albacete.","messages":[]}`)))

	registry, err := tools.NewRegistry(log, nil)
	require.NoError(t, err)
	o, err := New(Config{
		Model:          model,
		Memory:         memory,
		Tools:          registry,
		Logger:         log,
		IncludeSummary: true,
	})
	require.NoError(t, err)

	o.Reply(ctx, "ana@example.com", "hola")
	assert.Contains(t, model.lastReq.Messages[0].Content, "Ana vive en Albacete.")
}

func TestReplyMixedTextAndToolOutputs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"current":{"temperature_2m":15,"wind_speed_10m":10}}`))
	}))
	defer server.Close()

	model := &stubModel{response: &models.Response{Outputs: []models.Output{
		{Text: "Déjame consultarlo. "},
		{ToolCall: &models.ToolCall{
			Name:      weather.ToolName,
			Arguments: map[string]any{"latitude": 40.0, "longitude": -3.7},
		}},
	}}}
	f := newFixture(t, model, server.URL)

	reply := f.orchestrator.Reply(context.Background(), "ana@example.com", "dime el clima")
	assert.Contains(t, reply, "Déjame consultarlo.")
	assert.Contains(t, reply, "15")

	record, err := f.memory.Load(context.Background(), "ana@example.com")
	require.NoError(t, err)
	// user + text output + tool result, in order.
	require.Len(t, record.Messages, 3)
}

func TestNewValidation(t *testing.T) {
	log := newTestLogger()
	memory := memory_service.New(memory_service.Config{
		FileProvider: storage_manager.NewLocalFileProvider(t.TempDir()),
		Logger:       log,
	})
	registry, err := tools.NewRegistry(log, nil)
	require.NoError(t, err)
	model := &stubModel{}

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing model", cfg: Config{Memory: memory, Tools: registry, Logger: log}},
		{name: "missing memory", cfg: Config{Model: model, Tools: registry, Logger: log}},
		{name: "missing tools", cfg: Config{Model: model, Memory: memory, Logger: log}},
		{name: "missing logger", cfg: Config{Model: model, Memory: memory, Tools: registry}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}
