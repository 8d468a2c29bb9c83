// Package openai implements the models.CompletionModel interface for
// OpenAI's chat completion API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tiempoactualizado/mail-assistant/internal/models"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
)

const defaultMaxTokens = 4096

// Config holds the configuration for the OpenAI model.
type Config struct {
	APIKey    string
	ModelName string

	// BaseURL overrides the API endpoint. Used for proxies and tests.
	BaseURL string

	Logger logger.Logger
}

// Model implements models.CompletionModel for OpenAI GPT models.
type Model struct {
	client    *openai.Client
	modelName string
	logger    logger.Logger
}

// New creates a new OpenAI model instance.
func New(cfg Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &Model{
		client:    &client,
		modelName: cfg.ModelName,
		logger:    cfg.Logger.WithFields(logger.StringField("component", "openai_model")),
	}, nil
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.modelName
}

// Complete performs a single non-streaming chat completion.
func (m *Model) Complete(ctx context.Context, req models.Request) (*models.Response, error) {
	messages, err := transformMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to transform request: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:     m.modelName,
		MaxTokens: openai.Int(maxTokens),
		Messages:  messages,
	}

	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	if tools := transformTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	m.logger.Debug("sending chat completion request",
		logger.StringField("model", m.modelName),
		logger.IntField("messages", len(messages)))

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	return transformCompletion(completion)
}
