// Package anthropic implements the models.CompletionModel interface for
// Anthropic Claude models.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tiempoactualizado/mail-assistant/internal/models"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
)

const defaultMaxTokens = 4000

// Config holds the configuration for the Claude model.
type Config struct {
	APIKey    string
	ModelName string
	Logger    logger.Logger

	// Options are additional request options, used by tests to inject
	// a custom transport or base URL.
	Options []option.RequestOption
}

// ClaudeModel implements models.CompletionModel for Anthropic Claude models.
type ClaudeModel struct {
	client    anthropic.Client
	modelName string
	logger    logger.Logger
}

// NewClaudeModel creates a new Claude model instance.
func NewClaudeModel(cfg Config) (*ClaudeModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	modelName := cfg.ModelName
	if modelName == "" {
		modelName = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}

	client := anthropic.NewClient(
		append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, cfg.Options...)...,
	)

	return &ClaudeModel{
		client:    client,
		modelName: modelName,
		logger:    cfg.Logger.WithFields(logger.StringField("component", "claude_model")),
	}, nil
}

// Name returns the name of the model.
func (c *ClaudeModel) Name() string {
	return c.modelName
}

// Complete performs a single non-streaming message request.
func (c *ClaudeModel) Complete(ctx context.Context, req models.Request) (*models.Response, error) {
	messages, systemPrompt, err := transformMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to transform request: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	anthropicReq := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelName),
		MaxTokens: maxTokens,
		Messages:  messages,
	}

	if systemPrompt != "" {
		anthropicReq.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	if req.Temperature != nil {
		anthropicReq.Temperature = anthropic.Float(*req.Temperature)
	}

	if len(req.Tools) > 0 {
		anthropicReq.Tools = transformTools(req.Tools)
	}

	c.logger.Debug("sending message request",
		logger.StringField("model", c.modelName),
		logger.IntField("messages", len(messages)))

	resp, err := c.client.Messages.New(ctx, anthropicReq)
	if err != nil {
		return nil, fmt.Errorf("claude api error: %w", err)
	}

	return transformResponse(resp)
}
