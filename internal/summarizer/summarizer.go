// Package summarizer condenses conversation history into a short Spanish
// summary used by the memory store during compaction.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tiempoactualizado/mail-assistant/internal/memory_service"
	"github.com/tiempoactualizado/mail-assistant/internal/models"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
)

// ErrSummarizationFailed is returned when the model produced no usable
// summary. Callers treat it as a signal to keep the uncompacted history.
var ErrSummarizationFailed = errors.New("summarization failed")

const summaryPrompt = "Resume la siguiente conversación manteniendo los puntos clave " +
	"para continuar la charla de forma coherente:\n\n"

// Config holds configuration for the summarizer.
type Config struct {
	Model  models.CompletionModel
	Logger logger.Logger

	// MaxTokens bounds the summary completion. Zero uses the model default.
	MaxTokens int64
}

// Summarizer condenses conversations through a completion model.
type Summarizer struct {
	model     models.CompletionModel
	log       logger.Logger
	maxTokens int64
}

// New creates a new summarizer.
func New(cfg Config) *Summarizer {
	if cfg.Model == nil {
		panic("model cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}

	return &Summarizer{
		model:     cfg.Model,
		log:       cfg.Logger,
		maxTokens: cfg.MaxTokens,
	}
}

// Summarize produces a replacement summary from the prior summary and the
// full chronological transcript. Transport errors and empty completions both
// yield ErrSummarizationFailed.
func (s *Summarizer) Summarize(ctx context.Context, priorSummary string, messages []memory_service.StoredMessage) (string, error) {
	prompt := buildPrompt(priorSummary, messages)

	resp, err := s.model.Complete(ctx, models.Request{
		Messages:  []models.Message{models.UserMessage(prompt)},
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return "", fmt.Errorf("%w: model returned empty output", ErrSummarizationFailed)
	}

	s.log.Debug("Generated conversation summary",
		logger.StringField("model", s.model.Name()),
		logger.IntField("transcript_messages", len(messages)))

	return summary, nil
}

// buildPrompt embeds the prior summary, when present, ahead of the
// role-prefixed transcript.
func buildPrompt(priorSummary string, messages []memory_service.StoredMessage) string {
	var sb strings.Builder
	sb.WriteString(summaryPrompt)

	if priorSummary != "" {
		sb.WriteString("Resumen previo:\n")
		sb.WriteString(priorSummary)
		sb.WriteString("\n\n")
	}

	for _, msg := range messages {
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}

	return sb.String()
}
