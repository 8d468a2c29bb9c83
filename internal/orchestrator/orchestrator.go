// Package orchestrator drives a single conversation turn: persist the user
// message, build the prompt from recent memory, run the completion model,
// dispatch any tool calls and fold everything into one reply string.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tiempoactualizado/mail-assistant/internal/memory_service"
	"github.com/tiempoactualizado/mail-assistant/internal/models"
	"github.com/tiempoactualizado/mail-assistant/internal/tools"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
	"github.com/tiempoactualizado/mail-assistant/pkg/metrics"
)

const (
	// ApologyReply is returned when the model produced no output at all.
	ApologyReply = "Perdona, parece que hubo un error al generar la respuesta."

	defaultTurnTimeout = 60 * time.Second
)

// Config holds configuration for the orchestrator.
type Config struct {
	Model  models.CompletionModel
	Memory *memory_service.Store
	Tools  *tools.Registry
	Logger logger.Logger

	// Metrics is optional; turn counters are skipped when nil.
	Metrics *metrics.Metrics

	// RecentWindow is how many trailing messages feed the prompt.
	// Defaults to the memory store's default window.
	RecentWindow int

	// IncludeSummary adds the durable conversation summary ahead of the
	// recent window in the system message.
	IncludeSummary bool

	// TurnTimeout bounds a whole turn including tool calls.
	// Defaults to 60s.
	TurnTimeout time.Duration
}

// Orchestrator generates replies for identities.
type Orchestrator struct {
	model   models.CompletionModel
	memory  *memory_service.Store
	tools   *tools.Registry
	log     logger.Logger
	metrics *metrics.Metrics

	recentWindow   int
	includeSummary bool
	turnTimeout    time.Duration
}

// New creates a new orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Memory == nil {
		return nil, fmt.Errorf("memory store is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	recentWindow := cfg.RecentWindow
	if recentWindow <= 0 {
		recentWindow = memory_service.DefaultRecentWindow
	}
	turnTimeout := cfg.TurnTimeout
	if turnTimeout <= 0 {
		turnTimeout = defaultTurnTimeout
	}

	return &Orchestrator{
		model:          cfg.Model,
		memory:         cfg.Memory,
		tools:          cfg.Tools,
		log:            cfg.Logger,
		metrics:        cfg.Metrics,
		recentWindow:   recentWindow,
		includeSummary: cfg.IncludeSummary,
		turnTimeout:    turnTimeout,
	}, nil
}

// Reply runs one turn for an identity and always returns presentable text.
// Internal failures are converted into a Spanish error sentence and recorded
// as an assistant turn, never surfaced as an error.
func (o *Orchestrator) Reply(ctx context.Context, identity, text string) string {
	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	reply, err := o.runTurn(ctx, identity, text)
	if err != nil {
		o.log.Error("Turn failed",
			logger.IdentityField(identity),
			logger.ErrorField(err))
		if o.metrics != nil && o.metrics.TurnFailuresCounter != nil {
			o.metrics.TurnFailuresCounter.Inc()
		}

		errorReply := fmt.Sprintf("Hubo un error procesando tu solicitud: %v", err)
		o.record(ctx, identity, errorReply)
		return errorReply
	}

	if o.metrics != nil && o.metrics.TurnsCounter != nil {
		o.metrics.TurnsCounter.Inc()
	}
	return reply
}

func (o *Orchestrator) runTurn(ctx context.Context, identity, text string) (string, error) {
	if err := o.memory.Append(ctx, identity, memory_service.RoleUser, text); err != nil {
		return "", err
	}

	messages, err := o.buildPrompt(ctx, identity, text)
	if err != nil {
		return "", err
	}

	resp, err := o.model.Complete(ctx, models.Request{
		Messages: messages,
		Tools:    o.tools.Definitions(),
	})
	if err != nil {
		return "", err
	}

	var finalText string
	for _, output := range resp.Outputs {
		switch {
		case output.Text != "":
			if err := o.memory.Append(ctx, identity, memory_service.RoleAssistant, output.Text); err != nil {
				return "", err
			}
			finalText += output.Text

		case output.ToolCall != nil:
			result, err := o.tools.Dispatch(ctx, output.ToolCall.Name, output.ToolCall.Arguments)
			if err != nil {
				return "", err
			}
			if err := o.memory.Append(ctx, identity, memory_service.RoleAssistant, result); err != nil {
				return "", err
			}
			finalText += result
		}
	}

	finalText = applyLocation(text, finalText)

	if strings.TrimSpace(finalText) == "" {
		finalText = ApologyReply
		o.record(ctx, identity, finalText)
	}

	return finalText, nil
}

// buildPrompt assembles the system message carrying the recent window (and,
// when configured, the durable summary) plus the current user message. The
// window already contains the just-appended user message.
func (o *Orchestrator) buildPrompt(ctx context.Context, identity, text string) ([]models.Message, error) {
	recent, err := o.memory.Recent(ctx, identity, o.recentWindow)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	if o.includeSummary {
		summary, err := o.memory.Summary(ctx, identity)
		if err != nil {
			return nil, err
		}
		if summary != "" {
			sb.WriteString("Resumen de la conversación:\n")
			sb.WriteString(summary)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("Resumen de últimas interacciones:\n")
	for i, msg := range recent {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
	}

	return []models.Message{
		models.SystemMessage(sb.String()),
		models.UserMessage(text),
	}, nil
}

// record appends an assistant message, logging persistence failures instead
// of propagating them because the reply is already committed.
func (o *Orchestrator) record(ctx context.Context, identity, content string) {
	if err := o.memory.Append(ctx, identity, memory_service.RoleAssistant, content); err != nil {
		o.log.Warn("Failed to record assistant reply",
			logger.IdentityField(identity),
			logger.ErrorField(err))
	}
}
