// Package tools provides the closed tool registry the orchestrator
// dispatches model tool calls through. The set of tools is fixed at
// construction; the model can only reach what was registered.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/tiempoactualizado/mail-assistant/internal/models"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
	"github.com/tiempoactualizado/mail-assistant/pkg/metrics"
)

var (
	// ErrUnknownTool is returned when a dispatched name was never registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments is returned when required parameters are missing
	// or carry the wrong type.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Handler executes a tool call. Handlers convert their own failures into a
// user-presentable sentence instead of returning an error, so a broken
// upstream degrades the answer rather than the turn.
type Handler func(ctx context.Context, args map[string]any) string

// Parameter declares a single tool argument.
type Parameter struct {
	Name        string
	Type        string // JSON schema type: number, integer, string, boolean
	Description string
	Required    bool
}

// Tool couples a name and schema with its handler.
type Tool struct {
	Name        string
	Description string
	Parameters  []Parameter
	Handler     Handler
}

// Registry is the closed name -> tool mapping.
type Registry struct {
	tools   map[string]Tool
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewRegistry builds a registry from the given tools. Duplicate or unnamed
// tools and nil handlers are construction errors.
func NewRegistry(log logger.Logger, m *metrics.Metrics, toolList ...Tool) (*Registry, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}

	tools := make(map[string]Tool, len(toolList))
	for _, t := range toolList {
		if t.Name == "" {
			return nil, fmt.Errorf("tool name cannot be empty")
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tool %s has no handler", t.Name)
		}
		if _, exists := tools[t.Name]; exists {
			return nil, fmt.Errorf("duplicate tool name: %s", t.Name)
		}
		tools[t.Name] = t
	}

	return &Registry{
		tools:   tools,
		log:     log,
		metrics: m,
	}, nil
}

// Dispatch validates the arguments against the tool's declared parameters
// and runs the handler. The schema is advertised to the model, but the
// arguments are still checked locally before execution.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if err := validateArgs(t, args); err != nil {
		return "", err
	}

	r.log.Debug("Dispatching tool call",
		logger.StringField("tool", name))
	if r.metrics != nil && r.metrics.ToolCallsCounter != nil {
		r.metrics.ToolCallsCounter.Inc()
	}

	return t.Handler(ctx, args), nil
}

// Definitions exposes the registered schemas in the completion request
// format.
func (r *Registry) Definitions() []models.ToolDefinition {
	defs := make([]models.ToolDefinition, 0, len(r.tools))

	for _, t := range r.tools {
		properties := make(map[string]any, len(t.Parameters))
		var required []string

		for _, p := range t.Parameters {
			properties[p.Name] = map[string]any{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}

		defs = append(defs, models.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		})
	}

	return defs
}

func validateArgs(t Tool, args map[string]any) error {
	for _, p := range t.Parameters {
		value, present := args[p.Name]
		if !present {
			if p.Required {
				return fmt.Errorf("%w: missing required parameter %s", ErrInvalidArguments, p.Name)
			}
			continue
		}

		if !typeMatches(p.Type, value) {
			return fmt.Errorf("%w: parameter %s must be of type %s", ErrInvalidArguments, p.Name, p.Type)
		}
	}

	return nil
}

// typeMatches checks a decoded JSON value against a schema type. JSON
// numbers always decode as float64, so integer accepts whole floats.
func typeMatches(schemaType string, value any) bool {
	switch schemaType {
	case "number":
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	default:
		return true
	}
}
