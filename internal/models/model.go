// Package models defines the provider-neutral completion contract used by
// the orchestrator and summarizer. Each provider package (openai, anthropic)
// adapts its SDK to the CompletionModel interface so the rest of the
// assistant never imports an SDK directly.
package models

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single conversation entry sent to a model.
// Exactly one of Content, ToolCalls or ToolResult carries the payload,
// depending on the role.
type Message struct {
	Role    Role
	Content string

	// ToolCalls is set on assistant messages that requested tool execution.
	ToolCalls []ToolCall

	// ToolResult is set on tool messages carrying an execution result.
	ToolResult *ToolResult
}

// ToolCall is a model request to execute a named tool with parsed arguments.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult is the outcome of executing a tool call, fed back to the model.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
}

// ToolDefinition describes a callable tool advertised to the model.
// Parameters is a JSON schema object for the tool's arguments.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a single completion request.
type Request struct {
	Messages    []Message
	Tools       []ToolDefinition
	MaxTokens   int64
	Temperature *float64
}

// Output is one element of a model response, either text or a tool call.
type Output struct {
	Text     string
	ToolCall *ToolCall
}

// Response is an ordered sequence of model outputs.
type Response struct {
	Outputs []Output
}

// Text returns the concatenation of all text outputs.
func (r *Response) Text() string {
	var text string
	for _, out := range r.Outputs {
		if out.Text == "" {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += out.Text
	}
	return text
}

// ToolCalls returns all tool call outputs in order.
func (r *Response) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, out := range r.Outputs {
		if out.ToolCall != nil {
			calls = append(calls, *out.ToolCall)
		}
	}
	return calls
}

// Empty reports whether the response carries neither text nor tool calls.
func (r *Response) Empty() bool {
	for _, out := range r.Outputs {
		if out.Text != "" || out.ToolCall != nil {
			return false
		}
	}
	return true
}

// CompletionModel is the contract every LLM provider implements.
type CompletionModel interface {
	// Name returns the provider model identifier.
	Name() string

	// Complete performs a single non-streaming completion.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// SystemMessage builds a system role message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage builds a user role message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage builds a text-only assistant message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// AssistantToolCallMessage builds an assistant message that requested tools.
func AssistantToolCallMessage(calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, ToolCalls: calls}
}

// ToolResultMessage builds a tool message carrying an execution result.
func ToolResultMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, ToolResult: &ToolResult{
		CallID:  callID,
		Name:    name,
		Content: content,
	}}
}
