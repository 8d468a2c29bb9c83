package openai

import (
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/tiempoactualizado/mail-assistant/internal/models"
)

// transformMessages converts conversation messages to OpenAI chat completion
// message params. System messages are included inline in the messages array.
func transformMessages(messages []models.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	var result []openai.ChatCompletionMessageParamUnion

	for _, message := range messages {
		msg, err := convertMessage(message)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			result = append(result, *msg)
		}
	}

	return result, nil
}

func convertMessage(message models.Message) (*openai.ChatCompletionMessageParamUnion, error) {
	switch message.Role {
	case models.RoleSystem:
		if message.Content == "" {
			return nil, nil
		}
		msg := openai.SystemMessage(message.Content)
		return &msg, nil

	case models.RoleUser:
		if message.Content == "" {
			return nil, nil
		}
		msg := openai.UserMessage(message.Content)
		return &msg, nil

	case models.RoleAssistant:
		return convertAssistantMessage(message)

	case models.RoleTool:
		if message.ToolResult == nil {
			return nil, fmt.Errorf("tool message without result")
		}
		msg := openai.ToolMessage(message.ToolResult.Content, message.ToolResult.CallID)
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message role: %s", message.Role)
	}
}

func convertAssistantMessage(message models.Message) (*openai.ChatCompletionMessageParamUnion, error) {
	var toolCalls []openai.ChatCompletionMessageToolCallParam

	for _, call := range message.ToolCalls {
		argsJSON, err := json.Marshal(call.Arguments)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tool call arguments: %w", err)
		}
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   call.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: string(argsJSON),
			},
		})
	}

	if message.Content == "" && len(toolCalls) == 0 {
		return nil, nil
	}

	if len(toolCalls) > 0 {
		assistantParam := openai.ChatCompletionAssistantMessageParam{
			ToolCalls: toolCalls,
		}
		if message.Content != "" {
			assistantParam.Content.OfString.Value = message.Content
		}
		msg := openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantParam}
		return &msg, nil
	}

	msg := openai.AssistantMessage(message.Content)
	return &msg, nil
}

// transformTools converts tool definitions to OpenAI ChatCompletionToolParam.
func transformTools(tools []models.ToolDefinition) []openai.ChatCompletionToolParam {
	var result []openai.ChatCompletionToolParam

	for _, tool := range tools {
		if tool.Name == "" {
			continue
		}

		parameters := openai.FunctionParameters{}
		for k, v := range tool.Parameters {
			parameters[k] = v
		}
		if _, hasType := parameters["type"]; !hasType {
			parameters["type"] = "object"
		}

		result = append(result, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  parameters,
			},
		})
	}

	return result
}

// transformCompletion converts an OpenAI ChatCompletion response into the
// provider-neutral response format.
func transformCompletion(completion *openai.ChatCompletion) (*models.Response, error) {
	if completion == nil {
		return nil, fmt.Errorf("nil completion")
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := completion.Choices[0]
	var outputs []models.Output

	if choice.Message.Content != "" {
		outputs = append(outputs, models.Output{Text: choice.Message.Content})
	}

	for _, toolCall := range choice.Message.ToolCalls {
		var args map[string]any
		if toolCall.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool arguments: %w", err)
			}
		}
		outputs = append(outputs, models.Output{
			ToolCall: &models.ToolCall{
				ID:        toolCall.ID,
				Name:      toolCall.Function.Name,
				Arguments: args,
			},
		})
	}

	return &models.Response{Outputs: outputs}, nil
}
