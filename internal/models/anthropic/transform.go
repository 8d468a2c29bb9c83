package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/tiempoactualizado/mail-assistant/internal/models"
)

// transformMessages converts conversation messages to Anthropic MessageParams.
// System messages are collected into a separate system prompt because the
// Anthropic API carries them outside the message array.
func transformMessages(messages []models.Message) ([]anthropic.MessageParam, string, error) {
	var result []anthropic.MessageParam
	var systemPrompt string

	for _, message := range messages {
		if message.Role == models.RoleSystem {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += message.Content
			continue
		}

		msg, err := convertMessage(message)
		if err != nil {
			return nil, "", err
		}
		if msg != nil {
			result = append(result, *msg)
		}
	}

	return result, systemPrompt, nil
}

func convertMessage(message models.Message) (*anthropic.MessageParam, error) {
	switch message.Role {
	case models.RoleUser:
		if message.Content == "" {
			return nil, nil
		}
		msg := anthropic.NewUserMessage(anthropic.NewTextBlock(message.Content))
		return &msg, nil

	case models.RoleAssistant:
		return convertAssistantMessage(message)

	case models.RoleTool:
		// Tool results travel as user messages with a tool_result block.
		if message.ToolResult == nil {
			return nil, fmt.Errorf("tool message without result")
		}
		msg := anthropic.MessageParam{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: message.ToolResult.CallID,
						Content: []anthropic.ToolResultBlockParamContentUnion{
							{
								OfText: &anthropic.TextBlockParam{
									Text: message.ToolResult.Content,
								},
							},
						},
					},
				},
			},
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message role: %s", message.Role)
	}
}

func convertAssistantMessage(message models.Message) (*anthropic.MessageParam, error) {
	var blocks []anthropic.ContentBlockParamUnion

	if message.Content != "" {
		blocks = append(blocks, anthropic.ContentBlockParamUnion{
			OfText: &anthropic.TextBlockParam{Text: message.Content},
		})
	}

	for _, call := range message.ToolCalls {
		input := make(map[string]any, len(call.Arguments))
		for k, v := range call.Arguments {
			input[k] = v
		}
		blocks = append(blocks, anthropic.ContentBlockParamUnion{
			OfToolUse: &anthropic.ToolUseBlockParam{
				ID:    call.ID,
				Name:  call.Name,
				Input: input,
			},
		})
	}

	if len(blocks) == 0 {
		return nil, nil
	}

	msg := anthropic.MessageParam{
		Role:    anthropic.MessageParamRoleAssistant,
		Content: blocks,
	}
	return &msg, nil
}

// transformTools converts tool definitions to Anthropic tool params.
func transformTools(tools []models.ToolDefinition) []anthropic.ToolUnionParam {
	var result []anthropic.ToolUnionParam

	for _, tool := range tools {
		if tool.Name == "" {
			continue
		}

		properties := map[string]any{}
		var required []string
		if props, ok := tool.Parameters["properties"].(map[string]any); ok {
			properties = props
		}
		if req, ok := tool.Parameters["required"].([]string); ok {
			required = req
		} else if reqAny, ok := tool.Parameters["required"].([]any); ok {
			for _, r := range reqAny {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}

		result = append(result, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: properties,
					Required:   required,
				},
			},
		})
	}

	return result
}

// transformResponse converts an Anthropic Message into the provider-neutral
// response format.
func transformResponse(message *anthropic.Message) (*models.Response, error) {
	if message == nil {
		return nil, fmt.Errorf("message is nil")
	}

	var outputs []models.Output

	for _, block := range message.Content {
		switch blockType := block.AsAny().(type) {
		case anthropic.TextBlock:
			if blockType.Text != "" {
				outputs = append(outputs, models.Output{Text: blockType.Text})
			}

		case anthropic.ToolUseBlock:
			args, err := decodeToolInput(blockType.Input)
			if err != nil {
				return nil, err
			}
			outputs = append(outputs, models.Output{
				ToolCall: &models.ToolCall{
					ID:        blockType.ID,
					Name:      blockType.Name,
					Arguments: args,
				},
			})

		default:
			// Other block types (thinking, server tool use) are ignored.
		}
	}

	return &models.Response{Outputs: outputs}, nil
}

// decodeToolInput normalizes a tool use input payload to a plain map.
func decodeToolInput(input any) (map[string]any, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool input: %w", err)
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool input: %w", err)
	}

	return args, nil
}
