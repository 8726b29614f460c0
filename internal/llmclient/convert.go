package llmclient

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
)

// toSDKMessages converts the package's Message slice to the Anthropic SDK's
// wire format, folding ToolUse/ToolResult turns into the appropriate
// content-block unions.
func toSDKMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch {
		case m.ToolResult != nil:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolResult.ToolUseID, m.ToolResult.Content, m.ToolResult.IsError),
			))
		case len(m.ToolUses) > 0:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.ToolUses)+1)
			if m.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Text))
			}
			for _, tu := range m.ToolUses {
				blocks = append(blocks, anthropic.NewToolUseBlock(tu.ID, tu.Input, tu.Name))
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case m.Role == "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		}
	}
	return out
}

// toSDKTools converts the package's Tool definitions to the SDK's tool-use
// schema.
func toSDKTools(tools []Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var required []string
		if r, ok := t.InputSchema["required"].([]string); ok {
			required = r
		}
		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.InputSchema["properties"],
				Required:   required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

// fromSDKMessage flattens an Anthropic response message into the package's
// Response shape, collecting every text block and every tool-use request.
func fromSDKMessage(msg *anthropic.Message) *Response {
	resp := &Response{StopReason: string(msg.StopReason)}
	if msg.Usage.InputTokens != 0 || msg.Usage.OutputTokens != 0 {
		resp.PromptTokens = int(msg.Usage.InputTokens)
		resp.CompletionTokens = int(msg.Usage.OutputTokens)
	}

	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += variant.Text
		case anthropic.ToolUseBlock:
			input := map[string]interface{}{}
			_ = json.Unmarshal(variant.Input, &input) // best-effort; tool executors validate their own inputs
			resp.ToolUses = append(resp.ToolUses, ToolUse{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: input,
			})
		}
	}

	return resp
}
