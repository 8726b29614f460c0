package llmclient

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSDKMessages_PlainUserTurn(t *testing.T) {
	msgs := toSDKMessages([]Message{{Role: "user", Text: "what's the weather in harare?"}})
	require.Len(t, msgs, 1)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
}

func TestToSDKMessages_ToolResultBecomesUserTurn(t *testing.T) {
	msgs := toSDKMessages([]Message{{
		ToolResult: &ToolResult{ToolUseID: "tool_1", Content: "24C, partly cloudy"},
	}})
	require.Len(t, msgs, 1)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
}

func TestToSDKMessages_ToolUseBecomesAssistantTurn(t *testing.T) {
	msgs := toSDKMessages([]Message{{
		Role: "assistant",
		ToolUses: []ToolUse{
			{ID: "tool_1", Name: "get_weather", Input: map[string]interface{}{"location": "harare"}},
		},
	}})
	require.Len(t, msgs, 1)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[0].Role)
}

func TestToSDKTools(t *testing.T) {
	tools := toSDKTools([]Tool{{
		Name:        "get_weather",
		Description: "fetch current weather",
		InputSchema: map[string]interface{}{
			"properties": map[string]interface{}{
				"location": map[string]interface{}{"type": "string"},
			},
		},
	}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "get_weather", tools[0].OfTool.Name)
}

func TestFromSDKMessage_TextAndToolUse(t *testing.T) {
	raw := `{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-sonnet-20241022",
		"stop_reason": "tool_use",
		"content": [
			{"type": "text", "text": "Let me check that for you."},
			{"type": "tool_use", "id": "toolu_01", "name": "get_weather", "input": {"location": "harare"}}
		],
		"usage": {"input_tokens": 120, "output_tokens": 35}
	}`

	var msg anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	resp := fromSDKMessage(&msg)
	assert.Equal(t, "Let me check that for you.", resp.Text)
	assert.Equal(t, "tool_use", resp.StopReason)
	assert.Equal(t, 120, resp.PromptTokens)
	assert.Equal(t, 35, resp.CompletionTokens)
	require.Len(t, resp.ToolUses, 1)
	assert.Equal(t, "get_weather", resp.ToolUses[0].Name)
	assert.Equal(t, "harare", resp.ToolUses[0].Input["location"])
}
