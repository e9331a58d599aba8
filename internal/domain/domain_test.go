package domain

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"system", RoleSystem},
		{"user", RoleUser},
		{"assistant", RoleAssistant},
		{"tool", RoleTool},
		{"TOOL", RoleTool},
		{"", RoleUser},
		{"moderator", RoleUser},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRole(tt.in))
		})
	}
}

func TestMessageConstructors(t *testing.T) {
	u := UserMessage("look at this", "photo.png")
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, []string{"photo.png"}, u.Media)

	calls := []ToolInvocationRequest{{ID: "c1", Name: "shell", Arguments: `{"command":"ls"}`}}
	a := AssistantToolCalls("", calls)
	assert.True(t, a.HasToolCalls())
	assert.Equal(t, RoleAssistant, a.Role)

	r := ToolResult("c1", "shell", "file.txt")
	assert.Equal(t, RoleTool, r.Role)
	assert.Equal(t, "c1", r.ToolCallID)
	assert.Equal(t, "shell", r.Name)
	assert.False(t, r.HasToolCalls())

	assert.Equal(t, RoleSystem, SystemMessage("x").Role)
	assert.False(t, AssistantMessage("4").HasToolCalls())
}

func TestMessageJSON_OmitsEmpty(t *testing.T) {
	data, err := json.Marshal(UserMessage("hi"))
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"role":"user"`)
	assert.NotContains(t, raw, "toolCalls")
	assert.NotContains(t, raw, "toolCallId")
	assert.NotContains(t, raw, "media")
}

func TestConversationResponse_HasToolCalls(t *testing.T) {
	var nilResp *ConversationResponse
	assert.False(t, nilResp.HasToolCalls())
	assert.False(t, (&ConversationResponse{Content: "done"}).HasToolCalls())
	assert.True(t, (&ConversationResponse{ToolCalls: []ToolInvocationRequest{{ID: "1"}}}).HasToolCalls())
}

func TestEventTypes(t *testing.T) {
	assert.Len(t, AllEventTypes, 7)
	for _, et := range AllEventTypes {
		assert.True(t, et.Valid(), et)
	}
	assert.False(t, EventType("tool_error").Valid())
	assert.Equal(t, EventType("llm_retry"), EventLLMRetry)
	assert.Equal(t, EventType("memory_truncate"), EventMemoryTruncate)
}

func TestSystemEventJSON(t *testing.T) {
	ev := NewEvent("cli:local", EventToolResult, map[string]any{"capability": "shell", "resultLength": 12})

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"runId":"cli:local"`)
	assert.Contains(t, raw, `"eventType":"tool_result"`)
	assert.Contains(t, raw, `"resultLength":12`)
}

func TestInboundSessionKey(t *testing.T) {
	msg := InboundMessage{Channel: "telegram", ChatID: "42", Content: "hi", Timestamp: time.Now()}
	assert.Equal(t, "telegram:42", msg.SessionKey())
	assert.Equal(t, "cli:local", SessionKey("cli", "local"))
}
