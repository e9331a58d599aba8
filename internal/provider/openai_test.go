package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/volumeee/zenclaw-sub000/internal/capability"
	"github.com/volumeee/zenclaw-sub000/internal/domain"
)

type captured struct {
	mu   sync.Mutex
	path string
	body string
}

func (c *captured) get() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path, c.body
}

func fakeServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.path, c.body = r.URL.Path, string(body)
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

const textReply = `{
  "id": "resp_1", "object": "response", "created_at": 1700000000,
  "model": "gpt-4o-mini-2024", "status": "completed",
  "output": [
    {"type": "message", "id": "msg_1", "role": "assistant", "status": "completed",
     "content": [{"type": "output_text", "text": "4", "annotations": []}]}
  ],
  "usage": {"input_tokens": 10, "output_tokens": 2, "total_tokens": 12}
}`

const toolReply = `{
  "id": "resp_2", "object": "response", "created_at": 1700000000,
  "model": "gpt-4o-mini", "status": "completed",
  "output": [
    {"type": "function_call", "id": "fc_1", "call_id": "call_a", "name": "read_file", "arguments": "{\"path\":\"a.txt\"}", "status": "completed"},
    {"type": "function_call", "id": "fc_2", "call_id": "call_b", "name": "list_dir", "arguments": "{}", "status": "completed"}
  ],
  "usage": {"input_tokens": 20, "output_tokens": 8, "total_tokens": 28}
}`

func newTestOpenAI(t *testing.T, url string) *OpenAI {
	t.Helper()
	p, err := NewOpenAI(Backend{Name: "openai", Model: "gpt-4o-mini", APIKey: "test", BaseURL: url}, silentLog())
	require.NoError(t, err)
	return p
}

func TestOpenAI_TextAnswer(t *testing.T) {
	srv, c := fakeServer(t, http.StatusOK, textReply)
	p := newTestOpenAI(t, srv.URL)

	resp, err := p.Chat(context.Background(), domain.ConversationRequest{
		Messages: []domain.Message{
			domain.SystemMessage("be brief"),
			domain.UserMessage("What is 2+2?"),
		},
		MaxTokens:   4096,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "4", resp.Content)
	assert.False(t, resp.HasToolCalls())
	assert.Equal(t, "gpt-4o-mini-2024", resp.Model)
	assert.Equal(t, domain.Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12}, resp.Usage)
	assert.Equal(t, "stop", resp.FinishReason)

	path, body := c.get()
	assert.Equal(t, "/responses", path)
	assert.Equal(t, "gpt-4o-mini", gjson.Get(body, "model").String())
	assert.Equal(t, int64(4096), gjson.Get(body, "max_output_tokens").Int())
	assert.InDelta(t, 0.7, gjson.Get(body, "temperature").Float(), 1e-9)
	assert.Equal(t, "system", gjson.Get(body, "input.0.role").String())
	assert.Equal(t, "What is 2+2?", gjson.Get(body, "input.1.content").String())
}

func TestOpenAI_ToolCallsAndHistory(t *testing.T) {
	srv, c := fakeServer(t, http.StatusOK, toolReply)
	p := newTestOpenAI(t, srv.URL)

	resp, err := p.Chat(context.Background(), domain.ConversationRequest{
		Model: "gpt-4o",
		Messages: []domain.Message{
			domain.UserMessage("read it"),
			domain.AssistantToolCalls("", []domain.ToolInvocationRequest{{ID: "call_0", Name: "shell", Arguments: `{"command":"ls"}`}}),
			domain.ToolResult("call_0", "shell", "a.txt"),
		},
		Capabilities: []domain.CapabilityDescriptor{{
			Name:        "read_file",
			Description: "Read a file",
			ParameterSchema: capability.ObjectSchema(
				capability.Property{Name: "path", Type: "string", Required: true},
			),
		}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, domain.ToolInvocationRequest{ID: "call_a", Name: "read_file", Arguments: `{"path":"a.txt"}`}, resp.ToolCalls[0])
	assert.Equal(t, "call_b", resp.ToolCalls[1].ID)
	assert.Equal(t, "tool_calls", resp.FinishReason)

	_, body := c.get()
	assert.Equal(t, "gpt-4o", gjson.Get(body, "model").String())
	assert.Equal(t, "function_call", gjson.Get(body, "input.1.type").String())
	assert.Equal(t, "call_0", gjson.Get(body, "input.1.call_id").String())
	assert.Equal(t, "function_call_output", gjson.Get(body, "input.2.type").String())
	assert.Equal(t, "a.txt", gjson.Get(body, "input.2.output").String())
	assert.Equal(t, "read_file", gjson.Get(body, "tools.0.name").String())
	assert.Equal(t, "path", gjson.Get(body, "tools.0.parameters.required.0").String())
}

func TestOpenAI_RateLimitIsClassified(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	p := newTestOpenAI(t, srv.URL)

	_, err := p.Chat(context.Background(), domain.ConversationRequest{Messages: []domain.Message{domain.UserMessage("hi")}})
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 429, pe.Code)
	assert.True(t, IsRateLimit(err))
}

func TestParseOpenAIResponse_Incomplete(t *testing.T) {
	out := parseOpenAIResponse(`{"status":"incomplete","incomplete_details":{"reason":"max_output_tokens"},
		"output":[{"type":"message","content":[{"type":"output_text","text":"par"},{"type":"output_text","text":"tial"}]}],
		"usage":{"input_tokens":3,"output_tokens":4}}`)
	assert.Equal(t, "partial", out.Content)
	assert.Equal(t, "max_output_tokens", out.FinishReason)
	assert.Equal(t, 7, out.Usage.TotalTokens)
}

func TestWithMediaNote(t *testing.T) {
	assert.Equal(t, "hi", withMediaNote(domain.UserMessage("hi")))
	assert.Equal(t, "hi\n\n[Attached media: a.png, b.png]", withMediaNote(domain.UserMessage("hi", "a.png", "b.png")))
}
