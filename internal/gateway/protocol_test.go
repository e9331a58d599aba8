package gateway

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	f, err := NewRequest("req-1", "chat.send", chatSendParams{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, FrameTypeRequest, f.Type)
	assert.Equal(t, "chat.send", f.Method)
	assert.JSONEq(t, `{"message":"hi"}`, string(f.Params))
}

func TestNewResponse(t *testing.T) {
	f, err := NewResponse("req-1", map[string]any{"status": "ok"})
	require.NoError(t, err)
	assert.Equal(t, FrameTypeResponse, f.Type)
	require.NotNil(t, f.OK)
	assert.True(t, *f.OK)
	assert.Nil(t, f.Error)
}

func TestNewErrorResponse(t *testing.T) {
	f := NewErrorResponse("req-1", ErrorShape{Code: "unavailable", Message: "queue full", Retryable: true, RetryAfter: 1000})
	require.NotNil(t, f.OK)
	assert.False(t, *f.OK)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	raw := string(data)
	assert.Contains(t, raw, `"ok":false`)
	assert.Contains(t, raw, `"retryAfterMs":1000`)
	assert.NotContains(t, raw, `"payload"`)
}

func TestNewEvent(t *testing.T) {
	f, err := NewEvent(EventSystem, map[string]any{"eventType": "agent_think"}, 7)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeEvent, f.Type)
	assert.Equal(t, EventSystem, f.Event)
	assert.Equal(t, int64(7), f.Seq)

	zero, err := NewEvent(EventChallenge, nil, 0)
	require.NoError(t, err)
	data, err := json.Marshal(zero)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"seq"`, "zero seq is omitted")
}

func TestNewResponse_NilPayloadOmitted(t *testing.T) {
	f, err := NewResponse("req-2", nil)
	require.NoError(t, err)
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"res","id":"req-2","ok":true}`, string(data))
}

func TestFrame_DecodeParams(t *testing.T) {
	f, err := NewRequest("req-3", "chat.send", map[string]any{"message": "hello", "chatId": "c1"})
	require.NoError(t, err)

	var p chatSendParams
	require.NoError(t, f.DecodeParams(&p))
	assert.Equal(t, "hello", p.Message)
	assert.Equal(t, "c1", p.ChatID)

	empty := Frame{Type: FrameTypeRequest, Method: "health"}
	p = chatSendParams{Message: "kept"}
	require.NoError(t, empty.DecodeParams(&p))
	assert.Equal(t, "kept", p.Message)

	bad := Frame{Type: FrameTypeRequest, Method: "chat.send", Params: []byte(`{"message":`)}
	err = bad.DecodeParams(&p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat.send params")
}

func TestErrorShape(t *testing.T) {
	e := ErrorShape{Code: CodeForbidden, Message: "chat belongs to another connection"}
	assert.EqualError(t, e, "forbidden: chat belongs to another connection")

	data, err := json.Marshal(ErrorShape{Code: "x", Message: "y"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"x","message":"y"}`, string(data))
}
