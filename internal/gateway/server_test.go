package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volumeee/zenclaw-sub000/internal/bus"
	"github.com/volumeee/zenclaw-sub000/internal/config"
	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/metrics"
)

const testToken = "test-token-123"

type fixedMetrics struct{ snap metrics.Snapshot }

func (f fixedMetrics) Snapshot() metrics.Snapshot { return f.snap }

type harness struct {
	srv *Server
	ts  *httptest.Server
	bus *bus.Bus
}

func testServer(t *testing.T, opts ...ServerOption) *harness {
	t.Helper()
	cfg := config.Defaults().Gateway
	cfg.Auth.Token = testToken

	b := bus.New(bus.Config{}, testLog())
	t.Cleanup(b.Close)

	srv := New(cfg, b, testLog(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	events, replies := srv.subscribe()
	go srv.forward(ctx, events, replies)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{srv: srv, ts: ts, bus: b}
}

func (h *harness) wsURL() string {
	return "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws"
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func sendRequest(t *testing.T, conn *websocket.Conn, id, method string, params any) {
	t.Helper()
	req, err := NewRequest(id, method, params)
	require.NoError(t, err)
	require.NoError(t, writeFrame(conn, req))
}

func connectParams(token string) ConnectParams {
	return ConnectParams{
		MinProtocol: 1,
		MaxProtocol: 1,
		Client:      ClientInfo{ID: "test-client", Version: "1.0.0", Platform: "linux"},
		Auth:        &ConnectAuth{Token: token},
	}
}

// connect dials and completes the handshake, returning the conn and its hello.
func (h *harness) connect(t *testing.T) (*websocket.Conn, HelloOK) {
	t.Helper()
	before := h.srv.Clients()

	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	challenge := readFrame(t, conn)
	require.Equal(t, EventChallenge, challenge.Event)

	sendRequest(t, conn, "auth-req", "connect", connectParams(testToken))

	resp := readFrame(t, conn)
	require.NotNil(t, resp.OK)
	require.True(t, *resp.OK, "handshake should succeed")

	var hello HelloOK
	require.NoError(t, json.Unmarshal(resp.Payload, &hello))

	require.Eventually(t, func() bool { return h.srv.Clients() == before+1 }, time.Second, 5*time.Millisecond)
	return conn, hello
}

func getJSON(t *testing.T, url, bearer string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	h := testServer(t)

	var public HealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, h.ts.URL+"/health", "", &public))
	assert.Equal(t, "ok", public.Status)
	assert.Empty(t, public.Version, "anonymous callers only see status")

	var detailed HealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, h.ts.URL+"/health", testToken, &detailed))
	assert.NotEmpty(t, detailed.Version)
}

func TestMetricsEndpoint(t *testing.T) {
	h := testServer(t, WithMetrics(fixedMetrics{metrics.Snapshot{RequestsTotal: 3, ToolCalls: 5}}))

	var denied map[string]string
	assert.Equal(t, http.StatusUnauthorized, getJSON(t, h.ts.URL+"/metrics", "wrong", &denied))
	assert.Equal(t, "token_mismatch", denied["error"])

	var snap metrics.Snapshot
	assert.Equal(t, http.StatusOK, getJSON(t, h.ts.URL+"/metrics", testToken, &snap))
	assert.Equal(t, int64(3), snap.RequestsTotal)
	assert.Equal(t, int64(5), snap.ToolCalls)
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	h := testServer(t)
	assert.Equal(t, http.StatusNotFound, getJSON(t, h.ts.URL+"/metrics", testToken, nil))
	assert.NotContains(t, h.srv.Methods(), "metrics")
}

func TestNotFoundEndpoint(t *testing.T) {
	h := testServer(t)
	assert.Equal(t, http.StatusNotFound, getJSON(t, h.ts.URL+"/nonexistent", "", nil))
}

func TestWebSocketHandshakeSuccess(t *testing.T) {
	h := testServer(t, WithMetrics(fixedMetrics{}))
	_, hello := h.connect(t)

	assert.Equal(t, ProtocolVersion, hello.Protocol)
	assert.NotEmpty(t, hello.Server.ConnID)
	assert.Equal(t, []string{"chat.send", "health", "metrics"}, hello.Features.Methods)
	assert.Contains(t, hello.Features.Events, EventSystem)
	assert.Equal(t, maxPayload, hello.Policy.MaxPayload)
}

func TestWebSocketHandshakeWrongToken(t *testing.T) {
	h := testServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL(), nil)
	require.NoError(t, err)
	defer conn.Close()

	readFrame(t, conn)
	sendRequest(t, conn, "req-1", "connect", connectParams("wrong-token"))

	resp := readFrame(t, conn)
	assert.Equal(t, FrameTypeResponse, resp.Type)
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "unauthorized", resp.Error.Code)
	assert.Equal(t, 0, h.srv.Clients())
}

func TestWebSocketHandshakeRequiresConnect(t *testing.T) {
	h := testServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL(), nil)
	require.NoError(t, err)
	defer conn.Close()

	readFrame(t, conn)
	sendRequest(t, conn, "req-1", "health", nil)

	resp := readFrame(t, conn)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "protocol_error", resp.Error.Code)
}

func TestWebSocketHandshakeNewerProtocol(t *testing.T) {
	h := testServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL(), nil)
	require.NoError(t, err)
	defer conn.Close()

	readFrame(t, conn)
	params := connectParams(testToken)
	params.MinProtocol, params.MaxProtocol = ProtocolVersion+1, ProtocolVersion+2
	sendRequest(t, conn, "req-1", "connect", params)

	resp := readFrame(t, conn)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeProtocol, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "unsupported")
}

func TestWebSocketHandshake_RateLimitsAuthFailures(t *testing.T) {
	h := testServer(t)

	for range authRateMaxFails {
		conn, _, err := websocket.DefaultDialer.Dial(h.wsURL(), nil)
		require.NoError(t, err)
		readFrame(t, conn)
		sendRequest(t, conn, "req", "connect", connectParams("wrong-token"))
		resp := readFrame(t, conn)
		require.NotNil(t, resp.Error)
		conn.Close()
	}

	require.Eventually(t, func() bool {
		_, resp, err := websocket.DefaultDialer.Dial(h.wsURL(), nil)
		return err != nil && resp != nil && resp.StatusCode == http.StatusTooManyRequests
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketRPCHealth(t *testing.T) {
	h := testServer(t)
	conn, _ := h.connect(t)

	sendRequest(t, conn, "req-2", "health", nil)

	resp := readFrame(t, conn)
	assert.Equal(t, "req-2", resp.ID)
	require.NotNil(t, resp.OK)
	assert.True(t, *resp.OK)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Payload, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Clients)
}

func TestWebSocketRPCMetrics(t *testing.T) {
	h := testServer(t, WithMetrics(fixedMetrics{metrics.Snapshot{Retries: 2}}))
	conn, _ := h.connect(t)

	sendRequest(t, conn, "req-m", "metrics", nil)

	resp := readFrame(t, conn)
	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(resp.Payload, &snap))
	assert.Equal(t, int64(2), snap.Retries)
}

func TestWebSocketRPCUnknownMethod(t *testing.T) {
	h := testServer(t)
	conn, _ := h.connect(t)

	sendRequest(t, conn, "req-6", "nonexistent.method", nil)

	resp := readFrame(t, conn)
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "method_not_found", resp.Error.Code)
}

func TestChatSendQueuesAndRoutesReply(t *testing.T) {
	h := testServer(t)
	conn, hello := h.connect(t)

	sendRequest(t, conn, "msg-1", "chat.send", chatSendParams{Message: "what is 2+2?"})

	resp := readFrame(t, conn)
	require.NotNil(t, resp.OK)
	require.True(t, *resp.OK)
	var ack ChatSendResult
	require.NoError(t, json.Unmarshal(resp.Payload, &ack))
	assert.True(t, ack.Queued)
	assert.Equal(t, "gateway:"+hello.Server.ConnID, ack.SessionKey)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	in, err := h.bus.ConsumeInbound(ctx)
	require.NoError(t, err)
	assert.Equal(t, Channel, in.Channel)
	assert.Equal(t, hello.Server.ConnID, in.ChatID)
	assert.Equal(t, "what is 2+2?", in.Content)
	assert.Equal(t, "msg-1", in.Metadata["messageId"])

	h.bus.PublishOutbound(domain.OutboundMessage{Channel: Channel, ChatID: in.ChatID, Content: "4", ReplyTo: "msg-1"})

	ev := readFrame(t, conn)
	assert.Equal(t, EventChatReply, ev.Event)
	var reply domain.OutboundMessage
	require.NoError(t, json.Unmarshal(ev.Payload, &reply))
	assert.Equal(t, "4", reply.Content)
	assert.Equal(t, "msg-1", reply.ReplyTo)
}

func TestChatSendEmptyMessage(t *testing.T) {
	h := testServer(t)
	conn, _ := h.connect(t)

	sendRequest(t, conn, "req-e", "chat.send", chatSendParams{Message: "  "})

	resp := readFrame(t, conn)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_params", resp.Error.Code)
}

func TestChatSendForeignChat(t *testing.T) {
	h := testServer(t)
	first, _ := h.connect(t)
	second, _ := h.connect(t)

	sendRequest(t, first, "a", "chat.send", chatSendParams{Message: "hi", ChatID: "room"})
	require.True(t, *readFrame(t, first).OK)

	sendRequest(t, second, "b", "chat.send", chatSendParams{Message: "hi", ChatID: "room"})
	resp := readFrame(t, second)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "forbidden", resp.Error.Code)
}

func TestChatOwnershipReleasedOnDisconnect(t *testing.T) {
	h := testServer(t)
	conn, _ := h.connect(t)

	sendRequest(t, conn, "a", "chat.send", chatSendParams{Message: "hi", ChatID: "room"})
	readFrame(t, conn)
	require.Equal(t, uintptr(1), h.srv.chats.Len())

	conn.Close()
	assert.Eventually(t, func() bool { return h.srv.chats.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSystemEventsBroadcast(t *testing.T) {
	h := testServer(t)
	a, _ := h.connect(t)
	b, _ := h.connect(t)

	h.bus.Publish(domain.NewEvent("cli:local", domain.EventToolUse, map[string]any{"capability": "shell"}))

	for _, conn := range []*websocket.Conn{a, b} {
		f := readFrame(t, conn)
		assert.Equal(t, EventSystem, f.Event)
		assert.Positive(t, f.Seq)

		var ev domain.SystemEvent
		require.NoError(t, json.Unmarshal(f.Payload, &ev))
		assert.Equal(t, domain.EventToolUse, ev.EventType)
		assert.Equal(t, "cli:local", ev.RunID)
	}
}

func TestOtherChannelRepliesBroadcast(t *testing.T) {
	h := testServer(t)
	conn, _ := h.connect(t)

	h.bus.PublishOutbound(domain.OutboundMessage{Channel: "cli", ChatID: "local", Content: "done"})

	f := readFrame(t, conn)
	assert.Equal(t, EventOutbound, f.Event)
}

func TestForwardStopsWhenBusCloses(t *testing.T) {
	h := testServer(t)
	events, replies := h.srv.subscribe()

	done := make(chan struct{})
	go func() {
		h.srv.forward(context.Background(), events, replies)
		close(done)
	}()

	h.bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward did not return after bus close")
	}
}

func TestServerStart(t *testing.T) {
	cfg := config.Defaults().Gateway
	cfg.Port = 0 // let the OS pick a port
	cfg.Auth.Token = "test-token"

	b := bus.New(bus.Config{}, testLog())
	defer b.Close()
	srv := New(cfg, b, testLog())

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, time.Second, 5*time.Millisecond)

	var health HealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, "http://"+srv.Addr()+"/health", "", &health))

	cancel()
	assert.NoError(t, <-errCh)
}
