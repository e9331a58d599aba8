package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volumeee/zenclaw-sub000/internal/agent"
	"github.com/volumeee/zenclaw-sub000/internal/bus"
	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
	"github.com/volumeee/zenclaw-sub000/internal/provider"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

// fakeAgent answers with a fixed prefix and records the session keys it saw.
type fakeAgent struct {
	mu       sync.Mutex
	prefix   string
	err      error
	delay    time.Duration
	sessions []string
	inputs   []string
}

func (f *fakeAgent) Process(_ context.Context, msg, sessionKey string, _ ...agent.ProcessOption) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, sessionKey)
	f.inputs = append(f.inputs, msg)
	if f.err != nil {
		return "", f.err
	}
	return f.prefix + msg, nil
}

func inbound(channel, chatID, content string) domain.InboundMessage {
	return domain.InboundMessage{
		Channel:   channel,
		SenderID:  "user-1",
		ChatID:    chatID,
		Content:   content,
		Metadata:  map[string]string{"messageId": "m-" + content},
		Timestamp: time.Now(),
	}
}

func TestAgents_RouteByKeywordScore(t *testing.T) {
	agents := NewAgents()
	agents.Register(Slot{Name: "general", Agent: &fakeAgent{}})
	agents.Register(Slot{Name: "coder", Keywords: []string{"code", "bug", "Go"}, Agent: &fakeAgent{}})
	agents.Register(Slot{Name: "writer", Keywords: []string{"essay", "poem"}, Agent: &fakeAgent{}})

	s, err := agents.Route("Fix this BUG in my go code")
	require.NoError(t, err)
	assert.Equal(t, "coder", s.Name)

	s, err = agents.Route("write a poem")
	require.NoError(t, err)
	assert.Equal(t, "writer", s.Name)

	s, err = agents.Route("hello there")
	require.NoError(t, err)
	assert.Equal(t, "general", s.Name, "no match falls back to the first agent")

	agents.SetDefault("writer")
	s, err = agents.Route("hello there")
	require.NoError(t, err)
	assert.Equal(t, "writer", s.Name)
}

func TestAgents_TieKeepsFirstRegistered(t *testing.T) {
	agents := NewAgents()
	agents.Register(Slot{Name: "a", Keywords: []string{"deploy"}, Agent: &fakeAgent{}})
	agents.Register(Slot{Name: "b", Keywords: []string{"deploy"}, Agent: &fakeAgent{}})

	s, err := agents.Route("please deploy")
	require.NoError(t, err)
	assert.Equal(t, "a", s.Name)
}

func TestAgents_Empty(t *testing.T) {
	_, err := NewAgents().Route("anything")
	assert.ErrorIs(t, err, ErrNoAgents)
}

func TestAgents_GetAndList(t *testing.T) {
	agents := NewAgents()
	agents.Register(Slot{Name: "a", Description: "first", Agent: &fakeAgent{}})
	agents.Register(Slot{Name: "b", Description: "second", Agent: &fakeAgent{}})

	s, ok := agents.Get("b")
	require.True(t, ok)
	assert.Equal(t, "second", s.Description)
	_, ok = agents.Get("c")
	assert.False(t, ok)

	list := agents.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, 2, agents.Len())
}

func TestRouter_HandleInbound(t *testing.T) {
	b := bus.New(bus.Config{}, testLogger())
	out := b.SubscribeOutbound()
	fa := &fakeAgent{prefix: "echo: "}
	agents := NewAgents()
	agents.Register(Slot{Name: "main", Agent: fa})
	r := NewRouter(agents, b, Config{}, testLogger())

	reply, err := r.HandleInbound(context.Background(), inbound("telegram", "42", "hi"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutboundMessage{Channel: "telegram", ChatID: "42", Content: "echo: hi", ReplyTo: "m-hi"}, reply)
	assert.Equal(t, []string{"telegram:42"}, fa.sessions)

	select {
	case got := <-out.C():
		assert.Equal(t, reply, got)
	case <-time.After(time.Second):
		t.Fatal("no outbound message")
	}
}

func TestRouter_HandleInbound_AgentError(t *testing.T) {
	b := bus.New(bus.Config{}, testLogger())
	out := b.SubscribeOutbound()
	agents := NewAgents()
	agents.Register(Slot{Name: "main", Agent: &fakeAgent{err: errors.New("provider down")}})
	r := NewRouter(agents, b, Config{}, testLogger())

	reply, err := r.HandleInbound(context.Background(), inbound("cli", "local", "hi"))
	require.Error(t, err)
	assert.Contains(t, reply.Content, "provider down")

	select {
	case got := <-out.C():
		assert.Contains(t, got.Content, "provider down")
	case <-time.After(time.Second):
		t.Fatal("failure was not reported to the sender")
	}
}

func TestRouter_HandleInbound_NoAgents(t *testing.T) {
	b := bus.New(bus.Config{}, testLogger())
	r := NewRouter(NewAgents(), b, Config{}, testLogger())

	_, err := r.HandleInbound(context.Background(), inbound("cli", "local", "hi"))
	assert.ErrorIs(t, err, ErrNoAgents)
}

func TestRouter_RunDrainsQueueUntilClosed(t *testing.T) {
	b := bus.New(bus.Config{}, testLogger())
	out := b.SubscribeOutbound()
	fa := &fakeAgent{prefix: "re: "}
	agents := NewAgents()
	agents.Register(Slot{Name: "main", Agent: fa})
	r := NewRouter(agents, b, Config{Concurrency: 2}, testLogger())

	ctx := context.Background()
	for _, c := range []string{"one", "two", "three"} {
		require.NoError(t, b.PublishInbound(ctx, inbound("cli", "local", c)))
	}
	b.CloseInbound()

	require.NoError(t, r.Run(ctx))

	var got []string
	for range 3 {
		select {
		case msg := <-out.C():
			got = append(got, msg.Content)
		case <-time.After(time.Second):
			t.Fatal("missing outbound message")
		}
	}
	assert.Equal(t, []string{"re: one", "re: two", "re: three"}, got, "one session is processed in order")
}

func TestRouter_RunStopsOnContext(t *testing.T) {
	b := bus.New(bus.Config{}, testLogger())
	agents := NewAgents()
	agents.Register(Slot{Name: "main", Agent: &fakeAgent{}})
	r := NewRouter(agents, b, Config{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("router did not stop")
	}
}

func TestRouter_SessionsRunInParallel(t *testing.T) {
	b := bus.New(bus.Config{}, testLogger())
	fa := &fakeAgent{delay: 100 * time.Millisecond}
	agents := NewAgents()
	agents.Register(Slot{Name: "main", Agent: fa})
	r := NewRouter(agents, b, Config{Concurrency: 4}, testLogger())

	ctx := context.Background()
	for _, chat := range []string{"a", "b", "c", "d"} {
		require.NoError(t, b.PublishInbound(ctx, inbound("cli", chat, "x")))
	}
	b.CloseInbound()

	start := time.Now()
	require.NoError(t, r.Run(ctx))
	assert.Less(t, time.Since(start), 350*time.Millisecond)
	assert.Len(t, fa.sessions, 4)
}

func TestRouter_WithRealAgent(t *testing.T) {
	b := bus.New(bus.Config{}, testLogger())
	events := b.SubscribeSystem()
	p := &provider.Mock{ChatFunc: func(context.Context, domain.ConversationRequest) (*domain.ConversationResponse, error) {
		return &domain.ConversationResponse{Content: "Hello from the agent!"}, nil
	}}
	a := agent.New(p, nil, nopStore{}, agent.Config{}, testLogger())
	agents := NewAgents()
	agents.Register(Slot{Name: "main", Agent: a})
	r := NewRouter(agents, b, Config{}, testLogger())

	reply, err := r.HandleInbound(context.Background(), inbound("discord", "chan", "hey"))
	require.NoError(t, err)
	assert.Equal(t, "Hello from the agent!", reply.Content)

	select {
	case ev := <-events.C():
		assert.Equal(t, domain.EventAgentThink, ev.EventType)
		assert.Equal(t, "discord:chan", ev.RunID)
	case <-time.After(time.Second):
		t.Fatal("agent events are published on the bus")
	}
}

func TestSessionKey_PerChat(t *testing.T) {
	msg := inbound("telegram", "42", "hi")
	assert.Equal(t, "telegram:42", ResolveSessionKey(msg, ScopePerChat))
	assert.Equal(t, "telegram:42", ResolveSessionKey(msg, ""))
}

func TestSessionKey_PerSender(t *testing.T) {
	msg := inbound("telegram", "42", "hi")
	assert.Equal(t, "telegram:42:user-1", ResolveSessionKey(msg, ScopePerSender))

	msg.SenderID = ""
	assert.Equal(t, "telegram:42", ResolveSessionKey(msg, ScopePerSender))
}

type nopStore struct{}

func (nopStore) GetHistory(context.Context, string, int) ([]domain.Message, error) { return nil, nil }
func (nopStore) SaveTurn(context.Context, string, string, string) error            { return nil }
func (nopStore) SearchKnowledge(context.Context, string, int) (string, error)      { return "", nil }
