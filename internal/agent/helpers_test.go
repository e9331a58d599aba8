package agent

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/volumeee/zenclaw-sub000/internal/capability"
	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
	"github.com/volumeee/zenclaw-sub000/internal/provider"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// fakeStore records every call made by the agent.
type fakeStore struct {
	mu           sync.Mutex
	history      []domain.Message
	knowledge    string
	historyErr   error
	knowledgeErr error
	saveErr      error

	historyLimit int
	ragLimit     int
	ragQueries   []string
	turns        [][3]string
}

func (s *fakeStore) GetHistory(_ context.Context, _ string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyLimit = limit
	return slices.Clone(s.history), s.historyErr
}

func (s *fakeStore) SaveTurn(_ context.Context, sessionKey, user, assistant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.turns = append(s.turns, [3]string{sessionKey, user, assistant})
	return nil
}

func (s *fakeStore) SearchKnowledge(_ context.Context, query string, limit int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ragQueries = append(s.ragQueries, query)
	s.ragLimit = limit
	return s.knowledge, s.knowledgeErr
}

// recorder is an EventPublisher that keeps everything.
type recorder struct {
	mu     sync.Mutex
	events []domain.SystemEvent
}

func (r *recorder) Publish(ev domain.SystemEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}

func (r *recorder) ofType(t domain.EventType) []domain.SystemEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SystemEvent
	for _, ev := range r.events {
		if ev.EventType == t {
			out = append(out, ev)
		}
	}
	return out
}

type step struct {
	resp *domain.ConversationResponse
	err  error
}

func answer(content string) step {
	return step{resp: &domain.ConversationResponse{Content: content, FinishReason: "stop"}}
}

func toolCalls(calls ...domain.ToolInvocationRequest) step {
	return step{resp: &domain.ConversationResponse{ToolCalls: calls, FinishReason: "tool_calls"}}
}

func failure(err error) step { return step{err: err} }

// scriptProvider replays steps in order and repeats the last one forever.
type scriptProvider struct {
	mu       sync.Mutex
	steps    []step
	requests []domain.ConversationRequest
}

func script(steps ...step) *scriptProvider { return &scriptProvider{steps: steps} }

func (p *scriptProvider) Name() string         { return "script" }
func (p *scriptProvider) DefaultModel() string { return "script-model" }

func (p *scriptProvider) Chat(_ context.Context, req domain.ConversationRequest) (*domain.ConversationResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	req.Messages = slices.Clone(req.Messages)
	p.requests = append(p.requests, req)
	i := min(len(p.requests)-1, len(p.steps)-1)
	return p.steps[i].resp, p.steps[i].err
}

func (p *scriptProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *scriptProvider) request(i int) domain.ConversationRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[i]
}

// sleeps records backoff waits without spending real time.
type sleeps struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}

func newTestAgent(p provider.Provider, tools Capabilities, store ConversationStore, cfg Config) (*Agent, *sleeps) {
	sl := &sleeps{}
	r := provider.NewRetrier(provider.DefaultPolicy(), silentLog(), provider.WithSleep(sl.sleep))
	return New(p, tools, store, cfg, silentLog(), WithRetrier(r)), sl
}

func call(id, name, args string) domain.ToolInvocationRequest {
	return domain.ToolInvocationRequest{ID: id, Name: name, Arguments: args}
}

func registry(caps ...capability.Capability) *capability.Registry {
	r := capability.NewRegistry(silentLog())
	for _, c := range caps {
		r.Register(c)
	}
	return r
}
