package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
)

// Memory is a process-local Store. It has no document index, so
// SearchKnowledge always returns "".
type Memory struct {
	mu      sync.Mutex
	history map[string][]domain.Message
	facts   map[string]domain.Fact
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		history: make(map[string][]domain.Message),
		facts:   make(map[string]domain.Fact),
	}
}

func (m *Memory) GetHistory(_ context.Context, sessionKey string, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.history[sessionKey]
	if limit <= 0 {
		return nil, nil
	}
	start := max(len(msgs)-limit, 0)
	return slices.Clone(msgs[start:]), nil
}

func (m *Memory) SaveTurn(_ context.Context, sessionKey, userMessage, assistantResponse string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[sessionKey] = append(m.history[sessionKey],
		domain.UserMessage(userMessage),
		domain.AssistantMessage(assistantResponse),
	)
	return nil
}

func (m *Memory) SaveMessage(_ context.Context, sessionKey string, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[sessionKey] = append(m.history[sessionKey], msg)
	return nil
}

func (m *Memory) ClearHistory(_ context.Context, sessionKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, sessionKey)
	return nil
}

func (m *Memory) SaveFact(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts[key] = domain.Fact{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return nil
}

func (m *Memory) GetFact(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.facts[key]
	return f.Value, ok, nil
}

// SearchFacts matches query case-insensitively against keys and values.
// Results are ordered by key.
func (m *Memory) SearchFacts(_ context.Context, query string, limit int) ([]domain.Fact, error) {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(query)

	m.mu.Lock()
	var out []domain.Fact
	for _, f := range m.facts {
		if strings.Contains(strings.ToLower(f.Key), q) || strings.Contains(strings.ToLower(f.Value), q) {
			out = append(out, f)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SearchKnowledge(context.Context, string, int) (string, error) {
	return "", nil
}

func (m *Memory) Close() error { return nil }
