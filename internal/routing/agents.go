package routing

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/volumeee/zenclaw-sub000/internal/agent"
)

// ErrNoAgents is returned when routing is attempted with nothing registered.
var ErrNoAgents = errors.New("no agents registered")

// Processor is the part of *agent.Agent the router needs.
type Processor interface {
	Process(ctx context.Context, userMessage, sessionKey string, opts ...agent.ProcessOption) (string, error)
}

// Slot is one named agent with the keywords that select it.
type Slot struct {
	Name        string
	Description string
	Keywords    []string
	Agent       Processor
}

// Agents picks an agent for a message by keyword score.
type Agents struct {
	mu       sync.RWMutex
	slots    []*Slot
	fallback string
}

// NewAgents creates an empty agent set.
func NewAgents() *Agents {
	return &Agents{}
}

// Register adds an agent. Registration order breaks score ties.
func (a *Agents) Register(s Slot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.slots = append(a.slots, &s)
}

// SetDefault names the agent used when no keyword matches.
func (a *Agents) SetDefault(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fallback = name
}

// Route scores every agent by how many of its keywords occur in message
// (case-insensitive). The highest score wins and ties keep the earlier
// registration. With no match the default agent is used, else the first.
func (a *Agents) Route(message string) (*Slot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.slots) == 0 {
		return nil, ErrNoAgents
	}

	lower := strings.ToLower(message)
	var best *Slot
	bestScore := 0
	for _, s := range a.slots {
		score := 0
		for _, kw := range s.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = s, score
		}
	}
	if best != nil {
		return best, nil
	}

	if a.fallback != "" {
		for _, s := range a.slots {
			if s.Name == a.fallback {
				return s, nil
			}
		}
	}
	return a.slots[0], nil
}

// Get returns an agent by name.
func (a *Agents) Get(name string) (*Slot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, s := range a.slots {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// List returns the registered agents in registration order.
func (a *Agents) List() []Slot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Slot, len(a.slots))
	for i, s := range a.slots {
		out[i] = *s
	}
	return out
}

// Len returns the number of registered agents.
func (a *Agents) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.slots)
}
