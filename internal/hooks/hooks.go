// Package hooks fans system events from the bus out to named handlers,
// such as the event log and the metrics recorder.
package hooks

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

// AnyEvent subscribes a handler to every event type. Such handlers run
// after the type-specific ones.
const AnyEvent domain.EventType = "*"

// Handler reacts to one event. An error or panic is logged and counted
// against the handler; it never stops the others.
type Handler func(ctx context.Context, ev domain.SystemEvent) error

type hook struct {
	name string
	fn   Handler
}

type Manager struct {
	mu       sync.RWMutex
	hooks    map[domain.EventType][]hook
	failures map[string]int
	log      *logging.Logger
}

func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		hooks:    make(map[domain.EventType][]hook),
		failures: make(map[string]int),
		log:      log.Sub("hooks"),
	}
}

// On appends fn under name for event. Names need not be unique; Off
// removes every handler sharing one.
func (m *Manager) On(event domain.EventType, name string, fn Handler) {
	m.mu.Lock()
	m.hooks[event] = append(m.hooks[event], hook{name: name, fn: fn})
	m.mu.Unlock()
	m.log.Debug().Str("event", string(event)).Str("handler", name).Msg("hook registered")
}

func (m *Manager) Off(event domain.EventType, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[event] = slices.DeleteFunc(slices.Clone(m.hooks[event]), func(h hook) bool { return h.name == name })
	if len(m.hooks[event]) == 0 {
		delete(m.hooks, event)
	}
}

// Emit runs the handlers for ev in registration order on the caller's
// goroutine.
func (m *Manager) Emit(ctx context.Context, ev domain.SystemEvent) {
	m.mu.RLock()
	run := slices.Concat(m.hooks[ev.EventType], m.hooks[AnyEvent])
	m.mu.RUnlock()

	for _, h := range run {
		if err := invoke(ctx, h.fn, ev); err != nil {
			m.fail(h.name)
			m.log.Warn().Err(err).Str("event", string(ev.EventType)).Str("handler", h.name).Msg("hook failed")
		}
	}
}

func invoke(ctx context.Context, fn Handler, ev domain.SystemEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, ev)
}

func (m *Manager) fail(name string) {
	m.mu.Lock()
	m.failures[name]++
	m.mu.Unlock()
}

// Run emits every event read from events until the channel closes or ctx
// ends.
func (m *Manager) Run(ctx context.Context, events <-chan domain.SystemEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.Emit(ctx, ev)
		}
	}
}

// Count is the number of handlers registered for event.
func (m *Manager) Count(event domain.EventType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hooks[event])
}

// Events lists the event types with handlers, sorted.
func (m *Manager) Events() []domain.EventType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.hooks))
}

// Failures returns how often each handler has failed, by name.
func (m *Manager) Failures() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.failures)
}

// LogEvents logs every event at debug, and timeouts and provider retries
// at warn.
func LogEvents(log *logging.Logger) Handler {
	log = log.Sub("events")
	return func(_ context.Context, ev domain.SystemEvent) error {
		e := log.Debug()
		if ev.EventType == domain.EventToolTimeout || ev.EventType == domain.EventLLMRetry {
			e = log.Warn()
		}
		e.Str("run", ev.RunID).Str("event", string(ev.EventType)).Fields(ev.Data).Msg("system event")
		return nil
	}
}
