package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

type entry struct {
	ch     Channel
	status Status
}

// Registry runs a set of channels and routes replies to them by name.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*entry
	log      *logging.Logger
}

// NewRegistry creates a channel registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		channels: make(map[string]*entry),
		log:      log.Sub("channels"),
	}
}

// Register adds a channel. A second channel with the same name is rejected.
func (r *Registry) Register(ch Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.channels[ch.Name()]; exists {
		return fmt.Errorf("channel already registered: %s", ch.Name())
	}
	r.channels[ch.Name()] = &entry{ch: ch, status: Status{Name: ch.Name()}}
	r.log.Info().Str("channel", ch.Name()).Msg("channel registered")
	return nil
}

// Get returns a channel by name.
func (r *Registry) Get(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.channels[name]
	if !ok {
		return nil, false
	}
	return e.ch, true
}

// Names returns every registered channel name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status returns the state of every channel, sorted by name.
func (r *Registry) Status() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.channels))
	for _, e := range r.channels {
		out = append(out, e.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Run starts every channel in its own goroutine and waits until all of
// them have stopped. A channel that fails is logged and marked not running;
// the others keep going.
func (r *Registry) Run(ctx context.Context, in Inbound) {
	r.mu.Lock()
	var wg sync.WaitGroup
	for name, e := range r.channels {
		e.status.Running = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.run(ctx, name, e, in)
		}()
	}
	r.mu.Unlock()
	wg.Wait()
}

func (r *Registry) run(ctx context.Context, name string, e *entry, in Inbound) {
	r.log.Info().Str("channel", name).Msg("starting channel")
	err := e.ch.Start(ctx, in)
	failed := err != nil && ctx.Err() == nil

	r.mu.Lock()
	e.status.Running = false
	if failed {
		e.status.LastError = err.Error()
	}
	r.mu.Unlock()

	if failed {
		r.log.Error().Err(err).Str("channel", name).Msg("channel exited with error")
		return
	}
	r.log.Info().Str("channel", name).Msg("channel stopped")
}

// Dispatch delivers replies to the channel they name until ctx is done or
// replies closes. Replies for channels not in the registry are skipped, since
// other front ends (the gateway) read the same stream.
func (r *Registry) Dispatch(ctx context.Context, replies <-chan domain.OutboundMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-replies:
			if !ok {
				return
			}
			r.deliver(ctx, msg)
		}
	}
}

func (r *Registry) deliver(ctx context.Context, msg domain.OutboundMessage) {
	r.mu.RLock()
	e, ok := r.channels[msg.Channel]
	r.mu.RUnlock()
	if !ok {
		return
	}

	err := e.ch.Deliver(ctx, msg)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		e.status.Failed++
		e.status.LastError = err.Error()
		r.log.Warn().Err(err).Str("channel", msg.Channel).Str("chatId", msg.ChatID).Msg("reply delivery failed")
		return
	}
	e.status.Delivered++
}
