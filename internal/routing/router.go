// Package routing drains the inbound queue, picks an agent for every message
// and publishes the agent's answer as an outbound reply.
package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/volumeee/zenclaw-sub000/internal/agent"
	"github.com/volumeee/zenclaw-sub000/internal/bus"
	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

// DefaultConcurrency bounds how many messages are processed at once.
const DefaultConcurrency = 4

// Queue is the bus surface the router consumes and produces on.
type Queue interface {
	ConsumeInbound(ctx context.Context) (domain.InboundMessage, error)
	PublishOutbound(msg domain.OutboundMessage)
	Publish(ev domain.SystemEvent)
}

// Config controls session scoping and parallelism.
type Config struct {
	Scope       string
	Concurrency int
}

// Router is the single consumer of the inbound queue. Messages of one
// session are processed in arrival order; different sessions run in parallel.
type Router struct {
	agents *Agents
	queue  Queue
	scope  string
	sem    chan struct{}
	locks  *keyedMutex
	log    *logging.Logger
}

// NewRouter creates a message router.
func NewRouter(agents *Agents, queue Queue, cfg Config, log *logging.Logger) *Router {
	if cfg.Scope == "" {
		cfg.Scope = ScopePerChat
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Router{
		agents: agents,
		queue:  queue,
		scope:  cfg.Scope,
		sem:    make(chan struct{}, cfg.Concurrency),
		locks:  newKeyedMutex(),
		log:    log.Sub("routing"),
	}
}

// Run consumes the queue until ctx is done or the queue closes, then waits
// for in-flight messages. A closed queue is a clean stop.
func (r *Router) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	r.log.Info().Str("scope", r.scope).Int("concurrency", cap(r.sem)).Msg("router started")
	for {
		msg, err := r.queue.ConsumeInbound(ctx)
		if errors.Is(err, bus.ErrClosed) {
			r.log.Info().Msg("inbound queue closed, router stopping")
			return nil
		}
		if err != nil {
			return err
		}

		// The session lock is taken before the worker starts so that queue
		// order is kept within a session.
		unlock := r.locks.lock(ResolveSessionKey(msg, r.scope))
		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			unlock()
			return ctx.Err()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-r.sem }()
			defer unlock()
			r.handle(ctx, msg)
		}()
	}
}

// HandleInbound routes one message, runs the chosen agent and publishes the
// reply. Failures are reported to the sender as the reply text.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) (domain.OutboundMessage, error) {
	unlock := r.locks.lock(ResolveSessionKey(msg, r.scope))
	defer unlock()
	return r.handle(ctx, msg)
}

func (r *Router) handle(ctx context.Context, msg domain.InboundMessage) (domain.OutboundMessage, error) {
	start := time.Now()
	sessionKey := ResolveSessionKey(msg, r.scope)

	r.log.Info().
		Str("channel", msg.Channel).
		Str("from", msg.SenderID).
		Str("chatId", msg.ChatID).
		Str("session", sessionKey).
		Msg("routing inbound message")

	reply := domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		ReplyTo: msg.Metadata["messageId"],
	}

	slot, err := r.agents.Route(msg.Content)
	if err != nil {
		r.log.Warn().Err(err).Msg("dropping message")
		return reply, err
	}

	answer, err := slot.Agent.Process(ctx, msg.Content, sessionKey,
		agent.WithMedia(msg.Media...),
		agent.WithEvents(r.queue),
	)
	if err != nil {
		r.log.Error().Err(err).
			Str("channel", msg.Channel).
			Str("agent", slot.Name).
			Msg("agent run failed")
		reply.Content = fmt.Sprintf("Sorry, I could not finish that: %v", err)
		r.queue.PublishOutbound(reply)
		return reply, err
	}

	reply.Content = answer
	r.queue.PublishOutbound(reply)

	r.log.Info().
		Str("channel", msg.Channel).
		Str("chatId", msg.ChatID).
		Str("agent", slot.Name).
		Dur("duration", time.Since(start)).
		Msg("reply sent")
	return reply, nil
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
