// Package agent runs the reason-then-act loop: it assembles context for a
// session, asks the provider what to do, runs the requested capabilities
// concurrently and repeats until the model produces a final answer.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
	"github.com/volumeee/zenclaw-sub000/internal/provider"
)

// ConversationStore is the persistence the loop needs.
type ConversationStore interface {
	GetHistory(ctx context.Context, sessionKey string, limit int) ([]domain.Message, error)
	SaveTurn(ctx context.Context, sessionKey, userMessage, assistantResponse string) error
	// SearchKnowledge returns a ready-to-inject context block, or "".
	SearchKnowledge(ctx context.Context, query string, limit int) (string, error)
}

// Capabilities describes and runs the tools offered to the model.
type Capabilities interface {
	Descriptors() []domain.CapabilityDescriptor
	Execute(ctx context.Context, name, arguments string) (string, error)
}

// EventPublisher receives progress events. Publish must not block.
type EventPublisher interface {
	Publish(ev domain.SystemEvent)
}

// UsageFunc observes the token usage of every provider response.
type UsageFunc func(model string, usage domain.Usage)

// Agent is safe for concurrent Process calls on different sessions.
type Agent struct {
	cfg      Config
	provider provider.Provider
	tools    Capabilities
	store    ConversationStore
	retrier  *provider.Retrier
	onUsage  UsageFunc
	log      *logging.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithRetrier replaces the default retry policy around provider calls.
func WithRetrier(r *provider.Retrier) Option {
	return func(a *Agent) { a.retrier = r }
}

// WithUsage registers a token usage observer.
func WithUsage(fn UsageFunc) Option {
	return func(a *Agent) { a.onUsage = fn }
}

// New creates an agent. tools may be nil, in which case the model is offered
// no capabilities.
func New(p provider.Provider, tools Capabilities, store ConversationStore, cfg Config, log *logging.Logger, opts ...Option) *Agent {
	if tools == nil {
		tools = noCapabilities{}
	}
	a := &Agent{
		cfg:      cfg.withDefaults(),
		provider: p,
		tools:    tools,
		store:    store,
		log:      log.Sub("agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.retrier == nil {
		a.retrier = provider.NewRetrier(provider.DefaultPolicy(), log)
	}
	return a
}

// Config returns the effective configuration.
func (a *Agent) Config() Config { return a.cfg }

// Provider returns the provider the agent talks to.
func (a *Agent) Provider() provider.Provider { return a.provider }

type processOptions struct {
	media  []string
	events EventPublisher
}

// ProcessOption configures one Process call.
type ProcessOption func(*processOptions)

// WithMedia attaches media references to the user message.
func WithMedia(media ...string) ProcessOption {
	return func(o *processOptions) { o.media = append(o.media, media...) }
}

// WithEvents publishes progress events for this call. Without it no events
// are emitted.
func WithEvents(p EventPublisher) ProcessOption {
	return func(o *processOptions) { o.events = p }
}

// Process answers userMessage in the context of sessionKey.
//
// Capability failures and timeouts are fed back to the model as tool results.
// Store failures, exhausted provider retries, context cancellation and
// *MaxIterationsError end the call.
func (a *Agent) Process(ctx context.Context, userMessage, sessionKey string, opts ...ProcessOption) (string, error) {
	var po processOptions
	for _, opt := range opts {
		opt(&po)
	}
	run := &run{sessionKey: sessionKey, events: po.events}
	start := time.Now()

	messages, err := a.assemble(ctx, run, userMessage, po.media)
	if err != nil {
		return "", err
	}

	a.log.Info().
		Str("session", sessionKey).
		Int("contextMessages", len(messages)).
		Msg("processing message")

	var answer string
	iteration := 0
	for {
		iteration++
		if iteration > a.cfg.MaxIterations {
			a.log.Warn().Str("session", sessionKey).Int("limit", a.cfg.MaxIterations).Msg("iteration limit reached")
			return "", &MaxIterationsError{Limit: a.cfg.MaxIterations}
		}

		a.log.Debug().Int("iteration", iteration).Int("limit", a.cfg.MaxIterations).Msg("agent iteration")
		run.emit(domain.EventAgentThink, map[string]any{"iteration": iteration})

		req := domain.ConversationRequest{
			Messages:     messages,
			Capabilities: a.tools.Descriptors(),
			Model:        a.cfg.Model,
			MaxTokens:    a.cfg.MaxTokens,
			Temperature:  *a.cfg.Temperature,
		}

		resp, err := a.retrier.Chat(ctx, a.provider, req, func(ri provider.RetryInfo) {
			run.publish(ri.Event(sessionKey))
		})
		if err != nil {
			return "", fmt.Errorf("provider %s: %w", a.provider.Name(), err)
		}
		if a.onUsage != nil {
			a.onUsage(resp.Model, resp.Usage)
		}

		if !resp.HasToolCalls() {
			answer = resp.Content
			break
		}

		a.log.Info().Int("toolCalls", len(resp.ToolCalls)).Int("iteration", iteration).Msg("executing capabilities")
		messages = append(messages, domain.AssistantToolCalls(resp.Content, resp.ToolCalls))
		messages = append(messages, a.dispatch(ctx, run, resp.ToolCalls)...)

		if err := ctx.Err(); err != nil {
			return "", err
		}
	}

	if err := a.store.SaveTurn(ctx, sessionKey, userMessage, answer); err != nil {
		return "", fmt.Errorf("saving turn: %w", err)
	}

	a.log.Info().
		Str("session", sessionKey).
		Int("iterations", iteration).
		Int("answerChars", len(answer)).
		Dur("duration", time.Since(start)).
		Msg("response generated")
	return answer, nil
}

// run carries the per-call state shared by the loop helpers.
type run struct {
	sessionKey string
	events     EventPublisher
}

func (r *run) emit(t domain.EventType, data map[string]any) {
	r.publish(domain.NewEvent(r.sessionKey, t, data))
}

func (r *run) publish(ev domain.SystemEvent) {
	if r.events != nil {
		r.events.Publish(ev)
	}
}

type noCapabilities struct{}

func (noCapabilities) Descriptors() []domain.CapabilityDescriptor { return nil }

func (noCapabilities) Execute(_ context.Context, name, _ string) (string, error) {
	return "", fmt.Errorf("capability not found: %s", name)
}
