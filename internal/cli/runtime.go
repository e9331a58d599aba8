package cli

import (
	"fmt"
	"time"

	"github.com/volumeee/zenclaw-sub000/internal/agent"
	"github.com/volumeee/zenclaw-sub000/internal/capability"
	"github.com/volumeee/zenclaw-sub000/internal/capability/builtin"
	"github.com/volumeee/zenclaw-sub000/internal/config"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
	"github.com/volumeee/zenclaw-sub000/internal/metrics"
	"github.com/volumeee/zenclaw-sub000/internal/provider"
	"github.com/volumeee/zenclaw-sub000/internal/routing"
	"github.com/volumeee/zenclaw-sub000/internal/store"
)

const defaultAgentName = "default"

// runtime is everything a command needs to answer messages.
type runtime struct {
	store    store.Store
	sqlite   *store.SQLite
	provider provider.Provider
	caps     *capability.Registry
	metrics  *metrics.Recorder
	agents   *routing.Agents
}

// buildRuntime wires storage, the provider chain, capabilities, metrics and
// the configured agents.
func buildRuntime(c config.Config, p config.Paths, log *logging.Logger) (*runtime, error) {
	rt := &runtime{}

	st, sq, err := openStore(c, p, log)
	if err != nil {
		return nil, err
	}
	rt.store, rt.sqlite = st, sq

	rt.provider, err = buildProvider(c, log)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var kb builtin.Knowledge
	if sq != nil {
		kb = sq.Knowledge()
	}
	rt.caps = buildCapabilities(c, p, st, kb, log)

	rt.metrics, err = metrics.New(log)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.agents, err = buildAgents(c, rt.provider, rt.caps, st, rt.metrics, log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// Close releases the store.
func (rt *runtime) Close() error {
	if rt.store == nil {
		return nil
	}
	return rt.store.Close()
}

func openStore(c config.Config, p config.Paths, log *logging.Logger) (store.Store, *store.SQLite, error) {
	if c.Memory.Store == "memory" {
		return store.NewMemory(), nil, nil
	}
	if c.Memory.Path == "" {
		if err := p.EnsureDirs(); err != nil {
			return nil, nil, err
		}
	}
	sq, err := store.OpenSQLite(c.MemoryPath(p), log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening memory store: %w", err)
	}
	return sq, sq, nil
}

func buildProvider(c config.Config, log *logging.Logger) (provider.Provider, error) {
	reg := provider.NewRegistry(log)
	b := provider.Backend{
		Name:    c.Provider.Name,
		Model:   c.Provider.Model,
		APIKey:  c.Provider.APIKey,
		BaseURL: c.Provider.BaseURL,
	}
	p, err := reg.BuildChain(b, c.Provider.Fallbacks)
	if err != nil {
		return nil, err
	}
	if c.Provider.RequestsPerMinute > 0 {
		p = provider.NewThrottled(p, c.Provider.RequestsPerMinute)
	}
	return p, nil
}

func buildCapabilities(c config.Config, p config.Paths, facts builtin.FactStore, kb builtin.Knowledge, log *logging.Logger) *capability.Registry {
	var opts []capability.Option
	if c.Tools.ValidateArguments {
		opts = append(opts, capability.WithArgumentValidation())
	}
	reg := capability.NewRegistry(log, opts...)
	builtin.RegisterAll(reg, builtin.Options{
		Workspace:     c.WorkspacePath(p),
		ShellEnabled:  c.Tools.ShellEnabled,
		ShellTimeout:  time.Duration(c.Tools.ShellTimeoutSeconds) * time.Second,
		FetchMaxChars: c.Tools.FetchMaxChars,
		Facts:         facts,
		Knowledge:     kb,
		ChunkWords:    c.Memory.ChunkWords,
		ChunkOverlap:  c.Memory.ChunkOverlap,
	}, log)
	return reg
}

// agentConfig merges the shared loop settings with one agent entry.
func agentConfig(c config.Config, e config.AgentEntry) agent.Config {
	ac := agent.Config{
		MaxIterations:     c.Agent.MaxIterations,
		SystemPrompt:      c.Agent.SystemPrompt,
		Model:             c.Provider.Model,
		MaxTokens:         c.Agent.MaxTokens,
		Temperature:       c.Agent.Temperature,
		ToolTimeout:       time.Duration(c.Agent.ToolTimeoutSeconds) * time.Second,
		HistoryLimit:      c.Agent.HistoryLimit,
		HistoryCharBudget: c.Agent.HistoryCharBudget,
		RAGResults:        c.Agent.RAGResults,
	}
	if e.SystemPrompt != "" {
		ac.SystemPrompt = e.SystemPrompt
	}
	if e.Model != "" {
		ac.Model = e.Model
	}
	return ac
}

// buildAgents registers one agent per configured entry, or a single default
// agent when none are configured. Every agent shares the provider, the
// capabilities and the store, and is counted by rec.
func buildAgents(c config.Config, p provider.Provider, caps agent.Capabilities, st agent.ConversationStore, rec *metrics.Recorder, log *logging.Logger) (*routing.Agents, error) {
	entries := c.Agents
	if len(entries) == 0 {
		entries = []config.AgentEntry{{Name: defaultAgentName, Description: "General assistant", Default: true}}
	}

	retrier := provider.NewRetrier(provider.DefaultPolicy(), log)
	agents := routing.NewAgents()
	fallback := ""
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("agent entry without a name")
		}
		a := agent.New(p, caps, st, agentConfig(c, e), log.With("agent", e.Name),
			agent.WithRetrier(retrier),
			agent.WithUsage(rec.RecordUsage),
		)
		agents.Register(routing.Slot{
			Name:        e.Name,
			Description: e.Description,
			Keywords:    e.Keywords,
			Agent:       rec.Instrument(a),
		})
		if e.Default && fallback == "" {
			fallback = e.Name
		}
	}
	if fallback != "" {
		agents.SetDefault(fallback)
	}
	return agents, nil
}
