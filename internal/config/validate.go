package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

var (
	validProviders     = []string{"openai", "openrouter", "groq", "lmstudio", "ollama"}
	keylessProviders   = []string{"lmstudio", "ollama"}
	validScopes        = []string{"per-chat", "per-sender"}
	validBinds         = []string{"loopback", "lan", "custom"}
	validAuthModes     = []string{"token", "password"}
	validStores        = []string{"sqlite", "memory"}
	validLogLevels     = []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	validConsoleStyles = []string{"pretty", "compact", "json"}
)

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	oneOf := func(path string, valid []string, got string) {
		if got != "" && !slices.Contains(valid, got) {
			add(path, "must be one of %v, got %q", valid, got)
		}
	}
	positive := func(path string, v int) {
		if v < 0 {
			add(path, "must not be negative, got %d", v)
		}
	}

	// Provider validation
	oneOf("provider.name", validProviders, cfg.Provider.Name)
	hosted := slices.Contains(validProviders, cfg.Provider.Name) && !slices.Contains(keylessProviders, cfg.Provider.Name)
	if hosted && cfg.Provider.APIKey == "" {
		add("provider.apiKey", "required for provider %q", cfg.Provider.Name)
	}
	positive("provider.requestsPerMinute", cfg.Provider.RequestsPerMinute)

	// Agent validation
	positive("agent.maxIterations", cfg.Agent.MaxIterations)
	positive("agent.maxTokens", cfg.Agent.MaxTokens)
	positive("agent.toolTimeoutSeconds", cfg.Agent.ToolTimeoutSeconds)
	positive("agent.historyLimit", cfg.Agent.HistoryLimit)
	positive("agent.historyCharBudget", cfg.Agent.HistoryCharBudget)
	if t := cfg.Agent.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("agent.temperature", "must be 0-2, got %g", *t)
	}

	seen := make(map[string]bool, len(cfg.Agents))
	defaults := 0
	for i, a := range cfg.Agents {
		path := fmt.Sprintf("agents[%d]", i)
		if a.Name == "" {
			add(path+".name", "name is required")
		} else if seen[a.Name] {
			add(path+".name", "duplicate agent name %q", a.Name)
		}
		seen[a.Name] = true
		if a.Default {
			defaults++
		}
	}
	if defaults > 1 {
		add("agents", "at most one agent may be the default, got %d", defaults)
	}

	// Routing and bus validation
	oneOf("routing.scope", validScopes, cfg.Routing.Scope)
	positive("routing.concurrency", cfg.Routing.Concurrency)
	positive("bus.inboundCapacity", cfg.Bus.InboundCapacity)
	positive("bus.subscriberBuffer", cfg.Bus.SubscriberBuffer)
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		add("nats.url", "required when nats is enabled")
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	oneOf("gateway.bind", validBinds, cfg.Gateway.Bind)
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}
	oneOf("gateway.auth.mode", validAuthModes, cfg.Gateway.Auth.Mode)

	// Memory validation
	oneOf("memory.store", validStores, cfg.Memory.Store)
	positive("memory.chunkWords", cfg.Memory.ChunkWords)
	if cfg.Memory.ChunkOverlap < 0 || (cfg.Memory.ChunkWords > 0 && cfg.Memory.ChunkOverlap >= cfg.Memory.ChunkWords) {
		add("memory.chunkOverlap", "must be 0 to chunkWords-1, got %d", cfg.Memory.ChunkOverlap)
	}

	// Tools validation
	positive("tools.shellTimeoutSeconds", cfg.Tools.ShellTimeoutSeconds)
	positive("tools.fetchMaxChars", cfg.Tools.FetchMaxChars)

	// Logging validation
	oneOf("logging.level", validLogLevels, cfg.Logging.Level)
	oneOf("logging.consoleStyle", validConsoleStyles, cfg.Logging.ConsoleStyle)

	return issues
}
