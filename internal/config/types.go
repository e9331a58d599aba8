package config

// Config is the root configuration for zenclaw.
type Config struct {
	Provider ProviderConfig `yaml:"provider,omitempty"`
	Agent    AgentConfig    `yaml:"agent,omitempty"`
	Agents   []AgentEntry   `yaml:"agents,omitempty"`
	Routing  RoutingConfig  `yaml:"routing,omitempty"`
	Bus      BusConfig      `yaml:"bus,omitempty"`
	NATS     NATSConfig     `yaml:"nats,omitempty"`
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Memory   MemoryConfig   `yaml:"memory,omitempty"`
	Tools    ToolsConfig    `yaml:"tools,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// ProviderConfig selects the language model backend.
type ProviderConfig struct {
	Name              string   `yaml:"name,omitempty"` // "openai" | "openrouter" | "groq" | "lmstudio" | "ollama"
	Model             string   `yaml:"model,omitempty"`
	APIKey            string   `yaml:"apiKey,omitempty"`
	BaseURL           string   `yaml:"baseUrl,omitempty"`
	RequestsPerMinute int      `yaml:"requestsPerMinute,omitempty"` // 0 disables client-side throttling
	Fallbacks         []string `yaml:"fallbacks,omitempty"`         // "provider:model" or a bare model
}

// AgentConfig holds the reasoning loop settings shared by every agent.
type AgentConfig struct {
	MaxIterations      int      `yaml:"maxIterations,omitempty"`
	MaxTokens          int      `yaml:"maxTokens,omitempty"`
	Temperature        *float64 `yaml:"temperature,omitempty"`
	SystemPrompt       string   `yaml:"systemPrompt,omitempty"`
	ToolTimeoutSeconds int      `yaml:"toolTimeoutSeconds,omitempty"`
	HistoryLimit       int      `yaml:"historyLimit,omitempty"`
	HistoryCharBudget  int      `yaml:"historyCharBudget,omitempty"`
	RAGResults         int      `yaml:"ragResults,omitempty"` // negative disables retrieval
}

// AgentEntry defines a named agent selected by keyword routing.
type AgentEntry struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description,omitempty"`
	Keywords     []string `yaml:"keywords,omitempty"`
	SystemPrompt string   `yaml:"systemPrompt,omitempty"`
	Model        string   `yaml:"model,omitempty"`
	Default      bool     `yaml:"default,omitempty"`
}

// RoutingConfig controls how inbound messages map to sessions.
type RoutingConfig struct {
	Scope       string `yaml:"scope,omitempty"` // "per-chat" | "per-sender"
	Concurrency int    `yaml:"concurrency,omitempty"`
}

// BusConfig sizes the event bus queues.
type BusConfig struct {
	InboundCapacity  int `yaml:"inboundCapacity,omitempty"`
	SubscriberBuffer int `yaml:"subscriberBuffer,omitempty"`
}

// NATSConfig mirrors bus traffic onto a NATS server.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// GatewayConfig controls the observer HTTP/WebSocket server.
type GatewayConfig struct {
	Enabled        bool        `yaml:"enabled,omitempty"`
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// MemoryConfig configures conversation and knowledge storage.
type MemoryConfig struct {
	Store        string `yaml:"store,omitempty"` // "sqlite" | "memory"
	Path         string `yaml:"path,omitempty"`  // defaults to <base>/data/zenclaw.db
	ChunkWords   int    `yaml:"chunkWords,omitempty"`
	ChunkOverlap int    `yaml:"chunkOverlap,omitempty"`
}

// ToolsConfig tunes the builtin capabilities.
type ToolsConfig struct {
	Workspace           string `yaml:"workspace,omitempty"` // defaults to <base>/workspace
	ShellEnabled        bool   `yaml:"shellEnabled"`
	ShellTimeoutSeconds int    `yaml:"shellTimeoutSeconds,omitempty"`
	FetchMaxChars       int    `yaml:"fetchMaxChars,omitempty"`
	ValidateArguments   bool   `yaml:"validateArguments"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}
