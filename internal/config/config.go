package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Provider: ProviderConfig{
			Name: "ollama",
		},
		Agent: AgentConfig{
			MaxIterations:      20,
			MaxTokens:          4096,
			ToolTimeoutSeconds: 60,
			HistoryLimit:       50,
			HistoryCharBudget:  30000,
			RAGResults:         3,
		},
		Routing: RoutingConfig{
			Scope:       "per-chat",
			Concurrency: 4,
		},
		Bus: BusConfig{
			InboundCapacity:  256,
			SubscriberBuffer: 64,
		},
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "zenclaw",
		},
		Gateway: GatewayConfig{
			Port: 18790,
			Bind: "loopback",
			Auth: GatewayAuth{
				Mode: "token",
			},
		},
		Memory: MemoryConfig{
			Store:        "sqlite",
			ChunkWords:   200,
			ChunkOverlap: 40,
		},
		Tools: ToolsConfig{
			ShellEnabled:        true,
			ShellTimeoutSeconds: 30,
			FetchMaxChars:       20000,
			ValidateArguments:   true,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
