package agent

import "time"

const (
	DefaultMaxIterations     = 20
	DefaultMaxTokens         = 4096
	DefaultTemperature       = 0.7
	DefaultToolTimeout       = 60 * time.Second
	DefaultHistoryLimit      = 50
	DefaultHistoryCharBudget = 30_000
	DefaultRAGResults        = 3
)

// Config is fixed for the lifetime of an Agent. Zero values take the
// defaults above; a nil Temperature means DefaultTemperature.
type Config struct {
	MaxIterations int
	SystemPrompt  string
	Model         string
	MaxTokens     int
	Temperature   *float64

	// ToolTimeout caps every capability call, whether or not the
	// capability honours its context.
	ToolTimeout time.Duration

	HistoryLimit      int
	HistoryCharBudget int

	// RAGResults is how many knowledge hits are requested per turn.
	// Negative disables retrieval.
	RAGResults int
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

// Float returns a pointer to v, for Config.Temperature.
func Float(v float64) *float64 { return &v }

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == nil {
		c.Temperature = Float(DefaultTemperature)
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.HistoryCharBudget <= 0 {
		c.HistoryCharBudget = DefaultHistoryCharBudget
	}
	if c.RAGResults == 0 {
		c.RAGResults = DefaultRAGResults
	}
	return c
}
