package domain

// EventType names a system event. The set is closed; observers may rely on
// the payload field names documented next to each constant.
type EventType string

const (
	// EventAgentThink: {iteration}
	EventAgentThink EventType = "agent_think"
	// EventToolUse: {capability, arguments}
	EventToolUse EventType = "tool_use"
	// EventToolResult: {capability, resultLength}
	EventToolResult EventType = "tool_result"
	// EventToolTimeout: {capability}
	EventToolTimeout EventType = "tool_timeout"
	// EventLLMRetry: {attempt, isRateLimit, waitMs}
	EventLLMRetry EventType = "llm_retry"
	// EventRAGInject: {resultChars}
	EventRAGInject EventType = "rag_inject"
	// EventMemoryTruncate: {keptChars}
	EventMemoryTruncate EventType = "memory_truncate"
)

// AllEventTypes lists every event type in a stable order.
var AllEventTypes = []EventType{
	EventAgentThink,
	EventToolUse,
	EventToolResult,
	EventToolTimeout,
	EventLLMRetry,
	EventRAGInject,
	EventMemoryTruncate,
}

// Valid reports whether t belongs to the event vocabulary.
func (t EventType) Valid() bool {
	for _, known := range AllEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SystemEvent is a progress notification broadcast while an agent run is in flight.
// RunID is the session key of the run.
type SystemEvent struct {
	RunID     string         `json:"runId"`
	EventType EventType      `json:"eventType"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent builds a SystemEvent.
func NewEvent(runID string, t EventType, data map[string]any) SystemEvent {
	return SystemEvent{RunID: runID, EventType: t, Data: data}
}
