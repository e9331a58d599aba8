package domain

import "github.com/invopop/jsonschema"

// CapabilityDescriptor is the machine-readable description of a capability sent to the model.
type CapabilityDescriptor struct {
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	ParameterSchema *jsonschema.Schema `json:"parameters,omitempty"`
}

// ConversationRequest is what the agent sends to a provider on every iteration.
type ConversationRequest struct {
	Messages     []Message              `json:"messages"`
	Capabilities []CapabilityDescriptor `json:"capabilities,omitempty"`
	Model        string                 `json:"model,omitempty"`
	MaxTokens    int                    `json:"maxTokens"`
	Temperature  float64                `json:"temperature"`
}

// Usage tracks token consumption for one provider call.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// ConversationResponse is a provider's answer. An empty ToolCalls list means
// Content is the final answer.
type ConversationResponse struct {
	Content      string                  `json:"content,omitempty"`
	ToolCalls    []ToolInvocationRequest `json:"toolCalls,omitempty"`
	Model        string                  `json:"model,omitempty"`
	Usage        Usage                   `json:"usage"`
	FinishReason string                  `json:"finishReason,omitempty"`
}

// HasToolCalls reports whether the model asked for capabilities to be run.
func (r *ConversationResponse) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}
