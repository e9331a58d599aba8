// Package domain holds the value types shared across the zenclaw core:
// conversation messages, provider requests and responses, and system events.
package domain

import "strings"

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole maps a stored role string back to a Role. Unknown values map to RoleUser.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(s)) {
	case RoleSystem:
		return RoleSystem
	case RoleAssistant:
		return RoleAssistant
	case RoleTool:
		return RoleTool
	default:
		return RoleUser
	}
}

// ToolInvocationRequest is a model's request to run one capability.
// Arguments is the raw JSON string as produced by the model; capabilities parse it themselves.
type ToolInvocationRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one turn in a conversation.
//
// ToolCalls is only set on assistant messages. ToolCallID and Name are only
// set on tool messages and link the result back to its request.
type Message struct {
	Role       Role                    `json:"role"`
	Content    string                  `json:"content,omitempty"`
	Media      []string                `json:"media,omitempty"`
	ToolCalls  []ToolInvocationRequest `json:"toolCalls,omitempty"`
	ToolCallID string                  `json:"toolCallId,omitempty"`
	Name       string                  `json:"name,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message with optional media references.
func UserMessage(content string, media ...string) Message {
	return Message{Role: RoleUser, Content: content, Media: media}
}

// AssistantMessage builds a plain assistant reply.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// AssistantToolCalls builds an assistant message carrying tool invocation requests.
func AssistantToolCalls(content string, calls []ToolInvocationRequest) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResult builds a tool-role message answering the request with the given ID.
func ToolResult(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, Name: name}
}

// HasToolCalls reports whether the message carries tool invocation requests.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}
