// Package provider defines the contract for model backends and the call
// protocol around them: error classification, retry with backoff, failover
// across backends and client-side throttling.
package provider

import (
	"context"
	"fmt"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
)

// Provider is a model backend.
type Provider interface {
	// Name identifies the backend, e.g. "openai" or "ollama".
	Name() string

	// DefaultModel is used when a request carries no model override.
	DefaultModel() string

	// Chat sends one conversation request and returns the model's answer.
	Chat(ctx context.Context, req domain.ConversationRequest) (*domain.ConversationResponse, error)
}

// ProviderError is returned when a backend rejects a request.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code when known (401, 429, 500, ...)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func modelFor(p Provider, req domain.ConversationRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return p.DefaultModel()
}
