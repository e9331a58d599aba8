package provider

import (
	"context"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
)

// Mock is a test double for Provider.
type Mock struct {
	ProviderName string
	Model        string
	ChatFunc     func(ctx context.Context, req domain.ConversationRequest) (*domain.ConversationResponse, error)
}

func (m *Mock) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *Mock) DefaultModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

func (m *Mock) Chat(ctx context.Context, req domain.ConversationRequest) (*domain.ConversationResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return &domain.ConversationResponse{Content: "mock response", Model: modelFor(m, req), FinishReason: "stop"}, nil
}
