package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("POST /v1/responses: 429 Too Many Requests"), true},
		{errors.New("Rate limit exceeded for model"), true},
		{errors.New("rate_limit_error"), true},
		{&ProviderError{Provider: "groq", Code: 429, Message: "slow down"}, true},
		{fmt.Errorf("wrapped: %w", &ProviderError{Code: 429}), true},
		{errors.New("500 internal server error"), false},
		{errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRateLimit(tt.err), "%v", tt.err)
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&ProviderError{Code: 503}))
	assert.True(t, IsTransient(&ProviderError{Code: 401}))
	assert.True(t, IsTransient(errors.New("model is overloaded")))
	assert.True(t, IsTransient(errors.New("dial tcp: connection refused")))
	assert.True(t, IsTransient(errors.New("429")))
	assert.False(t, IsTransient(&ProviderError{Code: 400, Message: "bad request"}))
	assert.False(t, IsTransient(errors.New("invalid tool schema")))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(nil))
}

func TestProviderError_Message(t *testing.T) {
	assert.Equal(t, "openai: 429 slow down", (&ProviderError{Provider: "openai", Code: 429, Message: "slow down"}).Error())
	assert.Equal(t, "ollama: boom", (&ProviderError{Provider: "ollama", Message: "boom"}).Error())
}
