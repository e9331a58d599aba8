package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
)

// Throttled spaces out calls to a provider so a free-tier quota is not
// exhausted in bursts.
type Throttled struct {
	Provider
	limiter *rate.Limiter
}

// NewThrottled wraps p with a limit of requestsPerMinute. Zero or negative
// disables throttling and returns p unchanged.
func NewThrottled(p Provider, requestsPerMinute int) Provider {
	if requestsPerMinute <= 0 {
		return p
	}
	every := time.Minute / time.Duration(requestsPerMinute)
	return &Throttled{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Every(every), 1),
	}
}

// Chat waits for a slot, then calls the wrapped provider.
func (t *Throttled) Chat(ctx context.Context, req domain.ConversationRequest) (*domain.ConversationResponse, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for %s rate slot: %w", t.Name(), err)
	}
	return t.Provider.Chat(ctx, req)
}
