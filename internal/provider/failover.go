package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

// Failover tries a chain of providers in order. It moves on only when an
// error is transient; anything else stops the chain.
type Failover struct {
	chain []Provider
	log   *logging.Logger
}

// NewFailover creates a failover provider. The first provider is the primary.
func NewFailover(log *logging.Logger, primary Provider, fallbacks ...Provider) *Failover {
	return &Failover{
		chain: append([]Provider{primary}, fallbacks...),
		log:   log.Sub("failover"),
	}
}

// Name joins the chain's provider names.
func (f *Failover) Name() string {
	names := make([]string, len(f.chain))
	for i, p := range f.chain {
		names[i] = p.Name()
	}
	return strings.Join(names, ">")
}

// DefaultModel is the primary's default model.
func (f *Failover) DefaultModel() string { return f.chain[0].DefaultModel() }

// Chat tries each provider in turn. A model override only applies to the
// primary; fallbacks use their own default model.
func (f *Failover) Chat(ctx context.Context, req domain.ConversationRequest) (*domain.ConversationResponse, error) {
	var lastErr error
	for i, p := range f.chain {
		attempt := req
		if i > 0 {
			attempt.Model = ""
		}

		resp, err := p.Chat(ctx, attempt)
		if err == nil {
			if i > 0 {
				f.log.Info().Str("provider", p.Name()).Msg("served by fallback provider")
			}
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			return nil, err
		}
		f.log.Warn().
			Str("provider", p.Name()).
			Err(err).
			Msg("transient error, trying next provider")
	}
	if lastErr == nil {
		lastErr = errors.New("no providers configured")
	}
	return nil, lastErr
}
