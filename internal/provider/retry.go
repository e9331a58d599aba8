package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

const (
	DefaultMaxAttempts   = 5
	DefaultRateLimitWait = 20 * time.Second
	DefaultBaseBackoff   = 2 * time.Second
)

// Policy bounds one retried provider call.
type Policy struct {
	MaxAttempts   int
	RateLimitWait time.Duration
	BaseBackoff   time.Duration
}

// DefaultPolicy is five attempts, a fixed 20s wait on rate limits and
// exponential backoff from 2s otherwise.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   DefaultMaxAttempts,
		RateLimitWait: DefaultRateLimitWait,
		BaseBackoff:   DefaultBaseBackoff,
	}
}

// RetryInfo describes one scheduled retry.
type RetryInfo struct {
	Attempt     int
	IsRateLimit bool
	Wait        time.Duration
	Err         error
}

// Event converts the retry into an llm_retry system event for runID.
func (ri RetryInfo) Event(runID string) domain.SystemEvent {
	return domain.NewEvent(runID, domain.EventLLMRetry, map[string]any{
		"attempt":     ri.Attempt,
		"isRateLimit": ri.IsRateLimit,
		"waitMs":      ri.Wait.Milliseconds(),
	})
}

// RetriesExhaustedError is returned when every attempt failed. It unwraps to
// the last failure.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("provider failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier calls a provider under a retry Policy.
type Retrier struct {
	policy Policy
	sleep  SleepFunc
	log    *logging.Logger
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithSleep replaces the wait between attempts. Tests use it to skip real time.
func WithSleep(fn SleepFunc) RetrierOption {
	return func(r *Retrier) { r.sleep = fn }
}

// NewRetrier creates a retrier. Zero policy fields take their defaults.
func NewRetrier(policy Policy, log *logging.Logger, opts ...RetrierOption) *Retrier {
	def := DefaultPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.RateLimitWait <= 0 {
		policy.RateLimitWait = def.RateLimitWait
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = def.BaseBackoff
	}
	r := &Retrier{policy: policy, sleep: sleepContext, log: log.Sub("provider.retry")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the effective policy.
func (r *Retrier) Policy() Policy { return r.policy }

// Chat calls p until it succeeds or the attempts run out. onRetry, if not nil,
// is invoked before every wait.
//
// A rate-limited failure waits the fixed RateLimitWait. Any other failure
// waits the current backoff, which then doubles; rate limits leave the
// backoff untouched.
func (r *Retrier) Chat(ctx context.Context, p Provider, req domain.ConversationRequest, onRetry func(RetryInfo)) (*domain.ConversationResponse, error) {
	backoff := r.policy.BaseBackoff
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		resp, err := p.Chat(ctx, req)
		if err == nil {
			if attempt > 1 {
				r.log.Info().Str("provider", p.Name()).Int("attempt", attempt).Msg("provider call recovered")
			}
			return resp, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if attempt == r.policy.MaxAttempts {
			break
		}

		info := RetryInfo{Attempt: attempt, Err: err}
		if IsRateLimit(err) {
			info.IsRateLimit = true
			info.Wait = r.policy.RateLimitWait
		} else {
			info.Wait = backoff
			backoff *= 2
		}

		r.log.Warn().
			Err(err).
			Str("provider", p.Name()).
			Int("attempt", attempt).
			Bool("rateLimit", info.IsRateLimit).
			Dur("wait", info.Wait).
			Msg("provider call failed, retrying")

		if onRetry != nil {
			onRetry(info)
		}
		if err := r.sleep(ctx, info.Wait); err != nil {
			return nil, err
		}
	}

	r.log.Error().Err(lastErr).Str("provider", p.Name()).Int("attempts", r.policy.MaxAttempts).Msg("provider retries exhausted")
	return nil, &RetriesExhaustedError{Attempts: r.policy.MaxAttempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
