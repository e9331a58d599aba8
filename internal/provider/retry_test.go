package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// recordSleep captures waits instead of sleeping.
type recordSleep struct{ waits []time.Duration }

func (r *recordSleep) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

// scripted fails with errs in order, then succeeds.
func scripted(errs ...error) (*Mock, *int) {
	calls := 0
	return &Mock{ChatFunc: func(context.Context, domain.ConversationRequest) (*domain.ConversationResponse, error) {
		calls++
		if calls <= len(errs) {
			return nil, errs[calls-1]
		}
		return &domain.ConversationResponse{Content: "ok"}, nil
	}}, &calls
}

func TestRetrier_SucceedsFirstTry(t *testing.T) {
	rec := &recordSleep{}
	r := NewRetrier(Policy{}, silentLog(), WithSleep(rec.sleep))
	p, calls := scripted()

	resp, err := r.Chat(context.Background(), p, domain.ConversationRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 1, *calls)
	assert.Empty(t, rec.waits)
}

func TestRetrier_RateLimitWaitsFixed(t *testing.T) {
	rec := &recordSleep{}
	r := NewRetrier(DefaultPolicy(), silentLog(), WithSleep(rec.sleep))
	p, calls := scripted(errors.New("HTTP 429 Too Many Requests"), errors.New("rate limit reached"))

	var infos []RetryInfo
	resp, err := r.Chat(context.Background(), p, domain.ConversationRequest{}, func(ri RetryInfo) { infos = append(infos, ri) })
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, *calls)

	require.Len(t, infos, 2)
	for i, ri := range infos {
		assert.Equal(t, i+1, ri.Attempt)
		assert.True(t, ri.IsRateLimit)
		assert.Equal(t, 20*time.Second, ri.Wait)
	}
	assert.Equal(t, []time.Duration{20 * time.Second, 20 * time.Second}, rec.waits)
}

func TestRetrier_ExponentialBackoff(t *testing.T) {
	rec := &recordSleep{}
	r := NewRetrier(DefaultPolicy(), silentLog(), WithSleep(rec.sleep))
	boom := errors.New("connection reset by peer")
	p, _ := scripted(boom, boom, boom)

	_, err := r.Chat(context.Background(), p, domain.ConversationRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, rec.waits)
}

func TestRetrier_RateLimitDoesNotGrowBackoff(t *testing.T) {
	rec := &recordSleep{}
	r := NewRetrier(DefaultPolicy(), silentLog(), WithSleep(rec.sleep))
	p, _ := scripted(
		errors.New("server error"),
		errors.New("429"),
		errors.New("server error"),
		errors.New("rate limit"),
	)

	_, err := r.Chat(context.Background(), p, domain.ConversationRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second, 20 * time.Second, 4 * time.Second, 20 * time.Second}, rec.waits)
}

func TestRetrier_ExhaustsAfterFiveAttempts(t *testing.T) {
	rec := &recordSleep{}
	r := NewRetrier(DefaultPolicy(), silentLog(), WithSleep(rec.sleep))
	var errs []error
	for i := 0; i < 6; i++ {
		errs = append(errs, errors.New("upstream failure"))
	}
	last := errors.New("final failure")
	errs[4] = last
	p, calls := scripted(errs...)

	var retries int
	_, err := r.Chat(context.Background(), p, domain.ConversationRequest{}, func(RetryInfo) { retries++ })
	require.Error(t, err)
	assert.Equal(t, 5, *calls)
	assert.Equal(t, 4, retries, "no wait after the final attempt")
	assert.Len(t, rec.waits, 4)

	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 5, exhausted.Attempts)
	assert.ErrorIs(t, err, last)
}

func TestRetrier_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := &Mock{ChatFunc: func(context.Context, domain.ConversationRequest) (*domain.ConversationResponse, error) {
		calls++
		cancel()
		return nil, errors.New("boom")
	}}
	r := NewRetrier(DefaultPolicy(), silentLog(), WithSleep(func(context.Context, time.Duration) error {
		t.Fatal("should not wait after cancellation")
		return nil
	}))

	_, err := r.Chat(ctx, p, domain.ConversationRequest{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetrier_RealSleepHonoursContext(t *testing.T) {
	r := NewRetrier(Policy{BaseBackoff: time.Hour}, silentLog())
	p, _ := scripted(errors.New("boom"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Chat(ctx, p, domain.ConversationRequest{}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryInfo_Event(t *testing.T) {
	ev := RetryInfo{Attempt: 2, IsRateLimit: true, Wait: 20 * time.Second}.Event("cli:local")
	assert.Equal(t, domain.EventLLMRetry, ev.EventType)
	assert.Equal(t, "cli:local", ev.RunID)
	assert.Equal(t, 2, ev.Data["attempt"])
	assert.Equal(t, true, ev.Data["isRateLimit"])
	assert.Equal(t, int64(20000), ev.Data["waitMs"])
}

func TestNewRetrier_Defaults(t *testing.T) {
	r := NewRetrier(Policy{}, silentLog())
	assert.Equal(t, DefaultPolicy(), r.Policy())
}
